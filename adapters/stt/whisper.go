package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/keystore"
)

const (
	defaultInferenceBaseURL = "https://api-inference.huggingface.co/models"
	defaultWhisperTimeout   = 60 * time.Second
)

// WhisperConfig holds configuration for the hosted Whisper adapter
type WhisperConfig struct {
	APIBaseURL string        // Optional: inference base URL; model IDs are appended
	APIKey     string        // Optional: bearer token; session keys override it
	Timeout    time.Duration // Optional: request timeout
}

// NewWhisperConfigFromEnv creates a WhisperConfig from environment variables
func NewWhisperConfigFromEnv() WhisperConfig {
	config := WhisperConfig{
		APIBaseURL: os.Getenv("HUGGINGFACE_API_URL"),
		APIKey:     os.Getenv("HUGGINGFACE_TOKEN"),
	}
	return config
}

// WhisperSTT implements SpeechToText against a hosted Whisper inference
// endpoint: raw audio bytes in, decoded text out. The request's Model picks
// the inference model per call.
type WhisperSTT struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSTT)(nil)

// NewWhisperSTT creates a new hosted-Whisper recognition adapter
func NewWhisperSTT(config WhisperConfig, logger *zap.Logger) *WhisperSTT {
	baseURL := config.APIBaseURL
	if baseURL == "" {
		baseURL = defaultInferenceBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultWhisperTimeout
	}

	return &WhisperSTT{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// endpointFor resolves the inference URL for a model ID
func (w *WhisperSTT) endpointFor(model string) string {
	if model == "" {
		model = DefaultModelID
	}
	return w.baseURL + "/" + model
}

// whisperResponse is the inference endpoint's JSON payload
type whisperResponse struct {
	Text   string `json:"text"`
	Error  string `json:"error"`
	Chunks []struct {
		Text string `json:"text"`
	} `json:"chunks"`
}

// Transcribe implements repositories.SpeechToText
func (w *WhisperSTT) Transcribe(ctx context.Context, input repositories.AudioInput) (*repositories.Transcript, error) {
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("no audio data to transcribe")
	}

	apiKey := w.apiKeyFor(ctx)
	if apiKey == "" {
		return nil, fmt.Errorf("recognition API token is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpointFor(input.Model), bytes.NewReader(input.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", input.ContentType)

	w.logger.Info("Sending audio to recognition backend",
		zap.String("contentType", input.ContentType),
		zap.Int("size", len(input.Data)))

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognition response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("recognition backend rejected credentials (%d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("recognition backend returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("recognition backend error: %s", parsed.Error)
	}

	text := parsed.Text
	if text == "" {
		for _, chunk := range parsed.Chunks {
			text += chunk.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no speech detected in audio")
	}

	w.logger.Info("Transcription completed", zap.Int("textLength", len(text)))

	return &repositories.Transcript{Text: text}, nil
}

// apiKeyFor resolves the token per call so session-submitted keys take
// effect immediately.
func (w *WhisperSTT) apiKeyFor(ctx context.Context) string {
	if key := keystore.Lookup(ctx, keystore.KeyRecognition); key != "" {
		return key
	}
	return w.apiKey
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

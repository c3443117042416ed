package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/keystore"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultChunkSize    = 1024
	defaultOutputFormat = "mp3_44100_128"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
	defaultTTSTimeout   = 60 * time.Second
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter.
// All fields are optional; session-submitted keys override APIKey.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string // Default voice when a request names none
	ModelID      string
	OutputFormat string
	ChunkSize    int     // Size of audio chunks when streaming
	Stability    float64 // Voice stability between 0 and 1
	Clarity      float64 // Voice clarity/similarity boost between 0 and 1
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// NewElevenLabsConfigFromEnv creates an ElevenLabsConfig from environment variables
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVENLABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVENLABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVENLABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVENLABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVENLABS_OUTPUT_FORMAT"),
	}

	if chunkSizeStr := os.Getenv("ELEVENLABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}
	if stabilityStr := os.Getenv("ELEVENLABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVENLABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}

// ElevenLabsTTS implements the TextToSpeech interface using the Eleven Labs API
type ElevenLabsTTS struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	client       *http.Client
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// elevenLabsVoiceSettings represents voice settings for the Eleven Labs API
type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// elevenLabsRequest represents the synthesis request payload
type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabsTTS{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		chunkSize:    chunkSize,
		stability:    stability,
		clarity:      clarity,
		client:       &http.Client{Timeout: defaultTTSTimeout},
		logger:       logger,
	}, nil
}

// DefaultVoiceID returns the voice used when a request names none
func (e *ElevenLabsTTS) DefaultVoiceID() string {
	return e.voiceID
}

// Synthesize implements repositories.TextToSpeech, returning the full audio payload
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	resp, err := e.synthesisRequest(ctx, text, voiceID, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis backend returned no audio")
	}

	e.logger.Info("Speech synthesis completed",
		zap.Int("audioBytes", len(audio)),
		zap.String("voiceID", e.resolveVoice(voiceID)))

	return audio, nil
}

// SynthesizeStream implements repositories.TextToSpeech, streaming audio chunks
func (e *ElevenLabsTTS) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	resp, err := e.synthesisRequest(ctx, text, voiceID, true)
	if err != nil {
		return nil, err
	}

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, e.chunkSize)
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])

				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					e.logger.Warn("Context cancelled while streaming audio")
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				e.logger.Error("Error reading synthesis stream", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

// synthesisRequest issues the synthesis call and returns a validated response
func (e *ElevenLabsTTS) synthesisRequest(ctx context.Context, text, voiceID string, stream bool) (*http.Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	apiKey := e.apiKeyFor(ctx)
	if apiKey == "" {
		return nil, fmt.Errorf("synthesis API key is not configured")
	}

	voice := e.resolveVoice(voiceID)

	requestBody, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", e.apiBaseURL, voice, e.outputFormat)
	if stream {
		url = fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s", e.apiBaseURL, voice, e.outputFormat)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("synthesis backend rejected credentials (%d)", resp.StatusCode)
		case http.StatusNotFound:
			return nil, fmt.Errorf("unknown voice %q", voice)
		default:
			return nil, fmt.Errorf("synthesis backend returned %d: %s", resp.StatusCode, string(errorBody))
		}
	}

	return resp, nil
}

// Voices implements repositories.TextToSpeech
func (e *ElevenLabsTTS) Voices(ctx context.Context) ([]repositories.Voice, error) {
	apiKey := e.apiKeyFor(ctx)
	if apiKey == "" {
		return nil, fmt.Errorf("synthesis API key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voices request returned %d: %s", resp.StatusCode, string(errorBody))
	}

	var voicesResponse struct {
		Voices []struct {
			VoiceID    string `json:"voice_id"`
			Name       string `json:"name"`
			PreviewURL string `json:"preview_url"`
			Category   string `json:"category"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]repositories.Voice, 0, len(voicesResponse.Voices))
	for _, v := range voicesResponse.Voices {
		voices = append(voices, repositories.Voice{
			ID:         v.VoiceID,
			Name:       v.Name,
			PreviewURL: v.PreviewURL,
			Category:   v.Category,
		})
	}

	e.logger.Info("Retrieved available voices", zap.Int("count", len(voices)))
	return voices, nil
}

func (e *ElevenLabsTTS) resolveVoice(voiceID string) string {
	if voiceID == "" {
		return e.voiceID
	}
	return voiceID
}

func (e *ElevenLabsTTS) apiKeyFor(ctx context.Context) string {
	if key := keystore.Lookup(ctx, keystore.KeySynthesis); key != "" {
		return key
	}
	return e.apiKey
}

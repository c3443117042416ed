package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/keystore"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultTemperature   = 0.7
	defaultMaxTokens     = 512
	defaultChatTimeout   = 60 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI chat adapter
type OpenAIConfig struct {
	APIKey      string  // Optional: session keys override it
	BaseURL     string  // Optional: API base URL
	Model       string  // Optional: model identifier
	Temperature float64 // Optional: sampling temperature
	MaxTokens   int     // Optional: completion token cap
}

// NewOpenAIConfigFromEnv creates an OpenAIConfig from environment variables
func NewOpenAIConfigFromEnv() OpenAIConfig {
	config := OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_API_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}

	if tempStr := os.Getenv("OPENAI_TEMPERATURE"); tempStr != "" {
		if temp, err := strconv.ParseFloat(tempStr, 64); err == nil && temp >= 0 && temp <= 2 {
			config.Temperature = temp
		}
	}
	if maxStr := os.Getenv("OPENAI_MAX_TOKENS"); maxStr != "" {
		if max, err := strconv.Atoi(maxStr); err == nil && max > 0 {
			config.MaxTokens = max
		}
	}

	return config
}

// OpenAIChat implements ChatModel against the OpenAI chat completions API
type OpenAIChat struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *zap.Logger
}

var _ repositories.ChatModel = (*OpenAIChat)(nil)

// NewOpenAIChat creates a new OpenAI chat completion adapter
func NewOpenAIChat(config OpenAIConfig, logger *zap.Logger) *OpenAIChat {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAIChat{
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: defaultChatTimeout},
		logger:      logger,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements repositories.ChatModel
func (o *OpenAIChat) Complete(ctx context.Context, history []repositories.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("chat history cannot be empty")
	}

	apiKey := o.apiKeyFor(ctx)
	if apiKey == "" {
		return "", fmt.Errorf("chat API key is not configured")
	}

	messages := make([]openAIMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, openAIMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(openAIRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	o.logger.Info("Sending chat completion request",
		zap.String("model", o.model),
		zap.Int("messages", len(messages)))

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response (%d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("chat backend rejected credentials (%d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("chat backend rate limited the request")
	case resp.StatusCode != http.StatusOK:
		if parsed.Error != nil {
			return "", fmt.Errorf("chat backend error: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("chat backend returned %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat backend returned no completion")
	}

	o.logger.Info("Chat completion received",
		zap.Int("totalTokens", parsed.Usage.TotalTokens))

	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAIChat) apiKeyFor(ctx context.Context) string {
	if key := keystore.Lookup(ctx, keystore.KeyChat); key != "" {
		return key
	}
	return o.apiKey
}

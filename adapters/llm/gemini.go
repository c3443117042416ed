package llm

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiChat implements the ChatModel interface using Google's Gemini API
type GeminiChat struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.ChatModel = (*GeminiChat)(nil)

// NewGeminiChat creates a new Gemini chat adapter
func NewGeminiChat(logger *zap.Logger) (*GeminiChat, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = geminiDefaultModel
	}

	return &GeminiChat{
		client: client,
		logger: logger,
		model:  model,
	}, nil
}

// Complete implements repositories.ChatModel
func (g *GeminiChat) Complete(ctx context.Context, history []repositories.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("chat history cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		// Gemini has no system role; system prompts go in as user turns.
		role := genai.RoleUser
		if msg.Role == entities.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("chat backend returned no completion")
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("chat backend returned an empty completion")
	}

	g.logger.Info("Chat completion received",
		zap.String("model", g.model),
		zap.Int("responseLength", len(text)))

	return text, nil
}

package llm

import (
	"os"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// NewFromEnv selects the completion backend from CHAT_PROVIDER: "gemini"
// for Google Gemini, "mock" for development, anything else (including
// unset) for OpenAI chat completions.
func NewFromEnv(logger *zap.Logger) (repositories.ChatModel, error) {
	switch os.Getenv("CHAT_PROVIDER") {
	case "gemini":
		logger.Info("Using Gemini completion backend")
		return NewGeminiChat(logger)
	case "mock":
		logger.Info("Using mock completion backend")
		return NewMockChatModel(), nil
	default:
		logger.Info("Using OpenAI completion backend")
		return NewOpenAIChat(NewOpenAIConfigFromEnv(), logger), nil
	}
}

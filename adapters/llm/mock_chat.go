package llm

import (
	"context"
	"fmt"

	"github.com/widyatma/wicara/domain/repositories"
)

// MockChatModel is a placeholder implementation for development without a
// completion backend. It echoes the last user message.
type MockChatModel struct{}

// NewMockChatModel creates a new mock chat model
func NewMockChatModel() repositories.ChatModel {
	return &MockChatModel{}
}

// Complete implements repositories.ChatModel
func (m *MockChatModel) Complete(ctx context.Context, history []repositories.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("chat history cannot be empty")
	}
	last := history[len(history)-1]
	return fmt.Sprintf("You said: %s", last.Content), nil
}

package repositories

import (
	"context"

	"github.com/widyatma/wicara/domain/entities"
)

// ChatMessage is a single role/content pair sent to the completion backend
type ChatMessage struct {
	Role    entities.Role `json:"role"`
	Content string        `json:"content"`
}

// ChatModel abstracts any chat completion provider
type ChatModel interface {
	// Complete sends the ordered message history and returns the
	// generated assistant reply
	Complete(ctx context.Context, history []ChatMessage) (string, error)
}

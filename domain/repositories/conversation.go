package repositories

import (
	"context"
	"errors"

	"github.com/widyatma/wicara/domain/entities"
)

// ErrConversationNotFound is returned when a conversation id is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationPage is one page of a conversation listing, newest first.
type ConversationPage struct {
	Conversations []*entities.Conversation `json:"conversations"`
	Total         int64                    `json:"total"`
	Page          int                      `json:"page"`
	PageSize      int                      `json:"page_size"`
	Pages         int                      `json:"pages"`
}

// ConversationRepository defines data access for conversations and their
// ordered message lists.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	// List returns conversations ordered by creation time descending.
	List(ctx context.Context, page, pageSize int) (*ConversationPage, error)
	// Delete removes the conversation and every message that belongs to it.
	// A second delete of the same id returns ErrConversationNotFound.
	Delete(ctx context.Context, id string) error
	// UpdateSTTModel pins the recognition model used for the conversation.
	UpdateSTTModel(ctx context.Context, conversationID, modelID string) error
	// AppendMessage atomically allocates the next sequence number on the
	// conversation and inserts the message. Fails with
	// ErrConversationNotFound for an unknown conversation id.
	AppendMessage(ctx context.Context, conversationID string, role entities.Role, content, audioRef string) (*entities.Message, error)
	// Messages returns all messages of a conversation in exact append order.
	Messages(ctx context.Context, conversationID string) ([]*entities.Message, error)
}

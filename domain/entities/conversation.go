package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role represents the sender of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known message roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Conversation represents a named, ordered exchange of messages with a
// system prompt and a selected synthesis voice
type Conversation struct {
	ID           string `json:"id" bson:"_id"`
	SystemPrompt string `json:"system_prompt" bson:"system_prompt"`
	VoiceID      string `json:"voice_id" bson:"voice_id"`
	// STTModelID pins the recognition model for this conversation; empty
	// means the backend default.
	STTModelID string    `json:"stt_model_id,omitempty" bson:"stt_model_id,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
	// MessageCount is the append counter; each appended message takes the
	// next value as its sequence number.
	MessageCount int64 `json:"message_count" bson:"message_count"`
}

// Message is a single turn in a conversation. Messages are immutable once
// created; Seq preserves exact append order on read.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Seq            int64     `json:"seq" bson:"seq"`
	Role           Role      `json:"role" bson:"role"`
	Content        string    `json:"content" bson:"content"`
	AudioRef       string    `json:"audio_ref,omitempty" bson:"audio_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// NewConversation creates a conversation with an empty message list
func NewConversation(systemPrompt, voiceID, sttModelID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           uuid.NewString(),
		SystemPrompt: systemPrompt,
		VoiceID:      voiceID,
		STTModelID:   sttModelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewMessage creates a message for the given conversation and sequence slot
func NewMessage(conversationID string, seq int64, role Role, content, audioRef string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Seq:            seq,
		Role:           role,
		Content:        content,
		AudioRef:       audioRef,
		CreatedAt:      time.Now(),
	}
}

// Validate checks message fields before persistence
func (m *Message) Validate() error {
	if m.ConversationID == "" {
		return errors.New("conversation ID is required")
	}
	if !m.Role.Valid() {
		return errors.New("unknown message role: " + string(m.Role))
	}
	if m.Content == "" {
		return errors.New("message content is required")
	}
	return nil
}

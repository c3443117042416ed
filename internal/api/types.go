package api

import (
	"time"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
)

// SessionResponse carries a freshly issued session token
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetKeysRequest submits API keys for the caller's session
type SetKeysRequest struct {
	HuggingFaceToken string `json:"huggingface_token,omitempty"`
	OpenAIAPIKey     string `json:"openai_api_key,omitempty"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key,omitempty"`
}

// KeyStatusResponse reports which keys are set, never their values
type KeyStatusResponse struct {
	Status  map[string]bool `json:"status"`
	AllSet  bool            `json:"all_set"`
	Missing []string        `json:"missing,omitempty"`
}

// CreateConversationRequest starts a conversation with optional overrides
type CreateConversationRequest struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	STTModelID   string `json:"stt_model_id,omitempty"`
}

// ConversationResponse is one conversation as returned by the API
type ConversationResponse struct {
	ID           string    `json:"id"`
	SystemPrompt string    `json:"system_prompt"`
	VoiceID      string    `json:"voice_id,omitempty"`
	STTModelID   string    `json:"stt_model_id,omitempty"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ModelListResponse lists the selectable recognition models
type ModelListResponse struct {
	Models       []repositories.STTModel `json:"models"`
	DefaultModel string                  `json:"default_model"`
}

// UpdateModelRequest pins a recognition model on a conversation
type UpdateModelRequest struct {
	ConversationID string `json:"conversation_id"`
	ModelID        string `json:"model_id"`
}

// UpdateModelResponse confirms the pinned model
type UpdateModelResponse struct {
	ConversationID string `json:"conversation_id"`
	ModelID        string `json:"model_id"`
}

// ConversationListResponse is a page of conversations
type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
	Pages         int                    `json:"pages"`
}

// MessageResponse is one stored message
type MessageResponse struct {
	ID        string        `json:"id"`
	Seq       int64         `json:"seq"`
	Role      entities.Role `json:"role"`
	Content   string        `json:"content"`
	AudioRef  string        `json:"audio_ref,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChatResponse is the outcome of one processed voice turn. Audio is
// base64-encoded in JSON when synthesis succeeded; AudioID retrieves the
// same payload from /audio/:id until it expires.
type ChatResponse struct {
	ConversationID string  `json:"conversation_id"`
	Transcript     string  `json:"transcript"`
	Confidence     float64 `json:"confidence,omitempty"`
	Reply          string  `json:"reply"`
	Audio          []byte  `json:"audio,omitempty"`
	AudioID        string  `json:"audio_id,omitempty"`
	AudioAvailable bool    `json:"audio_available"`
	State          string  `json:"state"`
}

// TTSRequest is a text-only synthesis request
type TTSRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// VoiceResponse is one available voice
type VoiceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url,omitempty"`
	Category   string `json:"category,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toConversationResponse(c *entities.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		SystemPrompt: c.SystemPrompt,
		VoiceID:      c.VoiceID,
		STTModelID:   c.STTModelID,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toMessageResponse(m *entities.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Seq:       m.Seq,
		Role:      m.Role,
		Content:   m.Content,
		AudioRef:  m.AudioRef,
		CreatedAt: m.CreatedAt,
	}
}

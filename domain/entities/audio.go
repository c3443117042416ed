package entities

import (
	"time"

	"github.com/google/uuid"
)

// AudioFile is a stored audio payload: either an upload kept alongside its
// transcription or a synthesized reply. Files expire after their TTL;
// ExpiresAt drives the storage-level cleanup.
type AudioFile struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	ContentType    string    `json:"content_type" bson:"content_type"`
	Data           []byte    `json:"-" bson:"content"`
	SizeBytes      int       `json:"size_bytes" bson:"size_bytes"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt      time.Time `json:"expires_at" bson:"expires_at"`
}

// NewAudioFile creates an audio file expiring after the given TTL
func NewAudioFile(conversationID, contentType string, data []byte, ttl time.Duration) *AudioFile {
	now := time.Now()
	return &AudioFile{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ContentType:    contentType,
		Data:           data,
		SizeBytes:      len(data),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

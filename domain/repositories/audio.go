package repositories

import (
	"context"
	"errors"

	"github.com/widyatma/wicara/domain/entities"
)

// ErrAudioNotFound is returned when an audio file does not exist or has
// already expired.
var ErrAudioNotFound = errors.New("audio file not found")

// AudioRepository stores audio payloads with a bounded lifetime
type AudioRepository interface {
	// Save persists the audio file until its ExpiresAt passes
	Save(ctx context.Context, file *entities.AudioFile) error

	// Get returns a stored audio file by ID
	Get(ctx context.Context, id string) (*entities.AudioFile, error)
}

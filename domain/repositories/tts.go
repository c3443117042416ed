package repositories

import "context"

// Voice describes a synthesis voice offered by the backend
type Voice struct {
	ID         string `json:"voice_id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url,omitempty"`
	Category   string `json:"category,omitempty"`
}

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	// Synthesize converts text to a complete audio payload using the
	// given voice. An empty voiceID selects the backend default.
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	// SynthesizeStream streams synthesized audio in chunks as they
	// arrive from the backend. The channel is closed when the stream ends.
	SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error)
	// Voices lists the voices available on the backend
	Voices(ctx context.Context) ([]Voice, error)
}

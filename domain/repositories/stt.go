package repositories

import "context"

// AudioInput is an audio payload ready to be sent to a recognition backend.
type AudioInput struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	SampleRate  int    `json:"sample_rate"`
	Language    string `json:"language"`
	// Model selects a specific recognition model; empty means the
	// backend default.
	Model string `json:"model,omitempty"`
}

// STTModel describes one selectable recognition model
type STTModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Transcript is the decoded text for an audio payload. Confidence is zero
// when the backend does not report one.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts an audio payload to text
	Transcribe(ctx context.Context, input AudioInput) (*Transcript, error)
}

package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for development without
// a recognition backend.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText
func (s *MockSpeechToText) Transcribe(ctx context.Context, input repositories.AudioInput) (*repositories.Transcript, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(input.Data)),
		zap.String("contentType", input.ContentType))

	if len(input.Data) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	// Mock transcription based on audio size
	var text string
	switch {
	case len(input.Data) > 10000:
		text = "Hello there, I would like to talk about my day."
	case len(input.Data) > 1000:
		text = "Hello there!"
	default:
		text = "Hi"
	}

	return &repositories.Transcript{Text: text, Confidence: 0.95}, nil
}

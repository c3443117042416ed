package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// MockTextToSpeech is a placeholder implementation for development without
// a synthesis backend.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTextToSpeech) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	m.logger.Info("Mock speech synthesis", zap.Int("textLength", len(text)), zap.String("voiceID", voiceID))
	return []byte("mock-audio:" + text), nil
}

// SynthesizeStream implements repositories.TextToSpeech
func (m *MockTextToSpeech) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	audio, err := m.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}

	audioChan := make(chan []byte, 1)
	audioChan <- audio
	close(audioChan)
	return audioChan, nil
}

// Voices implements repositories.TextToSpeech
func (m *MockTextToSpeech) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{ID: "mock-voice-1", Name: "Mock Voice", Category: "mock"},
	}, nil
}

package stt

import (
	"os"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// NewFromEnv selects the recognition backend from STT_PROVIDER:
// "google" for Google Cloud Speech, "mock" for development, anything else
// (including unset) for the hosted Whisper endpoint.
func NewFromEnv(logger *zap.Logger) repositories.SpeechToText {
	switch os.Getenv("STT_PROVIDER") {
	case "google":
		logger.Info("Using Google Cloud Speech recognition backend")
		return NewGoogleSpeechToText(logger)
	case "mock":
		logger.Info("Using mock recognition backend")
		return NewMockSpeechToText(logger)
	default:
		logger.Info("Using hosted Whisper recognition backend")
		return NewWhisperSTT(NewWhisperConfigFromEnv(), logger)
	}
}

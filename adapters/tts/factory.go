package tts

import (
	"os"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// NewFromEnv selects the synthesis backend from TTS_PROVIDER: "mock" for
// development, anything else (including unset) for ElevenLabs.
func NewFromEnv(logger *zap.Logger) (repositories.TextToSpeech, error) {
	switch os.Getenv("TTS_PROVIDER") {
	case "mock":
		logger.Info("Using mock synthesis backend")
		return NewMockTextToSpeech(logger), nil
	default:
		logger.Info("Using ElevenLabs synthesis backend")
		return NewElevenLabsTTS(NewElevenLabsConfigFromEnv(), logger)
	}
}

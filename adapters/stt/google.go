package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud. Credentials
// come from the standard GOOGLE_APPLICATION_CREDENTIALS mechanism.
type GoogleSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a new Google Cloud recognition adapter
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText using one-shot recognition
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, input repositories.AudioInput) (*repositories.Transcript, error) {
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("no audio data to transcribe")
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	encoding, err := encodingFor(input.ContentType)
	if err != nil {
		return nil, err
	}

	language := input.Language
	if language == "" {
		language = "en-US"
	}

	config := &speechpb.RecognitionConfig{
		Encoding:     encoding,
		LanguageCode: language,
	}
	if input.SampleRate > 0 {
		config.SampleRateHertz = int32(input.SampleRate)
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: input.Data},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recognition request failed: %w", err)
	}

	var text string
	var confidence float64
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		text += best.Transcript
		if confidence == 0 {
			confidence = float64(best.Confidence)
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no speech detected in audio")
	}

	g.logger.Info("Transcription completed",
		zap.Int("textLength", len(text)),
		zap.Float64("confidence", confidence))

	return &repositories.Transcript{Text: text, Confidence: confidence}, nil
}

// encodingFor maps upload content types to Google Speech API encodings
func encodingFor(contentType string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "audio/mpeg", "audio/mp3":
		return speechpb.RecognitionConfig_MP3, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported content type for Google Speech: %s", contentType)
	}
}

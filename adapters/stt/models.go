package stt

import "github.com/widyatma/wicara/domain/repositories"

// DefaultModelID is the recognition model used when neither the request
// nor the conversation pins one.
const DefaultModelID = "openai/whisper-large-v3"

// availableModels lists the hosted recognition models a conversation may
// pin. IDs are inference endpoint model paths.
var availableModels = []repositories.STTModel{
	{
		ID:          "openai/whisper-large-v3",
		Name:        "Whisper Large v3 (Default)",
		Description: "Standard model with good accuracy",
	},
	{
		ID:          "openai/whisper-large-v3-turbo",
		Name:        "Whisper Large v3 Turbo",
		Description: "Faster inference with a slight accuracy trade-off",
	},
	{
		ID:          "distil-whisper/distil-large-v3",
		Name:        "Distil-Whisper Large v3",
		Description: "Knowledge distilled model with improved efficiency",
	},
	{
		ID:          "openai/whisper-medium",
		Name:        "Whisper Medium",
		Description: "Smaller model for constrained usage",
	},
}

// AvailableModels returns the selectable recognition models
func AvailableModels() []repositories.STTModel {
	out := make([]repositories.STTModel, len(availableModels))
	copy(out, availableModels)
	return out
}

// ValidModelID reports whether the ID names a selectable model
func ValidModelID(id string) bool {
	for _, model := range availableModels {
		if model.ID == id {
			return true
		}
	}
	return false
}

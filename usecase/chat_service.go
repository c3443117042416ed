package usecase

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/audio"
)

const (
	defaultHistoryLimit = 20
	defaultSampleRate   = 16000

	fallbackSystemPrompt = "You are a helpful assistant."

	// audioTTL bounds how long stored uploads and synthesized replies stay
	// retrievable.
	audioTTL = 24 * time.Hour

	synthesizedContentType = "audio/mpeg"
)

// ChatConfig holds orchestration defaults
type ChatConfig struct {
	// HistoryLimit bounds how many non-system messages are sent to the
	// chat backend per request. Storage is never truncated.
	HistoryLimit int
	// SystemPrompt is used when a new conversation names none
	SystemPrompt string
	// VoiceID is used when a new conversation names none
	VoiceID string
	// Language passed to the recognition backend
	Language string
}

// NewChatConfigFromEnv creates a ChatConfig from environment variables
func NewChatConfigFromEnv() ChatConfig {
	config := ChatConfig{
		SystemPrompt: os.Getenv("DEFAULT_SYSTEM_PROMPT"),
		VoiceID:      os.Getenv("DEFAULT_VOICE_ID"),
		Language:     os.Getenv("STT_LANGUAGE"),
	}
	if limitStr := os.Getenv("CHAT_HISTORY_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			config.HistoryLimit = limit
		}
	}
	return config
}

// ChatService orchestrates the voice chat flow: validate the upload,
// transcribe it, persist the user turn, generate a reply, persist it, and
// optionally synthesize speech.
type ChatService struct {
	conversations repositories.ConversationRepository
	audioStore    repositories.AudioRepository
	speechToText  repositories.SpeechToText
	chatModel     repositories.ChatModel
	textToSpeech  repositories.TextToSpeech
	logger        *zap.Logger

	historyLimit int
	systemPrompt string
	defaultVoice string
	language     string
}

// NewChatService creates a new chat orchestration service
func NewChatService(
	conversations repositories.ConversationRepository,
	audioStore repositories.AudioRepository,
	stt repositories.SpeechToText,
	chat repositories.ChatModel,
	tts repositories.TextToSpeech,
	config ChatConfig,
	logger *zap.Logger,
) *ChatService {
	historyLimit := config.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fallbackSystemPrompt
	}

	return &ChatService{
		conversations: conversations,
		audioStore:    audioStore,
		speechToText:  stt,
		chatModel:     chat,
		textToSpeech:  tts,
		logger:        logger,
		historyLimit:  historyLimit,
		systemPrompt:  systemPrompt,
		defaultVoice:  config.VoiceID,
		language:      config.Language,
	}
}

// ChatTurnRequest is one audio upload to process
type ChatTurnRequest struct {
	Audio          []byte
	ContentType    string
	ConversationID string // empty means create a new conversation
	SystemPrompt   string // used only when creating a conversation
	VoiceID        string // used only when creating a conversation
	ModelID        string // overrides the conversation's recognition model
	WithAudio      bool   // request a synthesized audio reply
}

// ChatTurnResult is the outcome of a processed turn. AudioID references
// the stored synthesized reply, retrievable until its TTL passes.
type ChatTurnResult struct {
	ConversationID string
	Transcript     string
	Confidence     float64
	Reply          string
	Audio          []byte
	AudioID        string
	AudioAvailable bool
	State          TurnState
}

// ProcessTurn runs the full turn flow. Failures carry the stage they
// occurred in; a synthesis failure after a successful chat degrades
// gracefully instead of failing the turn.
func (s *ChatService) ProcessTurn(ctx context.Context, req ChatTurnRequest) (*ChatTurnResult, error) {
	turn := NewTurn()

	clip, err := audio.Normalize(req.Audio, req.ContentType, defaultSampleRate)
	if err != nil {
		return nil, NewStageError(StageValidate, err)
	}

	conversation, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	// The request's model wins over the conversation's pinned one.
	model := req.ModelID
	if model == "" {
		model = conversation.STTModelID
	}

	transcript, err := s.speechToText.Transcribe(ctx, repositories.AudioInput{
		Data:        clip.Data,
		ContentType: clip.ContentType,
		SampleRate:  clip.SampleRate,
		Language:    s.language,
		Model:       model,
	})
	if err != nil {
		return nil, NewStageError(StageTranscribe, err)
	}
	if err := turn.Advance(TurnTranscribed); err != nil {
		return nil, err
	}

	s.logger.Info("Transcription completed",
		zap.String("conversationID", conversation.ID),
		zap.Int("textLength", len(transcript.Text)))

	uploadRef := s.storeAudio(ctx, conversation.ID, clip.ContentType, clip.Data)

	// The user's turn is persisted before the chat call so a chat failure
	// or crash never loses it.
	if _, err := s.conversations.AppendMessage(ctx, conversation.ID, entities.RoleUser, transcript.Text, uploadRef); err != nil {
		return nil, NewStageError(StagePersist, err)
	}

	history, err := s.buildHistory(ctx, conversation)
	if err != nil {
		return nil, NewStageError(StagePersist, err)
	}

	reply, err := s.chatModel.Complete(ctx, history)
	if err != nil {
		return nil, NewStageError(StageChat, err)
	}
	if err := turn.Advance(TurnReplied); err != nil {
		return nil, err
	}

	if _, err := s.conversations.AppendMessage(ctx, conversation.ID, entities.RoleAssistant, reply, ""); err != nil {
		return nil, NewStageError(StagePersist, err)
	}

	result := &ChatTurnResult{
		ConversationID: conversation.ID,
		Transcript:     transcript.Text,
		Confidence:     transcript.Confidence,
		Reply:          reply,
	}

	if req.WithAudio {
		replyAudio, err := s.textToSpeech.Synthesize(ctx, reply, conversation.VoiceID)
		if err != nil {
			// The text reply survives a synthesis failure.
			s.logger.Warn("Speech synthesis failed, returning text only",
				zap.String("conversationID", conversation.ID),
				zap.Error(err))
			if err := turn.Advance(TurnSynthesisSkipped); err != nil {
				return nil, err
			}
		} else {
			result.Audio = replyAudio
			result.AudioID = s.storeAudio(ctx, conversation.ID, synthesizedContentType, replyAudio)
			result.AudioAvailable = true
			if err := turn.Advance(TurnSynthesized); err != nil {
				return nil, err
			}
		}
	} else {
		if err := turn.Advance(TurnSynthesisSkipped); err != nil {
			return nil, err
		}
	}

	if err := turn.Advance(TurnDone); err != nil {
		return nil, err
	}
	result.State = turn.State()

	return result, nil
}

// storeAudio keeps a retrievable copy of the audio with a bounded TTL. A
// storage failure costs only the reference, never the turn.
func (s *ChatService) storeAudio(ctx context.Context, conversationID, contentType string, data []byte) string {
	file := entities.NewAudioFile(conversationID, contentType, data, audioTTL)
	if err := s.audioStore.Save(ctx, file); err != nil {
		s.logger.Warn("Failed to store audio",
			zap.String("conversationID", conversationID),
			zap.Error(err))
		return ""
	}
	return file.ID
}

// SynthesizeText converts text to speech without a conversation context
func (s *ChatService) SynthesizeText(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = s.defaultVoice
	}
	audioBytes, err := s.textToSpeech.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, NewStageError(StageSynthesize, err)
	}
	return audioBytes, nil
}

// resolveConversation loads an existing conversation or creates a new one
func (s *ChatService) resolveConversation(ctx context.Context, req ChatTurnRequest) (*entities.Conversation, error) {
	if req.ConversationID != "" {
		conversation, err := s.conversations.GetByID(ctx, req.ConversationID)
		if err != nil {
			return nil, NewStageError(StageValidate, err)
		}
		return conversation, nil
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.systemPrompt
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.defaultVoice
	}

	conversation := entities.NewConversation(systemPrompt, voiceID, req.ModelID)
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, NewStageError(StagePersist, fmt.Errorf("failed to create conversation: %w", err))
	}

	s.logger.Info("Created conversation", zap.String("conversationID", conversation.ID))
	return conversation, nil
}

// buildHistory assembles the chat request: the system prompt followed by
// the most recent historyLimit non-system messages, oldest first.
func (s *ChatService) buildHistory(ctx context.Context, conversation *entities.Conversation) ([]repositories.ChatMessage, error) {
	messages, err := s.conversations.Messages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	recent := make([]repositories.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == entities.RoleSystem {
			continue
		}
		recent = append(recent, repositories.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	if len(recent) > s.historyLimit {
		recent = recent[len(recent)-s.historyLimit:]
	}

	history := make([]repositories.ChatMessage, 0, len(recent)+1)
	history = append(history, repositories.ChatMessage{
		Role:    entities.RoleSystem,
		Content: conversation.SystemPrompt,
	})
	history = append(history, recent...)

	return history, nil
}

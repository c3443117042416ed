package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/widyatma/wicara/adapters/stt"
	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/auth"
	"github.com/widyatma/wicara/internal/keystore"
	"github.com/widyatma/wicara/internal/ws"
	"github.com/widyatma/wicara/usecase"
)

const maxUploadBytes = 25 << 20 // 25MB audio upload cap

// Server bundles the dependencies the HTTP handlers need
type Server struct {
	chat          *usecase.ChatService
	conversations repositories.ConversationRepository
	audioStore    repositories.AudioRepository
	textToSpeech  repositories.TextToSpeech
	keys          *keystore.Registry
	logger        *zap.Logger
}

// NewServer creates the handler set
func NewServer(
	chat *usecase.ChatService,
	conversations repositories.ConversationRepository,
	audioStore repositories.AudioRepository,
	tts repositories.TextToSpeech,
	keys *keystore.Registry,
	logger *zap.Logger,
) *Server {
	return &Server{
		chat:          chat,
		conversations: conversations,
		audioStore:    audioStore,
		textToSpeech:  tts,
		keys:          keys,
		logger:        logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, s *Server) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "wicara-server",
		})
	})

	v1 := e.Group("/api/v1", s.sessionMiddleware)

	// Session and key management
	v1.POST("/session", s.createSession)
	v1.POST("/api-keys", s.setKeys)
	v1.GET("/api-keys/status", s.keyStatus)
	v1.DELETE("/api-keys", s.resetKeys)

	// Conversations
	v1.POST("/conversations", s.createConversation)
	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id", s.getConversation)
	v1.GET("/conversations/:id/messages", s.getMessages)
	v1.DELETE("/conversations/:id", s.deleteConversation)

	// Recognition model management
	v1.GET("/models", s.listModels)
	v1.POST("/models", s.updateModel)

	// Voice chat pipeline
	v1.POST("/chat", s.processChat)
	v1.POST("/tts", s.synthesize)
	v1.GET("/voices", s.listVoices)
	v1.GET("/audio/:id", s.getAudio)

	// WebSocket endpoint streaming synthesized audio
	e.GET("/ws/tts", func(c echo.Context) error {
		return ws.StreamTTS(c, s.textToSpeech, s.logger)
	}, s.sessionMiddleware)
}

// sessionMiddleware resolves the caller's key store from the bearer token
// and attaches it to the request context. Requests without a token use the
// default store, which falls back to environment keys.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		store := s.keys.Default()

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			claims, err := auth.ValidateToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Session token is invalid or expired",
				})
			}
			store = s.keys.Session(claims.SessionID)
		}

		ctx := keystore.WithStore(c.Request().Context(), store)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) createSession(c echo.Context) error {
	sessionID := uuid.New().String()
	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		s.logger.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	s.logger.Info("Session created", zap.String("sessionID", sessionID))
	return c.JSON(http.StatusOK, SessionResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

func (s *Server) setKeys(c echo.Context) error {
	var req SetKeysRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	store, _ := keystore.FromContext(c.Request().Context())
	store.Set(keystore.KeyRecognition, req.HuggingFaceToken)
	store.Set(keystore.KeyChat, req.OpenAIAPIKey)
	store.Set(keystore.KeySynthesis, req.ElevenLabsAPIKey)

	return s.respondKeyStatus(c, store)
}

func (s *Server) keyStatus(c echo.Context) error {
	store, _ := keystore.FromContext(c.Request().Context())
	return s.respondKeyStatus(c, store)
}

func (s *Server) resetKeys(c echo.Context) error {
	store, _ := keystore.FromContext(c.Request().Context())
	store.Reset()
	return s.respondKeyStatus(c, store)
}

func (s *Server) respondKeyStatus(c echo.Context, store *keystore.KeyStore) error {
	return c.JSON(http.StatusOK, KeyStatusResponse{
		Status:  store.Status(),
		AllSet:  store.AllSet(),
		Missing: store.Missing(),
	})
}

func (s *Server) createConversation(c echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.STTModelID != "" && !stt.ValidModelID(req.STTModelID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_model",
			Message: "Unknown recognition model: " + req.STTModelID,
		})
	}

	conversation := entities.NewConversation(req.SystemPrompt, req.VoiceID, req.STTModelID)
	if err := s.conversations.Create(c.Request().Context(), conversation); err != nil {
		s.logger.Error("Failed to create conversation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "persistence_failed",
			Message: "Failed to create conversation",
		})
	}

	return c.JSON(http.StatusCreated, toConversationResponse(conversation))
}

func (s *Server) listConversations(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	result, err := s.conversations.List(c.Request().Context(), page, pageSize)
	if err != nil {
		s.logger.Error("Failed to list conversations", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "persistence_failed",
			Message: "Failed to list conversations",
		})
	}

	items := make([]ConversationResponse, 0, len(result.Conversations))
	for _, conversation := range result.Conversations {
		items = append(items, toConversationResponse(conversation))
	}
	return c.JSON(http.StatusOK, ConversationListResponse{
		Conversations: items,
		Total:         result.Total,
		Page:          result.Page,
		PageSize:      result.PageSize,
		Pages:         result.Pages,
	})
}

func (s *Server) getConversation(c echo.Context) error {
	conversation, err := s.conversations.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.conversationError(c, err)
	}
	return c.JSON(http.StatusOK, toConversationResponse(conversation))
}

func (s *Server) getMessages(c echo.Context) error {
	id := c.Param("id")
	if _, err := s.conversations.GetByID(c.Request().Context(), id); err != nil {
		return s.conversationError(c, err)
	}

	messages, err := s.conversations.Messages(c.Request().Context(), id)
	if err != nil {
		s.logger.Error("Failed to load messages", zap.String("conversationID", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "persistence_failed",
			Message: "Failed to load messages",
		})
	}

	items := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, toMessageResponse(msg))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"messages":        items,
	})
}

func (s *Server) deleteConversation(c echo.Context) error {
	if err := s.conversations.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.conversationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) conversationError(c echo.Context, err error) error {
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "conversation_not_found",
			Message: "Conversation does not exist",
		})
	}
	s.logger.Error("Conversation lookup failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "persistence_failed",
		Message: "Conversation lookup failed",
	})
}

func (s *Server) listModels(c echo.Context) error {
	return c.JSON(http.StatusOK, ModelListResponse{
		Models:       stt.AvailableModels(),
		DefaultModel: stt.DefaultModelID,
	})
}

func (s *Server) updateModel(c echo.Context) error {
	var req UpdateModelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ConversationID == "" || req.ModelID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Fields 'conversation_id' and 'model_id' are required",
		})
	}
	if !stt.ValidModelID(req.ModelID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_model",
			Message: "Unknown recognition model: " + req.ModelID,
		})
	}

	if err := s.conversations.UpdateSTTModel(c.Request().Context(), req.ConversationID, req.ModelID); err != nil {
		return s.conversationError(c, err)
	}

	s.logger.Info("Recognition model updated",
		zap.String("conversationID", req.ConversationID),
		zap.String("modelID", req.ModelID))
	return c.JSON(http.StatusOK, UpdateModelResponse{
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
	})
}

func (s *Server) getAudio(c echo.Context) error {
	file, err := s.audioStore.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrAudioNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "audio_not_found",
				Message: "Audio file does not exist or has expired",
			})
		}
		s.logger.Error("Audio lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "persistence_failed",
			Message: "Audio lookup failed",
		})
	}
	return c.Blob(http.StatusOK, file.ContentType, file.Data)
}

func (s *Server) processChat(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "Multipart field 'file' with the audio upload is required",
		})
	}
	if fileHeader.Size > maxUploadBytes {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "file_too_large",
			Message: "Audio upload exceeds the size limit",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Cannot read the uploaded file",
		})
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Cannot read the uploaded file",
		})
	}

	withAudio := true
	if v := c.FormValue("with_audio"); v != "" {
		withAudio, _ = strconv.ParseBool(v)
	}

	modelID := c.FormValue("model_id")
	if modelID != "" && !stt.ValidModelID(modelID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_model",
			Message: "Unknown recognition model: " + modelID,
		})
	}

	result, err := s.chat.ProcessTurn(c.Request().Context(), usecase.ChatTurnRequest{
		Audio:          audioBytes,
		ContentType:    fileHeader.Header.Get("Content-Type"),
		ConversationID: c.FormValue("conversation_id"),
		SystemPrompt:   c.FormValue("system_prompt"),
		VoiceID:        c.FormValue("voice_id"),
		ModelID:        modelID,
		WithAudio:      withAudio,
	})
	if err != nil {
		return s.stageError(c, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		ConversationID: result.ConversationID,
		Transcript:     result.Transcript,
		Confidence:     result.Confidence,
		Reply:          result.Reply,
		Audio:          result.Audio,
		AudioID:        result.AudioID,
		AudioAvailable: result.AudioAvailable,
		State:          string(result.State),
	})
}

func (s *Server) synthesize(c echo.Context) error {
	var req TTSRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_text",
			Message: "Field 'text' is required",
		})
	}

	audioBytes, err := s.chat.SynthesizeText(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		return s.stageError(c, err)
	}

	return c.Blob(http.StatusOK, "audio/mpeg", audioBytes)
}

func (s *Server) listVoices(c echo.Context) error {
	voices, err := s.textToSpeech.Voices(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "synthesize_backend_failed",
			Message: "Voice backend unavailable",
		})
	}

	items := make([]VoiceResponse, 0, len(voices))
	for _, voice := range voices {
		items = append(items, VoiceResponse{
			ID:         voice.ID,
			Name:       voice.Name,
			PreviewURL: voice.PreviewURL,
			Category:   voice.Category,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"voices": items})
}

// stageError maps pipeline failures to HTTP statuses: validation problems
// are the caller's fault, upstream backend failures are 502 naming the
// failing stage, persistence failures are 500.
func (s *Server) stageError(c echo.Context, err error) error {
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "conversation_not_found",
			Message: "Conversation does not exist",
		})
	}

	var stageErr *usecase.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case usecase.StageValidate:
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_failed",
				Message: stageErr.Err.Error(),
			})
		case usecase.StageTranscribe, usecase.StageChat, usecase.StageSynthesize:
			s.logger.Error("Upstream backend failed",
				zap.String("stage", string(stageErr.Stage)),
				zap.Error(stageErr.Err))
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   string(stageErr.Stage) + "_backend_failed",
				Message: stageErr.Err.Error(),
			})
		}
	}

	s.logger.Error("Chat turn failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to process the request",
	})
}

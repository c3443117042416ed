package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
	"github.com/widyatma/wicara/internal/keystore"
	"github.com/widyatma/wicara/usecase"
)

type stubConversationRepository struct {
	conversations map[string]*entities.Conversation
	messages      map[string][]*entities.Message
}

func newStubConversationRepository() *stubConversationRepository {
	return &stubConversationRepository{
		conversations: make(map[string]*entities.Conversation),
		messages:      make(map[string][]*entities.Message),
	}
}

func (f *stubConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *stubConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	conversation, ok := f.conversations[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	return conversation, nil
}

func (f *stubConversationRepository) List(ctx context.Context, page, pageSize int) (*repositories.ConversationPage, error) {
	items := make([]*entities.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		items = append(items, c)
	}
	return &repositories.ConversationPage{
		Conversations: items,
		Total:         int64(len(items)),
		Page:          1,
		PageSize:      20,
		Pages:         1,
	}, nil
}

func (f *stubConversationRepository) Delete(ctx context.Context, id string) error {
	if _, ok := f.conversations[id]; !ok {
		return repositories.ErrConversationNotFound
	}
	delete(f.conversations, id)
	delete(f.messages, id)
	return nil
}

func (f *stubConversationRepository) UpdateSTTModel(ctx context.Context, conversationID, modelID string) error {
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	conversation.STTModelID = modelID
	return nil
}

func (f *stubConversationRepository) AppendMessage(ctx context.Context, conversationID string, role entities.Role, content, audioRef string) (*entities.Message, error) {
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	msg := entities.NewMessage(conversationID, conversation.MessageCount, role, content, audioRef)
	conversation.MessageCount++
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return msg, nil
}

func (f *stubConversationRepository) Messages(ctx context.Context, conversationID string) ([]*entities.Message, error) {
	return f.messages[conversationID], nil
}

type stubAudioStore struct {
	files map[string]*entities.AudioFile
}

func newStubAudioStore() *stubAudioStore {
	return &stubAudioStore{files: make(map[string]*entities.AudioFile)}
}

func (f *stubAudioStore) Save(ctx context.Context, file *entities.AudioFile) error {
	f.files[file.ID] = file
	return nil
}

func (f *stubAudioStore) Get(ctx context.Context, id string) (*entities.AudioFile, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, repositories.ErrAudioNotFound
	}
	return file, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (f *stubTranscriber) Transcribe(ctx context.Context, input repositories.AudioInput) (*repositories.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repositories.Transcript{Text: f.text, Confidence: 0.9}, nil
}

type stubChatModel struct {
	reply string
	err   error
}

func (f *stubChatModel) Complete(ctx context.Context, messages []repositories.ChatMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type stubSynthesizer struct {
	audio  []byte
	voices []repositories.Voice
	err    error
}

func (f *stubSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func (f *stubSynthesizer) SynthesizeStream(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *stubSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.voices, nil
}

type testFixture struct {
	echo  *echo.Echo
	repo  *stubConversationRepository
	audio *stubAudioStore
	stt   *stubTranscriber
	chat  *stubChatModel
	tts   *stubSynthesizer
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	repo := newStubConversationRepository()
	audioStore := newStubAudioStore()
	stt := &stubTranscriber{text: "hello"}
	chat := &stubChatModel{reply: "hi there"}
	tts := &stubSynthesizer{
		audio:  []byte("mp3"),
		voices: []repositories.Voice{{ID: "voice-1", Name: "Rachel"}},
	}
	logger := zaptest.NewLogger(t)

	service := usecase.NewChatService(repo, audioStore, stt, chat, tts, usecase.ChatConfig{
		SystemPrompt: "You are a helpful assistant.",
	}, logger)

	e := echo.New()
	InitRoutes(e, NewServer(service, repo, audioStore, tts, keystore.NewRegistry(), logger))

	return &testFixture{echo: e, repo: repo, audio: audioStore, stt: stt, chat: chat, tts: tts}
}

func (fx *testFixture) doJSON(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wicara-server") {
		t.Errorf("Unexpected health body: %s", rec.Body.String())
	}
}

func TestSessionScopedKeys(t *testing.T) {
	fx := newTestFixture(t)

	// Issue a session token
	rec := fx.doJSON(http.MethodPost, "/api/v1/session", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 creating session, got %d: %s", rec.Code, rec.Body.String())
	}
	var session SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("Failed to decode session response: %v", err)
	}
	authHeader := map[string]string{echo.HeaderAuthorization: "Bearer " + session.Token}

	// Set a key for this session
	rec = fx.doJSON(http.MethodPost, "/api/v1/api-keys", SetKeysRequest{
		OpenAIAPIKey: "sk-test",
	}, authHeader)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 setting keys, got %d", rec.Code)
	}
	var status KeyStatusResponse
	json.Unmarshal(rec.Body.Bytes(), &status)
	if !status.Status[keystore.KeyChat] {
		t.Error("Chat key should be reported as set")
	}
	if status.AllSet {
		t.Error("Not all keys were set")
	}

	// Another session must not see the key
	rec = fx.doJSON(http.MethodGet, "/api/v1/api-keys/status", nil, nil)
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status[keystore.KeyChat] {
		t.Error("Default session must not see keys from another session")
	}

	// Reset clears the session's keys
	rec = fx.doJSON(http.MethodDelete, "/api/v1/api-keys", nil, authHeader)
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status[keystore.KeyChat] {
		t.Error("Reset should clear all keys")
	}
}

func TestRejectsInvalidSessionToken(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodGet, "/api/v1/api-keys/status", nil, map[string]string{
		echo.HeaderAuthorization: "Bearer not-a-token",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid token, got %d", rec.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodPost, "/api/v1/conversations", CreateConversationRequest{
		SystemPrompt: "You are a tutor.",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created ConversationResponse
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.SystemPrompt != "You are a tutor." {
		t.Errorf("Unexpected system prompt: %q", created.SystemPrompt)
	}

	rec = fx.doJSON(http.MethodGet, "/api/v1/conversations/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 fetching conversation, got %d", rec.Code)
	}

	rec = fx.doJSON(http.MethodGet, "/api/v1/conversations", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 listing conversations, got %d", rec.Code)
	}

	rec = fx.doJSON(http.MethodDelete, "/api/v1/conversations/"+created.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 deleting conversation, got %d", rec.Code)
	}

	rec = fx.doJSON(http.MethodGet, "/api/v1/conversations/"+created.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func multipartChatRequest(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="clip.mp3"`}
	header["Content-Type"] = []string{"audio/mpeg"}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("Failed to create multipart file: %v", err)
	}
	part.Write([]byte("fake-mp3-bytes"))

	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestChatEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	body, contentType := multipartChatRequest(t, map[string]string{"with_audio": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Transcript != "hello" || resp.Reply != "hi there" {
		t.Errorf("Unexpected chat response: %+v", resp)
	}
	if !resp.AudioAvailable || string(resp.Audio) != "mp3" {
		t.Error("Expected synthesized audio in chat response")
	}
	if resp.ConversationID == "" {
		t.Error("Expected a conversation to be created")
	}

	// The synthesized reply is retrievable by its audio ID
	if resp.AudioID == "" {
		t.Fatal("Expected an audio_id referencing the stored reply")
	}
	audioRec := fx.doJSON(http.MethodGet, "/api/v1/audio/"+resp.AudioID, nil, nil)
	if audioRec.Code != http.StatusOK {
		t.Fatalf("Expected 200 fetching stored audio, got %d", audioRec.Code)
	}
	if audioRec.Body.String() != "mp3" {
		t.Errorf("Expected stored reply bytes, got %q", audioRec.Body.String())
	}
	if ct := audioRec.Header().Get(echo.HeaderContentType); ct != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg content type, got %q", ct)
	}
}

func TestAudioEndpointUnknownID(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodGet, "/api/v1/audio/nonexistent", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown audio id, got %d", rec.Code)
	}
}

func TestModelEndpoints(t *testing.T) {
	fx := newTestFixture(t)

	// Catalog listing
	rec := fx.doJSON(http.MethodGet, "/api/v1/models", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing models, got %d", rec.Code)
	}
	var list ModelListResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Models) == 0 || list.DefaultModel == "" {
		t.Fatalf("Expected a model catalog with a default, got %+v", list)
	}

	// Pin a model on a conversation
	conversation := entities.NewConversation("You are a tutor.", "voice-1", "")
	fx.repo.Create(context.Background(), conversation)

	rec = fx.doJSON(http.MethodPost, "/api/v1/models", UpdateModelRequest{
		ConversationID: conversation.ID,
		ModelID:        list.Models[0].ID,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 updating model, got %d: %s", rec.Code, rec.Body.String())
	}
	if conversation.STTModelID != list.Models[0].ID {
		t.Errorf("Conversation should carry the pinned model, got %q", conversation.STTModelID)
	}

	// Unknown models are rejected
	rec = fx.doJSON(http.MethodPost, "/api/v1/models", UpdateModelRequest{
		ConversationID: conversation.ID,
		ModelID:        "nonexistent/model",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown model, got %d", rec.Code)
	}

	// Unknown conversations are rejected
	rec = fx.doJSON(http.MethodPost, "/api/v1/models", UpdateModelRequest{
		ConversationID: "missing",
		ModelID:        list.Models[0].ID,
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown conversation, got %d", rec.Code)
	}
}

func TestChatEndpointRejectsUnknownModel(t *testing.T) {
	fx := newTestFixture(t)

	body, contentType := multipartChatRequest(t, map[string]string{"model_id": "nonexistent/model"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown model, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatEndpointMissingFile(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodPost, "/api/v1/chat", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a file, got %d", rec.Code)
	}
}

func TestChatEndpointUnknownConversation(t *testing.T) {
	fx := newTestFixture(t)

	body, contentType := multipartChatRequest(t, map[string]string{"conversation_id": "missing"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown conversation, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatEndpointTranscriptionFailure(t *testing.T) {
	fx := newTestFixture(t)
	fx.stt.err = errors.New("backend down")

	body, contentType := multipartChatRequest(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 for transcription failure, got %d", rec.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Error, "transcribe") {
		t.Errorf("Error should name the transcribe stage, got %q", resp.Error)
	}
}

func TestChatEndpointSynthesisDegrades(t *testing.T) {
	fx := newTestFixture(t)
	fx.tts.err = errors.New("voice backend down")

	body, contentType := multipartChatRequest(t, map[string]string{"with_audio": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 despite synthesis failure, got %d", rec.Code)
	}
	var resp ChatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.AudioAvailable {
		t.Error("audio_available should be false after synthesis failure")
	}
	if resp.Reply != "hi there" {
		t.Errorf("Text reply must survive, got %q", resp.Reply)
	}
}

func TestTTSEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodPost, "/api/v1/tts", TTSRequest{Text: "say this"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "mp3" {
		t.Errorf("Expected raw audio body, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg content type, got %q", ct)
	}

	rec = fx.doJSON(http.MethodPost, "/api/v1/tts", TTSRequest{Text: "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", rec.Code)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	fx := newTestFixture(t)

	rec := fx.doJSON(http.MethodGet, "/api/v1/voices", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Rachel") {
		t.Errorf("Expected voice list, got %s", rec.Body.String())
	}
}

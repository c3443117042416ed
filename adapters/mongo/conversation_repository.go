package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
)

// ConversationRepository persists conversations and their ordered message
// lists in two collections. Append order is preserved through a per-message
// sequence number allocated atomically on the conversation document.
type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationRepository creates a MongoDB conversation repository
func NewConversationRepository(db *mongo.Database) repositories.ConversationRepository {
	return &ConversationRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Create implements repositories.ConversationRepository
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}

	if _, err := r.conversations.InsertOne(ctx, conversation); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	if id == "" {
		return nil, repositories.ErrConversationNotFound
	}

	var conversation entities.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	return &conversation, nil
}

// List implements repositories.ConversationRepository
func (r *ConversationRepository) List(ctx context.Context, page, pageSize int) (*repositories.ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	total, err := r.conversations.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.conversations.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := []*entities.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	pages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &repositories.ConversationPage{
		Conversations: conversations,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		Pages:         pages,
	}, nil
}

// Delete implements repositories.ConversationRepository. Removing the
// conversation document first keeps the no-orphan invariant: once it is
// gone no new messages can be appended, and the message sweep below leaves
// nothing behind.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrConversationNotFound
	}

	if _, err := r.messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return fmt.Errorf("failed to delete messages of conversation %s: %w", id, err)
	}

	return nil
}

// AppendMessage implements repositories.ConversationRepository
func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID string, role entities.Role, content, audioRef string) (*entities.Message, error) {
	// Validate before touching the counter so a rejected message never
	// burns a sequence number or bumps updated_at.
	draft := entities.Message{ConversationID: conversationID, Role: role, Content: content}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	// Allocate the next sequence number atomically. The returned document
	// carries the incremented counter, so seq = message_count - 1.
	update := bson.M{
		"$inc": bson.M{"message_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conversation entities.Conversation
	err := r.conversations.FindOneAndUpdate(ctx, bson.M{"_id": conversationID}, update, opts).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to allocate message seq: %w", err)
	}

	message := entities.NewMessage(conversationID, conversation.MessageCount-1, role, content, audioRef)
	if _, err := r.messages.InsertOne(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return message, nil
}

// UpdateSTTModel implements repositories.ConversationRepository
func (r *ConversationRepository) UpdateSTTModel(ctx context.Context, conversationID, modelID string) error {
	update := bson.M{
		"$set": bson.M{
			"stt_model_id": modelID,
			"updated_at":   time.Now(),
		},
	}

	result, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return fmt.Errorf("failed to update recognition model of conversation %s: %w", conversationID, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrConversationNotFound
	}

	return nil
}

// Messages implements repositories.ConversationRepository
func (r *ConversationRepository) Messages(ctx context.Context, conversationID string) ([]*entities.Message, error) {
	opts := options.Find().SetSort(bson.M{"seq": 1})

	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages of conversation %s: %w", conversationID, err)
	}
	defer cursor.Close(ctx)

	messages := []*entities.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

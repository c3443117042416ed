package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/widyatma/wicara/domain/entities"
	"github.com/widyatma/wicara/domain/repositories"
)

// AudioRepository stores audio payloads in a TTL-managed collection.
// MongoDB removes documents once expires_at passes.
type AudioRepository struct {
	files *mongo.Collection
}

// NewAudioRepository creates a MongoDB audio repository
func NewAudioRepository(db *mongo.Database) *AudioRepository {
	return &AudioRepository{
		files: db.Collection("audio_files"),
	}
}

// EnsureIndexes creates the TTL index on expires_at and the lookup index
// on conversation_id. Safe to call on every startup.
func (r *AudioRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.M{"expires_at": 1},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.M{"conversation_id": 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create audio indexes: %w", err)
	}
	return nil
}

// Save implements repositories.AudioRepository
func (r *AudioRepository) Save(ctx context.Context, file *entities.AudioFile) error {
	if file == nil || len(file.Data) == 0 {
		return errors.New("audio file cannot be empty")
	}

	if _, err := r.files.InsertOne(ctx, file); err != nil {
		return fmt.Errorf("failed to save audio file: %w", err)
	}

	return nil
}

// Get implements repositories.AudioRepository
func (r *AudioRepository) Get(ctx context.Context, id string) (*entities.AudioFile, error) {
	if id == "" {
		return nil, repositories.ErrAudioNotFound
	}

	var file entities.AudioFile
	err := r.files.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrAudioNotFound
		}
		return nil, fmt.Errorf("failed to get audio file %s: %w", id, err)
	}

	return &file, nil
}

var _ repositories.AudioRepository = (*AudioRepository)(nil)

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	chaterrors "meistro/internal/chat/errors"
	"meistro/pkg/config"
	"meistro/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReadMarkerCollection = "Read_markers"
)

// ReadMarkerRepository stores per-(conversation, user) read pointers. The
// collection carries a unique compound index on conversation_id + user_id.
type ReadMarkerRepository interface {
	Upsert(ctx context.Context, conversationID string, userID string, lastReadAt time.Time) error
	Find(ctx context.Context, conversationID string, userID string) (*model.ReadMarker, error)
}

type mongoReadMarkerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReadMarkerRepository(cfg *config.Config) ReadMarkerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReadMarkerRepository{
		cfg:        cfg,
		collection: db.Collection(ReadMarkerCollection),
	}
}

// Upsert advances the marker. $max keeps the marker monotonic even when two
// mark-read calls for the same user race.
func (r *mongoReadMarkerRepository) Upsert(ctx context.Context, conversationID string, userID string, lastReadAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
	}
	update := bson.M{
		"$max": bson.M{"last_read_at": lastReadAt},
		"$setOnInsert": bson.M{
			"conversation_id": conversationID,
			"user_id":         userID,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert read marker: %w", err)
	}
	return nil
}

func (r *mongoReadMarkerRepository) Find(ctx context.Context, conversationID string, userID string) (*model.ReadMarker, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
	}

	var marker model.ReadMarker
	err := r.collection.FindOne(ctx, filter).Decode(&marker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chaterrors.ErrMarkerNotFound
		}
		return nil, fmt.Errorf("failed to find read marker: %w", err)
	}

	return &marker, nil
}

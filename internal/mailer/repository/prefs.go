package repository

import (
	"context"
	"errors"
	"fmt"

	"meistro/pkg/config"
	"meistro/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	PrefsCollection = "Notification_prefs"
)

var ErrPrefsNotFound = errors.New("notification preferences not found")

// NotificationPrefsRepository reads per-user email gates. The collection is
// owned by the account service; this module never writes it.
type NotificationPrefsRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.NotificationPreferences, error)
}

type mongoPrefsRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPrefsRepository(cfg *config.Config) NotificationPrefsRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPrefsRepository{
		cfg:        cfg,
		collection: db.Collection(PrefsCollection),
	}
}

func (r *mongoPrefsRepository) FindByUserID(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var prefs model.NotificationPreferences
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&prefs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPrefsNotFound
		}
		return nil, fmt.Errorf("failed to find notification preferences: %w", err)
	}

	return &prefs, nil
}

package repository

import (
	"context"
	"rinkside/pkg/config"
	"rinkside/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LockCollection = "Event_locks"
)

// LockRepository provides advisory locks held across a check-then-commit
// sequence. Acquisition relies on the unique _id index: a duplicate-key
// insert means someone else holds the lock.
type LockRepository interface {
	Create(ctx context.Context, lock *model.EventLock) (*model.EventLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoLockRepository struct {
	collection *mongo.Collection
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		collection: db.Collection(LockCollection),
	}
}

func (r *mongoLockRepository) Create(ctx context.Context, lock *model.EventLock) (*model.EventLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLockHeld
		}
		return nil, err
	}

	return lock, nil
}

func (r *mongoLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

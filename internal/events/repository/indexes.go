package repository

import (
	"context"
	"fmt"
	"rinkside/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. Creation is
// idempotent; Mongo ignores indexes that already exist.
func EnsureIndexes(ctx context.Context, cfg *config.Config) error {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)

	events := []mongo.IndexModel{
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "window.start", Value: 1}}},
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "recurrence_rule_id", Value: 1}}},
		{Keys: bson.D{{Key: "series_id", Value: 1}}},
	}
	if _, err := db.Collection(EventCollection).Indexes().CreateMany(ctx, events); err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	bookings := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "window.start", Value: 1}}},
	}
	if _, err := db.Collection(BookingCollection).Indexes().CreateMany(ctx, bookings); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	// Stale advisory locks are reaped by the TTL monitor once expires_at
	// passes, so a crashed holder cannot block an identifier forever.
	lockTTL := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := db.Collection(LockCollection).Indexes().CreateOne(ctx, lockTTL); err != nil {
		return fmt.Errorf("failed to create lock TTL index: %w", err)
	}

	return nil
}

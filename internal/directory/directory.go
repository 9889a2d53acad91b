package directory

import (
	"context"
	"fmt"
	"rinkside/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LocationCollection = "Locations"
	ResourceCollection = "Resources"
	TeamCollection     = "Teams"
)

// Directory answers existence checks for the references an event carries.
// The core treats it as a boolean exists(id) capability; whether lookups are
// local or remote is an adapter concern.
type Directory interface {
	LocationExists(ctx context.Context, id string) (bool, error)
	ResourceExists(ctx context.Context, id string) (bool, error)
	TeamExists(ctx context.Context, id string) (bool, error)
}

type mongoDirectory struct {
	locations *mongo.Collection
	resources *mongo.Collection
	teams     *mongo.Collection
}

func NewMongoDirectory(cfg *config.Config) Directory {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDirectory{
		locations: db.Collection(LocationCollection),
		resources: db.Collection(ResourceCollection),
		teams:     db.Collection(TeamCollection),
	}
}

func (d *mongoDirectory) LocationExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, d.locations, id)
}

func (d *mongoDirectory) ResourceExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, d.resources, id)
}

func (d *mongoDirectory) TeamExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, d.teams, id)
}

func exists(ctx context.Context, collection *mongo.Collection, id string) (bool, error) {
	count, err := collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return count > 0, nil
}

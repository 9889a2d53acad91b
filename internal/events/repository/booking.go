package repository

import (
	"context"
	"fmt"
	"rinkside/pkg/config"
	"rinkside/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingCollection = "ResourceBookings"
)

type BookingRepository interface {
	CreateMany(ctx context.Context, bookings []*model.ResourceBooking) error
	FindByEvent(ctx context.Context, eventID string) ([]*model.ResourceBooking, error)
	CancelByEvent(ctx context.Context, eventID string) error
	DeleteByEvent(ctx context.Context, eventID string) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(BookingCollection),
	}
}

func (r *mongoBookingRepository) CreateMany(ctx context.Context, bookings []*model.ResourceBooking) error {
	if len(bookings) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(bookings))
	for _, b := range bookings {
		b.CreatedAt = now
		docs = append(docs, b)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create resource bookings: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByEvent(ctx context.Context, eventID string) ([]*model.ResourceBooking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "resource_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find resource bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.ResourceBooking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode resource bookings: %w", err)
	}
	return bookings, nil
}

// CancelByEvent marks every booking of the event cancelled, in lockstep with
// an event soft-cancel.
func (r *mongoBookingRepository) CancelByEvent(ctx context.Context, eventID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": model.BookingCancelled}}
	if _, err := r.collection.UpdateMany(ctx, bson.M{"event_id": eventID}, update); err != nil {
		return fmt.Errorf("failed to cancel resource bookings: %w", err)
	}
	return nil
}

// DeleteByEvent removes the bookings outright. Used when an update rewrites
// the booking set inside a transaction.
func (r *mongoBookingRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"event_id": eventID}); err != nil {
		return fmt.Errorf("failed to delete resource bookings: %w", err)
	}
	return nil
}

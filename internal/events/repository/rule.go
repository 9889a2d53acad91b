package repository

import (
	"context"
	"errors"
	"fmt"
	"rinkside/pkg/config"
	"rinkside/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	RuleCollection = "RecurrenceRules"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *model.RecurrenceRule) error
	FindByID(ctx context.Context, id string) (*model.RecurrenceRule, error)
	Update(ctx context.Context, rule *model.RecurrenceRule) error
}

type mongoRuleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRuleRepository(cfg *config.Config) RuleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRuleRepository{
		cfg:        cfg,
		collection: db.Collection(RuleCollection),
	}
}

func (r *mongoRuleRepository) Create(ctx context.Context, rule *model.RecurrenceRule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("failed to create recurrence rule: %w", err)
	}
	return nil
}

func (r *mongoRuleRepository) FindByID(ctx context.Context, id string) (*model.RecurrenceRule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var rule model.RecurrenceRule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to find recurrence rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoRuleRepository) Update(ctx context.Context, rule *model.RecurrenceRule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return fmt.Errorf("failed to update recurrence rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

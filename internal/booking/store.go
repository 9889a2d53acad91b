package booking

import (
	"context"
	"rinkside/internal/events/repository"
	"rinkside/pkg/model"
)

// detectorStore adapts the event and rule repositories to the read-only view
// the conflict detector expects.
type detectorStore struct {
	events repository.EventRepository
	rules  repository.RuleRepository
}

func (s detectorStore) FindSingleOverlapping(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error) {
	return s.events.FindSingleOverlapping(ctx, orgID, window)
}

func (s detectorStore) FindRecurringAnchors(ctx context.Context, orgID string) ([]*model.Event, error) {
	return s.events.FindRecurringAnchors(ctx, orgID)
}

func (s detectorStore) GetRule(ctx context.Context, ruleID string) (*model.RecurrenceRule, error) {
	return s.rules.FindByID(ctx, ruleID)
}

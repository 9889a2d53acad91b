package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"rinkside/internal/events/repository"
	"rinkside/internal/series"
	"rinkside/pkg/config"
	mongotx "rinkside/pkg/db/mongo"
	apperrors "rinkside/pkg/errors"
	"rinkside/pkg/logger"
	"rinkside/pkg/model"
	"rinkside/pkg/notify"
)

const (
	orgID      = "11111111-1111-4111-8111-111111111111"
	rinkID     = "22222222-2222-4222-8222-222222222222"
	teamID     = "33333333-3333-4333-8333-333333333333"
	locationID = "44444444-4444-4444-8444-444444444444"
	eventID    = "55555555-5555-4555-8555-555555555555"
	ruleID     = "66666666-6666-4666-8666-666666666666"
)

type mockEventRepo struct {
	createFn                func(ctx context.Context, event *model.Event) error
	findByIDFn              func(ctx context.Context, id string) (*model.Event, error)
	updateFn                func(ctx context.Context, event *model.Event) error
	softCancelFn            func(ctx context.Context, id string, at time.Time) error
	findByOrganizationFn    func(ctx context.Context, orgID string, window *model.TimeWindow, limit int, offset int64) ([]*model.Event, error)
	countByOrganizationFn   func(ctx context.Context, orgID string, window *model.TimeWindow) (int64, error)
	findSingleOverlappingFn func(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error)
	findRecurringAnchorsFn  func(ctx context.Context, orgID string) ([]*model.Event, error)
	findBySeriesFn          func(ctx context.Context, seriesID string) ([]*model.Event, error)
	transactions            int
}

func (m *mockEventRepo) Create(ctx context.Context, event *model.Event) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockEventRepo) Update(ctx context.Context, event *model.Event) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, event)
	}
	return nil
}

func (m *mockEventRepo) SoftCancel(ctx context.Context, id string, at time.Time) error {
	if m.softCancelFn != nil {
		return m.softCancelFn(ctx, id, at)
	}
	return nil
}

func (m *mockEventRepo) FindByOrganization(ctx context.Context, orgID string, window *model.TimeWindow, limit int, offset int64) ([]*model.Event, error) {
	if m.findByOrganizationFn != nil {
		return m.findByOrganizationFn(ctx, orgID, window, limit, offset)
	}
	return nil, nil
}

func (m *mockEventRepo) CountByOrganization(ctx context.Context, orgID string, window *model.TimeWindow) (int64, error) {
	if m.countByOrganizationFn != nil {
		return m.countByOrganizationFn(ctx, orgID, window)
	}
	return 0, nil
}

func (m *mockEventRepo) FindSingleOverlapping(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error) {
	if m.findSingleOverlappingFn != nil {
		return m.findSingleOverlappingFn(ctx, orgID, window)
	}
	return nil, nil
}

func (m *mockEventRepo) FindRecurringAnchors(ctx context.Context, orgID string) ([]*model.Event, error) {
	if m.findRecurringAnchorsFn != nil {
		return m.findRecurringAnchorsFn(ctx, orgID)
	}
	return nil, nil
}

func (m *mockEventRepo) FindBySeries(ctx context.Context, seriesID string) ([]*model.Event, error) {
	if m.findBySeriesFn != nil {
		return m.findBySeriesFn(ctx, seriesID)
	}
	return nil, nil
}

func (m *mockEventRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	m.transactions++
	return fn(nil)
}

type mockRuleRepo struct {
	createFn   func(ctx context.Context, rule *model.RecurrenceRule) error
	findByIDFn func(ctx context.Context, id string) (*model.RecurrenceRule, error)
	updateFn   func(ctx context.Context, rule *model.RecurrenceRule) error
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *model.RecurrenceRule) error {
	if m.createFn != nil {
		return m.createFn(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) FindByID(ctx context.Context, id string) (*model.RecurrenceRule, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, repository.ErrRuleNotFound
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *model.RecurrenceRule) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, rule)
	}
	return nil
}

type mockBookingRepo struct {
	created   []*model.ResourceBooking
	cancelled []string
	deleted   []string
}

func (m *mockBookingRepo) CreateMany(ctx context.Context, bookings []*model.ResourceBooking) error {
	m.created = append(m.created, bookings...)
	return nil
}

func (m *mockBookingRepo) FindByEvent(ctx context.Context, eventID string) ([]*model.ResourceBooking, error) {
	return nil, nil
}

func (m *mockBookingRepo) CancelByEvent(ctx context.Context, eventID string) error {
	m.cancelled = append(m.cancelled, eventID)
	return nil
}

func (m *mockBookingRepo) DeleteByEvent(ctx context.Context, eventID string) error {
	m.deleted = append(m.deleted, eventID)
	return nil
}

type mockLockRepo struct {
	createFn func(ctx context.Context, lock *model.EventLock) (*model.EventLock, error)
	acquired []string
	released []string
}

func (m *mockLockRepo) Create(ctx context.Context, lock *model.EventLock) (*model.EventLock, error) {
	if m.createFn != nil {
		return m.createFn(ctx, lock)
	}
	m.acquired = append(m.acquired, lock.ID)
	return lock, nil
}

func (m *mockLockRepo) Delete(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockDirectory struct {
	missing map[string]bool
}

func (m *mockDirectory) LocationExists(ctx context.Context, id string) (bool, error) {
	return !m.missing[id], nil
}

func (m *mockDirectory) ResourceExists(ctx context.Context, id string) (bool, error) {
	return !m.missing[id], nil
}

func (m *mockDirectory) TeamExists(ctx context.Context, id string) (bool, error) {
	return !m.missing[id], nil
}

type mockNotifier struct {
	decisions []notify.Decision
}

func (m *mockNotifier) Publish(ctx context.Context, decision notify.Decision) error {
	m.decisions = append(m.decisions, decision)
	return nil
}

type testDeps struct {
	events   *mockEventRepo
	rules    *mockRuleRepo
	bookings *mockBookingRepo
	locks    *mockLockRepo
	dir      *mockDirectory
	notifier *mockNotifier
}

func newTestCoordinator(t *testing.T, deps *testDeps) Coordinator {
	t.Helper()
	cfg := &config.Config{
		Log:                  logger.Discard(),
		BookingLockTTL:       10 * time.Second,
		ExpansionHorizonDays: 731,
	}
	if deps.events == nil {
		deps.events = &mockEventRepo{}
	}
	if deps.rules == nil {
		deps.rules = &mockRuleRepo{}
	}
	if deps.bookings == nil {
		deps.bookings = &mockBookingRepo{}
	}
	if deps.locks == nil {
		deps.locks = &mockLockRepo{}
	}
	if deps.dir == nil {
		deps.dir = &mockDirectory{}
	}
	if deps.notifier == nil {
		deps.notifier = &mockNotifier{}
	}
	return NewCoordinator(cfg, deps.events, deps.rules, deps.bookings, deps.locks, deps.dir, deps.notifier)
}

func practiceWindow() model.TimeWindow {
	return model.TimeWindow{
		Start: time.Date(2025, time.July, 10, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.July, 10, 19, 30, 0, 0, time.UTC),
	}
}

func validCreateRequest() *CreateRequest {
	return &CreateRequest{
		Event: model.Event{
			OrganizationID: orgID,
			Title:          "  Thursday   Practice ",
			Type:           model.EventTypePractice,
			Window:         practiceWindow(),
			ResourceIDs:    []string{rinkID},
		},
	}
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected an AppError, got %T (%v)", err, err)
	}
	return appErr.Code
}

func TestCreateEvent(t *testing.T) {
	var stored *model.Event
	deps := &testDeps{
		events: &mockEventRepo{
			createFn: func(ctx context.Context, event *model.Event) error {
				stored = event
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	event, err := coordinator.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.ID == "" {
		t.Error("expected a generated event ID")
	}
	if event.Status != model.StatusScheduled {
		t.Errorf("expected default status scheduled, got %s", event.Status)
	}
	if event.Title != "Thursday Practice" {
		t.Errorf("expected normalized title, got %q", event.Title)
	}
	if stored == nil {
		t.Fatal("expected the event to be persisted")
	}
	if deps.events.transactions != 1 {
		t.Errorf("expected one transaction, got %d", deps.events.transactions)
	}
	if len(deps.bookings.created) != 1 || deps.bookings.created[0].ResourceID != rinkID {
		t.Errorf("expected one resource booking for the rink, got %+v", deps.bookings.created)
	}
	if deps.bookings.created[0].Status != model.BookingPending {
		t.Errorf("expected a pending booking, got %s", deps.bookings.created[0].Status)
	}
	if len(deps.locks.acquired) != 1 || deps.locks.acquired[0] != "resource_"+rinkID {
		t.Errorf("expected a resource lock, got %v", deps.locks.acquired)
	}
	if len(deps.locks.released) != len(deps.locks.acquired) {
		t.Errorf("expected every lock to be released, acquired %v released %v", deps.locks.acquired, deps.locks.released)
	}
	if len(deps.notifier.decisions) != 1 || deps.notifier.decisions[0].Kind != notify.KindEventCreated {
		t.Errorf("expected one event.created decision, got %+v", deps.notifier.decisions)
	}
}

func TestCreateRecurringEvent(t *testing.T) {
	var storedRule *model.RecurrenceRule
	deps := &testDeps{
		rules: &mockRuleRepo{
			createFn: func(ctx context.Context, rule *model.RecurrenceRule) error {
				storedRule = rule
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	req := validCreateRequest()
	req.Rule = &model.RecurrenceRule{
		Frequency: model.FrequencyWeekly,
		StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		WeekDays:  []int{4},
	}

	event, err := coordinator.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if storedRule == nil {
		t.Fatal("expected the rule to be persisted")
	}
	if storedRule.Interval != 1 {
		t.Errorf("expected the interval to default to 1, got %d", storedRule.Interval)
	}
	if event.RecurrenceRuleID != storedRule.ID {
		t.Error("expected the anchor to reference the stored rule")
	}
	if event.SeriesID != event.ID {
		t.Error("expected the anchor to reference its own series")
	}
}

func TestCreateConflictRejected(t *testing.T) {
	existing := &model.Event{
		ID:             eventID,
		OrganizationID: orgID,
		Title:          "Existing Booking",
		Status:         model.StatusScheduled,
		Window: model.TimeWindow{
			Start: time.Date(2025, time.July, 10, 17, 0, 0, 0, time.UTC),
			End:   time.Date(2025, time.July, 10, 19, 0, 0, 0, time.UTC),
		},
		ResourceIDs: []string{rinkID},
	}

	created := false
	deps := &testDeps{
		events: &mockEventRepo{
			findSingleOverlappingFn: func(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error) {
				return []*model.Event{existing}, nil
			},
			createFn: func(ctx context.Context, event *model.Event) error {
				created = true
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	_, err := coordinator.Create(context.Background(), validCreateRequest())
	if code := appErrCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %s", code)
	}

	var appErr *apperrors.AppError
	errors.As(err, &appErr)
	if appErr.Details["conflicts"] == nil {
		t.Error("expected the conflict entries in the error details")
	}
	if created {
		t.Error("expected no event to be created on conflict")
	}
	if len(deps.bookings.created) != 0 {
		t.Error("expected no bookings to be created on conflict")
	}
	if len(deps.locks.released) != len(deps.locks.acquired) {
		t.Error("expected locks to be released after a rejected booking")
	}
}

func TestCreateLockContention(t *testing.T) {
	deps := &testDeps{
		locks: &mockLockRepo{
			createFn: func(ctx context.Context, lock *model.EventLock) (*model.EventLock, error) {
				return nil, repository.ErrLockHeld
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	_, err := coordinator.Create(context.Background(), validCreateRequest())
	if code := appErrCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %s", code)
	}
	if deps.events.transactions != 0 {
		t.Error("expected no transaction while the lock is held elsewhere")
	}
}

func TestCreateValidationFailure(t *testing.T) {
	coordinator := newTestCoordinator(t, &testDeps{})

	req := validCreateRequest()
	req.Event.Title = ""

	_, err := coordinator.Create(context.Background(), req)
	if code := appErrCode(t, err); code != apperrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestCreateInvalidRule(t *testing.T) {
	coordinator := newTestCoordinator(t, &testDeps{})

	req := validCreateRequest()
	req.Rule = &model.RecurrenceRule{
		Frequency: model.FrequencyWeekly,
		StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		WeekDays:  []int{9},
	}

	_, err := coordinator.Create(context.Background(), req)
	if code := appErrCode(t, err); code != apperrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestCreateUnknownReference(t *testing.T) {
	deps := &testDeps{dir: &mockDirectory{missing: map[string]bool{locationID: true}}}
	coordinator := newTestCoordinator(t, deps)

	req := validCreateRequest()
	req.Event.LocationID = locationID

	_, err := coordinator.Create(context.Background(), req)
	if code := appErrCode(t, err); code != apperrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestUpdateEvent(t *testing.T) {
	existing := &model.Event{
		ID:             eventID,
		OrganizationID: orgID,
		Title:          "Thursday Practice",
		Type:           model.EventTypePractice,
		Status:         model.StatusScheduled,
		Visibility:     model.VisibilityTeam,
		Window:         practiceWindow(),
		ResourceIDs:    []string{rinkID},
	}

	var updated *model.Event
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return existing, nil
			},
			updateFn: func(ctx context.Context, event *model.Event) error {
				updated = event
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	title := "Evening Practice"
	got, err := coordinator.Update(context.Background(), eventID, &model.EventUpdate{Title: &title})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Title != "Evening Practice" {
		t.Errorf("expected the merged title, got %q", got.Title)
	}
	if updated == nil {
		t.Fatal("expected the event to be persisted")
	}
	// The booking set is rewritten under the same transaction.
	if len(deps.bookings.deleted) != 1 || len(deps.bookings.created) != 1 {
		t.Errorf("expected the bookings to be rewritten, deleted %v created %v", deps.bookings.deleted, deps.bookings.created)
	}
	if len(deps.notifier.decisions) != 1 || deps.notifier.decisions[0].Kind != notify.KindEventUpdated {
		t.Errorf("expected an event.updated decision, got %+v", deps.notifier.decisions)
	}
}

func TestUpdateErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		coordinator := newTestCoordinator(t, &testDeps{})
		title := "Evening Practice"
		_, err := coordinator.Update(context.Background(), eventID, &model.EventUpdate{Title: &title})
		if code := appErrCode(t, err); code != apperrors.CodeNotFound {
			t.Errorf("expected NOT_FOUND, got %s", code)
		}
	})

	t.Run("cancelled event", func(t *testing.T) {
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return &model.Event{ID: eventID, Status: model.StatusCancelled}, nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)
		title := "Evening Practice"
		_, err := coordinator.Update(context.Background(), eventID, &model.EventUpdate{Title: &title})
		if code := appErrCode(t, err); code != apperrors.CodeConflict {
			t.Errorf("expected CONFLICT, got %s", code)
		}
	})
}

func TestCancelEvent(t *testing.T) {
	existing := &model.Event{
		ID:             eventID,
		OrganizationID: orgID,
		Status:         model.StatusScheduled,
		Window:         practiceWindow(),
	}
	cancelled := false
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return existing, nil
			},
			softCancelFn: func(ctx context.Context, id string, at time.Time) error {
				cancelled = true
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	if err := coordinator.Cancel(context.Background(), eventID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cancelled {
		t.Error("expected the event to be soft-cancelled")
	}
	if len(deps.bookings.cancelled) != 1 {
		t.Error("expected the resource bookings to be cancelled with the event")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return &model.Event{ID: eventID, Status: model.StatusCancelled}, nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	if err := coordinator.Cancel(context.Background(), eventID); err != nil {
		t.Fatalf("expected cancelling twice to succeed, got %v", err)
	}
	if deps.events.transactions != 0 {
		t.Error("expected no transaction for an already-cancelled event")
	}
}

func TestOccurrences(t *testing.T) {
	anchor := &model.Event{
		ID:               eventID,
		SeriesID:         eventID,
		OrganizationID:   orgID,
		Title:            "Thursday Practice",
		Status:           model.StatusScheduled,
		RecurrenceRuleID: ruleID,
		Window:           practiceWindow(),
	}
	rule := &model.RecurrenceRule{
		ID:        ruleID,
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		WeekDays:  []int{4},
	}
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return anchor, nil
			},
		},
		rules: &mockRuleRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
				return rule, nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	queryRange := model.TimeWindow{
		Start: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
	}
	occurrences, err := coordinator.Occurrences(context.Background(), eventID, queryRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 4 {
		t.Errorf("expected 4 July occurrences, got %d", len(occurrences))
	}
}

func TestOccurrencesNotRecurring(t *testing.T) {
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return &model.Event{ID: eventID, Status: model.StatusScheduled, Window: practiceWindow()}, nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	queryRange := model.TimeWindow{
		Start: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := coordinator.Occurrences(context.Background(), eventID, queryRange)
	if code := appErrCode(t, err); code != apperrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %s", code)
	}
}

func TestCheckConflicts(t *testing.T) {
	existing := &model.Event{
		ID:             eventID,
		OrganizationID: orgID,
		Status:         model.StatusScheduled,
		Window:         practiceWindow(),
		ResourceIDs:    []string{rinkID},
	}
	deps := &testDeps{
		events: &mockEventRepo{
			findSingleOverlappingFn: func(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error) {
				return []*model.Event{existing}, nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	candidate := model.Candidate{
		OrganizationID: orgID,
		Window:         practiceWindow(),
		ResourceIDs:    []string{rinkID},
	}
	entries, err := coordinator.CheckConflicts(context.Background(), candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ConflictingEventID != eventID {
		t.Errorf("expected one conflict with %s, got %+v", eventID, entries)
	}
}

func TestEditSeriesSingle(t *testing.T) {
	anchor := &model.Event{
		ID:               eventID,
		SeriesID:         eventID,
		OrganizationID:   orgID,
		Title:            "Thursday Practice",
		Type:             model.EventTypePractice,
		Status:           model.StatusScheduled,
		Visibility:       model.VisibilityTeam,
		RecurrenceRuleID: ruleID,
		Window:           practiceWindow(),
	}
	rule := &model.RecurrenceRule{
		ID:        ruleID,
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		WeekDays:  []int{4},
	}

	var updatedRule *model.RecurrenceRule
	var createdEvent *model.Event
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return anchor, nil
			},
			createFn: func(ctx context.Context, event *model.Event) error {
				createdEvent = event
				return nil
			},
		},
		rules: &mockRuleRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
				return rule, nil
			},
			updateFn: func(ctx context.Context, r *model.RecurrenceRule) error {
				updatedRule = r
				return nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	date := time.Date(2025, time.July, 17, 0, 0, 0, 0, time.UTC)
	result, err := coordinator.EditSeries(context.Background(), eventID, date, series.Changes{}, series.ModeSingle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updatedRule == nil || !updatedRule.HasException(date) {
		t.Error("expected the exception to be persisted")
	}
	if createdEvent == nil || createdEvent.ParentEventID != eventID {
		t.Error("expected the exception instance to be persisted")
	}
	if result.NewEvent == nil {
		t.Error("expected the result to carry the new instance")
	}
	if len(deps.notifier.decisions) != 1 || deps.notifier.decisions[0].Kind != notify.KindSeriesEdited {
		t.Errorf("expected a series.edited decision, got %+v", deps.notifier.decisions)
	}
}

func TestEditSeriesAllReschedule(t *testing.T) {
	newAnchor := func() *model.Event {
		return &model.Event{
			ID:               eventID,
			SeriesID:         eventID,
			OrganizationID:   orgID,
			Title:            "Thursday Practice",
			Type:             model.EventTypePractice,
			Status:           model.StatusScheduled,
			Visibility:       model.VisibilityTeam,
			RecurrenceRuleID: ruleID,
			ResourceIDs:      []string{rinkID},
			Window:           practiceWindow(),
		}
	}
	weeklyRule := func() *model.RecurrenceRule {
		return &model.RecurrenceRule{
			ID:        ruleID,
			Frequency: model.FrequencyWeekly,
			Interval:  1,
			StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
			WeekDays:  []int{4},
		}
	}
	movedWindow := model.TimeWindow{
		Start: time.Date(2025, time.July, 10, 20, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.July, 10, 21, 0, 0, 0, time.UTC),
	}
	moveChanges := series.Changes{Event: model.EventUpdate{Window: &movedWindow}}
	date := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	t.Run("window move onto an occupied slot is rejected", func(t *testing.T) {
		blocker := &model.Event{
			ID:             "88888888-8888-4888-8888-888888888888",
			OrganizationID: orgID,
			Title:          "Existing Booking",
			Status:         model.StatusScheduled,
			Window:         movedWindow,
			ResourceIDs:    []string{rinkID},
		}

		updated := false
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return newAnchor(), nil
				},
				findSingleOverlappingFn: func(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error) {
					return []*model.Event{blocker}, nil
				},
				updateFn: func(ctx context.Context, event *model.Event) error {
					updated = true
					return nil
				},
			},
			rules: &mockRuleRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
					return weeklyRule(), nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)

		_, err := coordinator.EditSeries(context.Background(), eventID, date, moveChanges, series.ModeAll)
		if code := appErrCode(t, err); code != apperrors.CodeConflict {
			t.Fatalf("expected CONFLICT, got %s", code)
		}
		if updated {
			t.Error("expected the anchor update not to be persisted on conflict")
		}
		if len(deps.locks.released) != len(deps.locks.acquired) {
			t.Error("expected locks to be released after the rejected edit")
		}
	})

	t.Run("window move onto a free slot commits under locks", func(t *testing.T) {
		var updated *model.Event
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return newAnchor(), nil
				},
				updateFn: func(ctx context.Context, event *model.Event) error {
					updated = event
					return nil
				},
			},
			rules: &mockRuleRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
					return weeklyRule(), nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)

		result, err := coordinator.EditSeries(context.Background(), eventID, date, moveChanges, series.ModeAll)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated == nil || !updated.Window.Start.Equal(movedWindow.Start) {
			t.Fatal("expected the moved anchor to be persisted")
		}
		if result.UpdatedAnchor == nil {
			t.Error("expected the result to carry the updated anchor")
		}
		if len(deps.locks.acquired) != 1 || deps.locks.acquired[0] != "resource_"+rinkID {
			t.Errorf("expected a resource lock for the rescheduled series, got %v", deps.locks.acquired)
		}
		// Bookings follow the moved window.
		if len(deps.bookings.deleted) != 1 || len(deps.bookings.created) != 1 {
			t.Errorf("expected the bookings to be rewritten, deleted %v created %+v", deps.bookings.deleted, deps.bookings.created)
		}
		if !deps.bookings.created[0].Window.Start.Equal(movedWindow.Start) {
			t.Errorf("expected the booking on the new window, got %v", deps.bookings.created[0].Window.Start)
		}
	})

	t.Run("title-only edit skips the lock gate", func(t *testing.T) {
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return newAnchor(), nil
				},
			},
			rules: &mockRuleRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
					return weeklyRule(), nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)

		title := "Renamed Practice"
		changes := series.Changes{Event: model.EventUpdate{Title: &title}}
		if _, err := coordinator.EditSeries(context.Background(), eventID, date, changes, series.ModeAll); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(deps.locks.acquired) != 0 {
			t.Errorf("expected no locks for an edit that cannot conflict, got %v", deps.locks.acquired)
		}
	})
}

func TestEditSeriesErrors(t *testing.T) {
	t.Run("non-recurring event", func(t *testing.T) {
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return &model.Event{ID: eventID, Status: model.StatusScheduled, Window: practiceWindow()}, nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)
		_, err := coordinator.EditSeries(context.Background(), eventID, time.Now(), series.Changes{}, series.ModeSingle)
		if code := appErrCode(t, err); code != apperrors.CodeInvalidInput {
			t.Errorf("expected INVALID_INPUT, got %s", code)
		}
	})

	t.Run("exception instance is not an anchor", func(t *testing.T) {
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return &model.Event{
						ID:            eventID,
						ParentEventID: "77777777-7777-4777-8777-777777777777",
						Status:        model.StatusScheduled,
						Window:        practiceWindow(),
					}, nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)
		_, err := coordinator.EditSeries(context.Background(), eventID, time.Now(), series.Changes{}, series.ModeSingle)
		if code := appErrCode(t, err); code != apperrors.CodeInvalidInput {
			t.Errorf("expected INVALID_INPUT, got %s", code)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		anchor := &model.Event{
			ID:               eventID,
			SeriesID:         eventID,
			OrganizationID:   orgID,
			Status:           model.StatusScheduled,
			RecurrenceRuleID: ruleID,
			Window:           practiceWindow(),
		}
		deps := &testDeps{
			events: &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return anchor, nil
				},
			},
			rules: &mockRuleRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
					return &model.RecurrenceRule{ID: ruleID, Frequency: model.FrequencyDaily, Interval: 1, StartDate: practiceWindow().Start}, nil
				},
			},
		}
		coordinator := newTestCoordinator(t, deps)
		_, err := coordinator.EditSeries(context.Background(), eventID, time.Now(), series.Changes{}, series.Mode("weird"))
		if code := appErrCode(t, err); code != apperrors.CodeInvalidInput {
			t.Errorf("expected INVALID_INPUT, got %s", code)
		}
	})
}

func TestDeleteSeriesAll(t *testing.T) {
	anchor := &model.Event{
		ID:               eventID,
		SeriesID:         eventID,
		OrganizationID:   orgID,
		Status:           model.StatusScheduled,
		RecurrenceRuleID: ruleID,
		Window:           practiceWindow(),
	}
	rule := &model.RecurrenceRule{
		ID:        ruleID,
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		StartDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		WeekDays:  []int{4},
	}

	cancelled := false
	deps := &testDeps{
		events: &mockEventRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
				return anchor, nil
			},
			softCancelFn: func(ctx context.Context, id string, at time.Time) error {
				cancelled = true
				return nil
			},
		},
		rules: &mockRuleRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
				return rule, nil
			},
		},
	}
	coordinator := newTestCoordinator(t, deps)

	date := time.Date(2025, time.July, 17, 0, 0, 0, 0, time.UTC)
	result, err := coordinator.DeleteSeries(context.Background(), eventID, date, series.ModeAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cancelled {
		t.Error("expected the anchor to be soft-cancelled")
	}
	if len(deps.bookings.cancelled) != 1 {
		t.Error("expected the bookings to be cancelled with the series")
	}
	if result.UpdatedAnchor == nil || !result.UpdatedAnchor.IsCancelled() {
		t.Error("expected the result to carry the cancelled anchor")
	}
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"rinkside/internal/conflict"
	"rinkside/internal/directory"
	"rinkside/internal/events/repository"
	evalidator "rinkside/internal/events/validator"
	"rinkside/internal/recurrence"
	"rinkside/internal/series"
	"rinkside/pkg/config"
	apperrors "rinkside/pkg/errors"
	"rinkside/pkg/logger"
	"rinkside/pkg/model"
	"rinkside/pkg/notify"
	"rinkside/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateRequest bundles the event with an optional recurrence pattern. When a
// rule is present the event becomes its series anchor.
type CreateRequest struct {
	Event model.Event           `json:"event"`
	Rule  *model.RecurrenceRule `json:"recurrence_rule,omitempty"`
}

// Coordinator owns the booking lifecycle: it validates, checks conflicts, and
// commits event + rule + resource bookings as one unit. Conflict checks and
// the writes they guard run inside a transaction, fenced by advisory locks on
// the contested identifiers, so two concurrent requests cannot both observe
// "no conflict" and commit.
type Coordinator interface {
	Create(ctx context.Context, req *CreateRequest) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, orgID string, window *model.TimeWindow, limit int, offset int64) ([]*model.Event, int64, error)
	Update(ctx context.Context, id string, updates *model.EventUpdate) (*model.Event, error)
	Cancel(ctx context.Context, id string) error
	Occurrences(ctx context.Context, id string, queryRange model.TimeWindow) ([]model.Occurrence, error)
	CheckConflicts(ctx context.Context, candidate model.Candidate) ([]model.ConflictEntry, error)
	EditSeries(ctx context.Context, id string, date time.Time, changes series.Changes, mode series.Mode) (*series.Result, error)
	DeleteSeries(ctx context.Context, id string, date time.Time, mode series.Mode) (*series.Result, error)
}

type coordinator struct {
	cfg       *config.Config
	events    repository.EventRepository
	rules     repository.RuleRepository
	bookings  repository.BookingRepository
	locks     repository.LockRepository
	directory directory.Directory
	detector  *conflict.Detector
	editor    *series.Editor
	validator *evalidator.EventValidator
	notifier  notify.Notifier
	logger    *logger.Logger
}

func NewCoordinator(
	cfg *config.Config,
	events repository.EventRepository,
	rules repository.RuleRepository,
	bookings repository.BookingRepository,
	locks repository.LockRepository,
	dir directory.Directory,
	notifier notify.Notifier,
) Coordinator {
	return &coordinator{
		cfg:       cfg,
		events:    events,
		rules:     rules,
		bookings:  bookings,
		locks:     locks,
		directory: dir,
		detector:  conflict.NewDetector(detectorStore{events: events, rules: rules}),
		editor:    series.NewEditor(),
		validator: evalidator.NewEventValidator(cfg.Log),
		notifier:  notifier,
		logger:    cfg.Log,
	}
}

func (c *coordinator) Create(ctx context.Context, req *CreateRequest) (*model.Event, error) {
	event := req.Event
	rule := req.Rule
	c.applyDefaults(&event, rule)

	if err := c.validator.Validate(&event); err != nil {
		return nil, invalid("Event validation failed", err)
	}
	if rule != nil {
		if err := c.validator.ValidateRule(rule); err != nil {
			return nil, invalid("Recurrence rule validation failed", err)
		}
		if err := recurrence.ValidateRule(rule); err != nil {
			return nil, apperrors.Validation("Recurrence rule validation failed", map[string]any{"error": err.Error()})
		}
	}

	if err := c.verifyReferences(ctx, &event); err != nil {
		return nil, err
	}

	release, err := c.acquireLocks(ctx, &event)
	if err != nil {
		return nil, err
	}
	defer release()

	err = c.events.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		entries, err := c.detector.Find(sessCtx, c.candidateFor(&event, ""))
		if err != nil {
			return apperrors.Internal("Conflict check failed", err)
		}
		if len(entries) > 0 {
			return apperrors.ScheduleConflict("Event conflicts with existing commitments", entries)
		}

		if rule != nil {
			if err := c.rules.Create(sessCtx, rule); err != nil {
				return apperrors.Internal("Failed to create recurrence rule", err)
			}
		}
		if err := c.events.Create(sessCtx, &event); err != nil {
			return apperrors.Internal("Failed to create event", err)
		}
		if err := c.bookings.CreateMany(sessCtx, bookingsFor(&event)); err != nil {
			return apperrors.Internal("Failed to create resource bookings", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Event created", "event_id", event.ID, "organization_id", event.OrganizationID, "recurring", event.IsRecurring())
	c.publish(ctx, notify.KindEventCreated, &event)
	return &event, nil
}

func (c *coordinator) Get(ctx context.Context, id string) (*model.Event, error) {
	event, err := c.events.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id)
	}
	return event, nil
}

func (c *coordinator) List(ctx context.Context, orgID string, window *model.TimeWindow, limit int, offset int64) ([]*model.Event, int64, error) {
	if window != nil && !window.Valid() {
		return nil, 0, apperrors.InvalidInput("Window end must be after start")
	}

	events, err := c.events.FindByOrganization(ctx, orgID, window, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list events", err)
	}
	total, err := c.events.CountByOrganization(ctx, orgID, window)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count events", err)
	}
	return events, total, nil
}

func (c *coordinator) Update(ctx context.Context, id string, updates *model.EventUpdate) (*model.Event, error) {
	existing, err := c.events.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id)
	}
	if existing.IsCancelled() {
		return nil, apperrors.Conflict("Cancelled events cannot be updated")
	}

	if err := c.validator.ValidateUpdate(updates); err != nil {
		return nil, invalid("Event validation failed", err)
	}

	merged := updates.Merge(existing)
	merged.Title = sanitizer.NormalizeTitle(merged.Title)
	merged.Description = sanitizer.NormalizeDescription(merged.Description)

	if err := c.validator.Validate(merged); err != nil {
		return nil, invalid("Event validation failed", err)
	}
	if err := c.verifyReferences(ctx, merged); err != nil {
		return nil, err
	}

	release, err := c.acquireLocks(ctx, merged)
	if err != nil {
		return nil, err
	}
	defer release()

	err = c.events.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		entries, err := c.detector.Find(sessCtx, c.candidateFor(merged, existing.ID))
		if err != nil {
			return apperrors.Internal("Conflict check failed", err)
		}
		if len(entries) > 0 {
			return apperrors.ScheduleConflict("Updated event conflicts with existing commitments", entries)
		}

		if err := c.events.Update(sessCtx, merged); err != nil {
			return apperrors.Internal("Failed to update event", err)
		}
		// Rewrite the booking set rather than diffing it.
		if err := c.bookings.DeleteByEvent(sessCtx, merged.ID); err != nil {
			return apperrors.Internal("Failed to clear resource bookings", err)
		}
		if err := c.bookings.CreateMany(sessCtx, bookingsFor(merged)); err != nil {
			return apperrors.Internal("Failed to create resource bookings", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Event updated", "event_id", merged.ID, "organization_id", merged.OrganizationID)
	c.publish(ctx, notify.KindEventUpdated, merged)
	return merged, nil
}

func (c *coordinator) Cancel(ctx context.Context, id string) error {
	existing, err := c.events.FindByID(ctx, id)
	if err != nil {
		return mapRepoErr(err, id)
	}
	if existing.IsCancelled() {
		return nil
	}

	now := time.Now().UTC()
	err = c.events.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := c.events.SoftCancel(sessCtx, id, now); err != nil {
			return apperrors.Internal("Failed to cancel event", err)
		}
		if err := c.bookings.CancelByEvent(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to cancel resource bookings", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("Event cancelled", "event_id", id, "organization_id", existing.OrganizationID)
	c.publish(ctx, notify.KindEventCancelled, existing)
	return nil
}

func (c *coordinator) Occurrences(ctx context.Context, id string, queryRange model.TimeWindow) ([]model.Occurrence, error) {
	if !queryRange.Valid() {
		return nil, apperrors.InvalidInput("Range end must be after start")
	}

	event, err := c.events.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id)
	}
	if !event.IsRecurring() {
		return nil, apperrors.InvalidInput("Event is not recurring")
	}

	rule, err := c.rules.FindByID(ctx, event.RecurrenceRuleID)
	if err != nil {
		return nil, mapRepoErr(err, event.RecurrenceRuleID)
	}

	// Cap the expansion horizon so an open-ended rule cannot be asked to
	// materialize years of occurrences in one request.
	horizon := queryRange.Start.AddDate(0, 0, c.cfg.ExpansionHorizonDays)
	if queryRange.End.After(horizon) {
		queryRange.End = horizon
	}

	occurrences, err := recurrence.Expand(rule, event, queryRange)
	if err != nil {
		return nil, apperrors.Validation("Recurrence expansion failed", map[string]any{"error": err.Error()})
	}
	return occurrences, nil
}

func (c *coordinator) CheckConflicts(ctx context.Context, candidate model.Candidate) ([]model.ConflictEntry, error) {
	if err := c.validator.ValidateCandidate(&candidate); err != nil {
		return nil, invalid("Candidate validation failed", err)
	}

	entries, err := c.detector.Find(ctx, candidate)
	if err != nil {
		if errors.Is(err, model.ErrInvalidWindow) {
			return nil, apperrors.InvalidInput("Window end must be after start")
		}
		return nil, apperrors.Internal("Conflict check failed", err)
	}
	return entries, nil
}

func (c *coordinator) EditSeries(ctx context.Context, id string, date time.Time, changes series.Changes, mode series.Mode) (*series.Result, error) {
	anchor, rule, err := c.loadSeries(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := c.editor.Edit(anchor, rule, date, changes, mode)
	if err != nil {
		return nil, mapSeriesErr(err)
	}

	// An all-mode edit can move the whole series onto an occupied slot, so a
	// rescheduled anchor goes through the same lock-and-check gate as a new
	// exception instance.
	anchorMoved := result.UpdatedAnchor != nil && conflictScopeChanged(anchor, result.UpdatedAnchor)

	var lockTargets []*model.Event
	if result.UpdatedAnchor != nil {
		if err := c.validator.Validate(result.UpdatedAnchor); err != nil {
			return nil, invalid("Event validation failed", err)
		}
		if err := c.verifyReferences(ctx, result.UpdatedAnchor); err != nil {
			return nil, err
		}
		if anchorMoved {
			lockTargets = append(lockTargets, result.UpdatedAnchor)
		}
	}
	if result.NewEvent != nil {
		if err := c.validator.Validate(result.NewEvent); err != nil {
			return nil, invalid("Event validation failed", err)
		}
		if err := c.verifyReferences(ctx, result.NewEvent); err != nil {
			return nil, err
		}
		lockTargets = append(lockTargets, result.NewEvent)
	}
	if len(lockTargets) > 0 {
		release, err := c.acquireLocks(ctx, lockTargets...)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	err = c.events.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Persist rule changes first: the conflict check below reads rules
		// through the session, so the new exception/clip is already in force
		// and the replaced occurrence cannot collide with its replacement.
		if result.UpdatedRule != nil {
			if err := c.rules.Update(sessCtx, result.UpdatedRule); err != nil {
				return apperrors.Internal("Failed to update recurrence rule", err)
			}
		}
		if result.NewRule != nil {
			if err := c.rules.Create(sessCtx, result.NewRule); err != nil {
				return apperrors.Internal("Failed to create recurrence rule", err)
			}
		}
		if result.UpdatedAnchor != nil {
			if anchorMoved {
				entries, err := c.detector.Find(sessCtx, c.candidateFor(result.UpdatedAnchor, anchor.ID))
				if err != nil {
					return apperrors.Internal("Conflict check failed", err)
				}
				if len(entries) > 0 {
					return apperrors.ScheduleConflict("Edited series conflicts with existing commitments", entries)
				}
			}
			if err := c.events.Update(sessCtx, result.UpdatedAnchor); err != nil {
				return apperrors.Internal("Failed to update series anchor", err)
			}
			if anchorMoved {
				if err := c.bookings.DeleteByEvent(sessCtx, result.UpdatedAnchor.ID); err != nil {
					return apperrors.Internal("Failed to clear resource bookings", err)
				}
				if err := c.bookings.CreateMany(sessCtx, bookingsFor(result.UpdatedAnchor)); err != nil {
					return apperrors.Internal("Failed to create resource bookings", err)
				}
			}
		}
		if result.NewEvent != nil {
			entries, err := c.detector.Find(sessCtx, c.candidateFor(result.NewEvent, anchor.ID))
			if err != nil {
				return apperrors.Internal("Conflict check failed", err)
			}
			if len(entries) > 0 {
				return apperrors.ScheduleConflict("Edited occurrence conflicts with existing commitments", entries)
			}
			if err := c.events.Create(sessCtx, result.NewEvent); err != nil {
				return apperrors.Internal("Failed to create event", err)
			}
			if err := c.bookings.CreateMany(sessCtx, bookingsFor(result.NewEvent)); err != nil {
				return apperrors.Internal("Failed to create resource bookings", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Series edited", "event_id", anchor.ID, "series_id", anchor.SeriesID, "mode", string(mode))
	c.publish(ctx, notify.KindSeriesEdited, anchor)
	return result, nil
}

func (c *coordinator) DeleteSeries(ctx context.Context, id string, date time.Time, mode series.Mode) (*series.Result, error) {
	anchor, rule, err := c.loadSeries(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := c.editor.Delete(anchor, rule, date, mode)
	if err != nil {
		return nil, mapSeriesErr(err)
	}

	now := time.Now().UTC()
	err = c.events.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if result.UpdatedRule != nil {
			if err := c.rules.Update(sessCtx, result.UpdatedRule); err != nil {
				return apperrors.Internal("Failed to update recurrence rule", err)
			}
		}
		if result.UpdatedAnchor != nil && result.UpdatedAnchor.IsCancelled() {
			if err := c.events.SoftCancel(sessCtx, anchor.ID, now); err != nil {
				return apperrors.Internal("Failed to cancel series anchor", err)
			}
			if err := c.bookings.CancelByEvent(sessCtx, anchor.ID); err != nil {
				return apperrors.Internal("Failed to cancel resource bookings", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Series occurrences deleted", "event_id", anchor.ID, "series_id", anchor.SeriesID, "mode", string(mode))
	c.publish(ctx, notify.KindSeriesDeleted, anchor)
	return result, nil
}

func (c *coordinator) loadSeries(ctx context.Context, id string) (*model.Event, *model.RecurrenceRule, error) {
	anchor, err := c.events.FindByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoErr(err, id)
	}
	if anchor.ParentEventID != "" {
		return nil, nil, apperrors.InvalidInput("Series edits must target the series anchor")
	}
	if !anchor.IsRecurring() {
		return nil, nil, apperrors.InvalidInput("Event is not recurring")
	}

	rule, err := c.rules.FindByID(ctx, anchor.RecurrenceRuleID)
	if err != nil {
		return nil, nil, mapRepoErr(err, anchor.RecurrenceRuleID)
	}
	return anchor, rule, nil
}

func (c *coordinator) applyDefaults(event *model.Event, rule *model.RecurrenceRule) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = model.StatusScheduled
	}
	if event.Visibility == "" {
		event.Visibility = model.VisibilityTeam
	}
	event.Title = sanitizer.NormalizeTitle(event.Title)
	event.Description = sanitizer.NormalizeDescription(event.Description)

	if rule != nil {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if rule.Interval == 0 {
			rule.Interval = 1
		}
		rule.StartDate = model.DateOf(rule.StartDate)
		event.RecurrenceRuleID = rule.ID
		// The anchor references its own series.
		event.SeriesID = event.ID
	}
}

func (c *coordinator) verifyReferences(ctx context.Context, event *model.Event) error {
	if event.LocationID != "" {
		ok, err := c.directory.LocationExists(ctx, event.LocationID)
		if err != nil {
			return apperrors.Internal("Location lookup failed", err)
		}
		if !ok {
			return apperrors.NotFoundWithID("Location", event.LocationID)
		}
	}
	if event.TeamID != "" {
		ok, err := c.directory.TeamExists(ctx, event.TeamID)
		if err != nil {
			return apperrors.Internal("Team lookup failed", err)
		}
		if !ok {
			return apperrors.NotFoundWithID("Team", event.TeamID)
		}
	}
	for _, resourceID := range event.ResourceIDs {
		ok, err := c.directory.ResourceExists(ctx, resourceID)
		if err != nil {
			return apperrors.Internal("Resource lookup failed", err)
		}
		if !ok {
			return apperrors.NotFoundWithID("Resource", resourceID)
		}
	}
	return nil
}

// acquireLocks takes advisory locks on every contested identifier the events
// touch, in sorted order so two requests over the same identifiers cannot
// deadlock each other. The returned release function must be called once the
// transaction has committed or aborted.
func (c *coordinator) acquireLocks(ctx context.Context, events ...*model.Event) (func(), error) {
	keys := lockKeys(events...)
	if len(keys) == 0 {
		return func() {}, nil
	}

	expiresAt := time.Now().UTC().Add(c.cfg.BookingLockTTL)
	acquired := make([]string, 0, len(keys))

	release := func() {
		// Locks are released on a fresh context: the request context may
		// already be cancelled, and a leaked lock blocks the identifier until
		// the TTL index reaps it.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := c.locks.Delete(cleanupCtx, acquired[i]); err != nil {
				c.logger.Warn("Failed to release booking lock", "lock_id", acquired[i], "error", err.Error())
			}
		}
	}

	for _, key := range keys {
		_, err := c.locks.Create(ctx, &model.EventLock{ID: key, ExpiresAt: expiresAt})
		if err != nil {
			release()
			if errors.Is(err, repository.ErrLockHeld) {
				return nil, apperrors.Conflict("Another booking for the same resource, team, or location is in progress")
			}
			return nil, apperrors.Internal("Failed to acquire booking lock", err)
		}
		acquired = append(acquired, key)
	}

	return release, nil
}

func lockKeys(events ...*model.Event) []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	for _, event := range events {
		for _, resourceID := range event.ResourceIDs {
			add(fmt.Sprintf("resource_%s", resourceID))
		}
		if event.TeamID != "" {
			add(fmt.Sprintf("team_%s", event.TeamID))
		}
		if event.LocationID != "" {
			add(fmt.Sprintf("location_%s", event.LocationID))
		}
	}
	sort.Strings(keys)
	return keys
}

// conflictScopeChanged reports whether an edit touched anything the conflict
// detector keys on: the window or any of the four dimensions.
func conflictScopeChanged(before, after *model.Event) bool {
	if !before.Window.Start.Equal(after.Window.Start) || !before.Window.End.Equal(after.Window.End) {
		return true
	}
	if before.TeamID != after.TeamID || before.LocationID != after.LocationID {
		return true
	}
	if len(before.ResourceIDs) != len(after.ResourceIDs) {
		return true
	}
	for i := range before.ResourceIDs {
		if before.ResourceIDs[i] != after.ResourceIDs[i] {
			return true
		}
	}
	if len(before.Participants) != len(after.Participants) {
		return true
	}
	for i := range before.Participants {
		if before.Participants[i] != after.Participants[i] {
			return true
		}
	}
	return false
}

func (c *coordinator) candidateFor(event *model.Event, excludeEventID string) model.Candidate {
	var participants []string
	for _, p := range event.Participants {
		if p.RSVP == model.RSVPAccepted || p.RSVP == model.RSVPTentative {
			participants = append(participants, p.UserID)
		}
	}
	return model.Candidate{
		OrganizationID: event.OrganizationID,
		Window:         event.Window,
		ResourceIDs:    event.ResourceIDs,
		TeamID:         event.TeamID,
		LocationID:     event.LocationID,
		ParticipantIDs: participants,
		ExcludeEventID: excludeEventID,
	}
}

func bookingsFor(event *model.Event) []*model.ResourceBooking {
	status := model.BookingPending
	if event.Status == model.StatusConfirmed {
		status = model.BookingConfirmed
	}

	bookings := make([]*model.ResourceBooking, 0, len(event.ResourceIDs))
	for _, resourceID := range event.ResourceIDs {
		bookings = append(bookings, &model.ResourceBooking{
			ID:         uuid.NewString(),
			EventID:    event.ID,
			ResourceID: resourceID,
			Window:     event.Window,
			Status:     status,
		})
	}
	return bookings
}

// publish is best-effort: a scheduling decision already committed, so a
// notification failure is logged and swallowed.
func (c *coordinator) publish(ctx context.Context, kind string, event *model.Event) {
	decision := notify.Decision{
		Kind:           kind,
		EventID:        event.ID,
		SeriesID:       event.SeriesID,
		OrganizationID: event.OrganizationID,
		Title:          event.Title,
		Window:         event.Window,
		OccurredAt:     time.Now().UTC(),
	}
	if err := c.notifier.Publish(context.WithoutCancel(ctx), decision); err != nil {
		c.logger.Warn("Failed to publish scheduling decision", "kind", kind, "event_id", event.ID, "error", err.Error())
	}
}

func invalid(message string, err error) error {
	var verrs evalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, map[string]any{"errors": verrs})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func mapRepoErr(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFoundWithID("Event", id)
	case errors.Is(err, repository.ErrRuleNotFound):
		return apperrors.NotFoundWithID("Recurrence rule", id)
	default:
		return apperrors.Internal("Storage operation failed", err)
	}
}

func mapSeriesErr(err error) error {
	switch {
	case errors.Is(err, series.ErrNotRecurring):
		return apperrors.InvalidInput("Event is not recurring")
	case errors.Is(err, series.ErrMissingDate):
		return apperrors.InvalidInput("Occurrence date is required")
	case errors.Is(err, series.ErrInvalidEditType):
		return apperrors.InvalidInput("Edit mode must be single, future, or all")
	default:
		return apperrors.Internal("Series edit failed", err)
	}
}

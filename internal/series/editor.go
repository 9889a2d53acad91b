package series

import (
	"errors"
	"rinkside/internal/recurrence"
	"rinkside/pkg/model"
	"time"

	"github.com/google/uuid"
)

// Mode selects how far an edit or deletion reaches into a series.
type Mode string

const (
	// ModeSingle affects one occurrence, replacing it with an exception
	// instance (or suppressing it, for deletes).
	ModeSingle Mode = "single"
	// ModeFuture splits the series at the target date; the original rule is
	// clipped and a new anchor carries the pattern forward.
	ModeFuture Mode = "future"
	// ModeAll edits the anchor and rule in place, affecting every
	// materialization uniformly.
	ModeAll Mode = "all"
)

var (
	ErrNotRecurring    = errors.New("series: event has no recurrence rule")
	ErrInvalidEditType = errors.New("series: invalid edit mode")
	ErrMissingDate     = errors.New("series: target occurrence date is required")
)

// RuleChanges carries optional pattern overrides for future/all edits.
type RuleChanges struct {
	Frequency *string    `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly yearly"`
	Interval  *int       `json:"interval,omitempty" validate:"omitempty,min=1"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Count     *int       `json:"count,omitempty" validate:"omitempty,min=1"`
	WeekDays  *[]int     `json:"week_days,omitempty" validate:"omitempty,weekdays_set"`
	MonthDays *[]int     `json:"month_days,omitempty" validate:"omitempty,monthdays_set"`
	Months    *[]int     `json:"months,omitempty" validate:"omitempty,months_set"`
}

// Changes bundles event-level and rule-level overrides for a series edit.
type Changes struct {
	Event model.EventUpdate `json:"event"`
	Rule  *RuleChanges      `json:"rule,omitempty"`
}

// Result holds the records a series edit produced. The caller persists them
// as one unit; the editor itself never touches storage and never mutates its
// inputs.
type Result struct {
	UpdatedAnchor *model.Event          `json:"updated_anchor,omitempty"`
	UpdatedRule   *model.RecurrenceRule `json:"updated_rule,omitempty"`
	NewEvent      *model.Event          `json:"new_event,omitempty"`
	NewRule       *model.RecurrenceRule `json:"new_rule,omitempty"`
}

// Editor applies single / future / all edits to a recurring series.
type Editor struct {
	NewID func() string
	Now   func() time.Time
}

func NewEditor() *Editor {
	return &Editor{
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// Edit applies changes to the series at the target occurrence date.
func (ed *Editor) Edit(anchor *model.Event, rule *model.RecurrenceRule, date time.Time, changes Changes, mode Mode) (*Result, error) {
	if err := ed.check(anchor, rule, date); err != nil {
		return nil, err
	}

	switch mode {
	case ModeSingle:
		return ed.editSingle(anchor, rule, date, changes), nil
	case ModeFuture:
		return ed.editFuture(anchor, rule, date, changes), nil
	case ModeAll:
		return ed.editAll(anchor, rule, changes), nil
	}
	return nil, ErrInvalidEditType
}

// Delete removes occurrences from the series at the target date. Single-mode
// deletion records an exception without creating a replacement event.
func (ed *Editor) Delete(anchor *model.Event, rule *model.RecurrenceRule, date time.Time, mode Mode) (*Result, error) {
	if err := ed.check(anchor, rule, date); err != nil {
		return nil, err
	}

	switch mode {
	case ModeSingle:
		updated := rule.Clone()
		updated.AddException(date)
		return &Result{UpdatedRule: updated}, nil

	case ModeFuture:
		split := model.DateOf(date)
		if !split.After(model.DateOf(rule.StartDate)) {
			// Deleting from the first occurrence onward removes the series.
			return &Result{UpdatedAnchor: ed.cancel(anchor)}, nil
		}
		updated := rule.Clone()
		end := split.AddDate(0, 0, -1)
		updated.EndDate = &end
		updated.Count = nil
		return &Result{UpdatedRule: updated}, nil

	case ModeAll:
		return &Result{UpdatedAnchor: ed.cancel(anchor)}, nil
	}
	return nil, ErrInvalidEditType
}

func (ed *Editor) check(anchor *model.Event, rule *model.RecurrenceRule, date time.Time) error {
	if anchor == nil || !anchor.IsRecurring() || rule == nil {
		return ErrNotRecurring
	}
	if date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (ed *Editor) editSingle(anchor *model.Event, rule *model.RecurrenceRule, date time.Time, changes Changes) *Result {
	updated := rule.Clone()
	updated.AddException(date)

	instance := cloneEvent(anchor)
	instance.ID = ed.NewID()
	instance.ParentEventID = anchor.ID
	instance.SeriesID = anchor.SeriesID
	instance.RecurrenceRuleID = ""
	exceptionDate := model.DateOf(date)
	instance.RecurrenceExceptionDate = &exceptionDate
	instance.Window = recurrence.WindowOn(anchor, date)
	instance.CreatedAt = ed.Now().UTC()
	instance.DeletedAt = nil
	instance = changes.Event.Merge(instance)

	return &Result{UpdatedRule: updated, NewEvent: instance}
}

func (ed *Editor) editFuture(anchor *model.Event, rule *model.RecurrenceRule, date time.Time, changes Changes) *Result {
	split := model.DateOf(date)

	// Remaining count policy: occurrences the original rule emits before the
	// split stay with it; the new rule gets what is left, floored at 1.
	var remaining *int
	if rule.Count != nil {
		rem := *rule.Count - recurrence.CountOccurrencesBefore(rule, split)
		if rem < 1 {
			rem = 1
		}
		remaining = &rem
	}

	clipped := rule.Clone()
	end := split.AddDate(0, 0, -1)
	clipped.EndDate = &end
	clipped.Count = nil

	forward := rule.Clone()
	forward.ID = ed.NewID()
	forward.StartDate = split
	forward.Count = remaining
	forward.CreatedAt = ed.Now().UTC()
	forward.ExceptionDates = exceptionsFrom(rule.ExceptionDates, split)
	applyRuleChanges(forward, changes.Rule)

	newAnchor := cloneEvent(anchor)
	newAnchor.ID = ed.NewID()
	newAnchor.SeriesID = newAnchor.ID
	newAnchor.RecurrenceRuleID = forward.ID
	newAnchor.ParentEventID = ""
	newAnchor.RecurrenceExceptionDate = nil
	newAnchor.Window = recurrence.WindowOn(anchor, split)
	newAnchor.CreatedAt = ed.Now().UTC()
	newAnchor.DeletedAt = nil
	newAnchor = changes.Event.Merge(newAnchor)

	return &Result{UpdatedRule: clipped, NewRule: forward, NewEvent: newAnchor}
}

func (ed *Editor) editAll(anchor *model.Event, rule *model.RecurrenceRule, changes Changes) *Result {
	updatedAnchor := changes.Event.Merge(cloneEvent(anchor))
	updatedRule := rule.Clone()
	applyRuleChanges(updatedRule, changes.Rule)
	return &Result{UpdatedAnchor: updatedAnchor, UpdatedRule: updatedRule}
}

func (ed *Editor) cancel(anchor *model.Event) *model.Event {
	cancelled := cloneEvent(anchor)
	cancelled.Status = model.StatusCancelled
	now := ed.Now().UTC()
	cancelled.DeletedAt = &now
	return cancelled
}

func applyRuleChanges(rule *model.RecurrenceRule, changes *RuleChanges) {
	if changes == nil {
		return
	}
	if changes.Frequency != nil {
		rule.Frequency = *changes.Frequency
	}
	if changes.Interval != nil {
		rule.Interval = *changes.Interval
	}
	if changes.EndDate != nil {
		end := model.DateOf(*changes.EndDate)
		rule.EndDate = &end
	}
	if changes.Count != nil {
		count := *changes.Count
		rule.Count = &count
	}
	if changes.WeekDays != nil {
		rule.WeekDays = append([]int(nil), (*changes.WeekDays)...)
	}
	if changes.MonthDays != nil {
		rule.MonthDays = append([]int(nil), (*changes.MonthDays)...)
	}
	if changes.Months != nil {
		rule.Months = append([]int(nil), (*changes.Months)...)
	}
}

// exceptionsFrom keeps only exception dates on or after the split; earlier
// ones belong to the clipped original series.
func exceptionsFrom(dates []time.Time, split time.Time) []time.Time {
	var kept []time.Time
	for _, d := range dates {
		if !model.DateOf(d).Before(split) {
			kept = append(kept, d)
		}
	}
	return kept
}

func cloneEvent(e *model.Event) *model.Event {
	clone := *e
	clone.ResourceIDs = append([]string(nil), e.ResourceIDs...)
	clone.Participants = append([]model.Participant(nil), e.Participants...)
	if e.RecurrenceExceptionDate != nil {
		d := *e.RecurrenceExceptionDate
		clone.RecurrenceExceptionDate = &d
	}
	if e.DeletedAt != nil {
		d := *e.DeletedAt
		clone.DeletedAt = &d
	}
	return &clone
}

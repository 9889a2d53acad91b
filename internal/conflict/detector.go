package conflict

import (
	"context"
	"rinkside/internal/recurrence"
	"rinkside/pkg/model"
	"sort"
)

// Store is the read-only slice of the event store the detector needs. Store
// errors propagate to the caller unchanged; the detector does not retry.
type Store interface {
	// FindSingleOverlapping returns non-cancelled, non-recurring events of the
	// organization whose windows overlap the given one. Materialized exception
	// instances are included (they carry their own windows and no rule).
	FindSingleOverlapping(ctx context.Context, orgID string, window model.TimeWindow) ([]*model.Event, error)
	// FindRecurringAnchors returns all non-cancelled series anchors of the
	// organization.
	FindRecurringAnchors(ctx context.Context, orgID string) ([]*model.Event, error)
	GetRule(ctx context.Context, ruleID string) (*model.RecurrenceRule, error)
}

// Detector reports time-window collisions across the resource, team,
// location, and participant dimensions. It is read-only: all mutation happens
// elsewhere.
type Detector struct {
	store Store
}

func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// commitment is one concrete window an existing event occupies. Recurring
// series contribute one commitment per occurrence inside the probe window.
type commitment struct {
	event  *model.Event
	window model.TimeWindow
}

// Find returns every conflict between the candidate and existing commitments,
// ordered resource → team → location → participant and, within a dimension,
// by ascending conflicting start time (event ID, then identifier, as
// tie-breakers). Repeated calls against unchanged state return identical
// results.
func (d *Detector) Find(ctx context.Context, candidate model.Candidate) ([]model.ConflictEntry, error) {
	if !candidate.Window.Valid() {
		return nil, model.ErrInvalidWindow
	}
	if !d.hasDimensions(candidate) {
		return []model.ConflictEntry{}, nil
	}

	commitments, err := d.collect(ctx, candidate)
	if err != nil {
		return nil, err
	}

	entries := []model.ConflictEntry{}
	entries = append(entries, d.resourceConflicts(candidate, commitments)...)
	entries = append(entries, d.teamConflicts(candidate, commitments)...)
	entries = append(entries, d.locationConflicts(candidate, commitments)...)
	entries = append(entries, d.participantConflicts(candidate, commitments)...)
	return entries, nil
}

func (d *Detector) hasDimensions(c model.Candidate) bool {
	return len(c.ResourceIDs) > 0 || c.TeamID != "" || c.LocationID != "" || len(c.ParticipantIDs) > 0
}

func (d *Detector) collect(ctx context.Context, candidate model.Candidate) ([]commitment, error) {
	var commitments []commitment

	singles, err := d.store.FindSingleOverlapping(ctx, candidate.OrganizationID, candidate.Window)
	if err != nil {
		return nil, err
	}
	for _, e := range singles {
		if e.IsCancelled() || e.ID == candidate.ExcludeEventID {
			continue
		}
		if e.Window.Overlaps(candidate.Window) {
			commitments = append(commitments, commitment{event: e, window: e.Window})
		}
	}

	anchors, err := d.store.FindRecurringAnchors(ctx, candidate.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, anchor := range anchors {
		if anchor.IsCancelled() || anchor.ID == candidate.ExcludeEventID {
			continue
		}
		rule, err := d.store.GetRule(ctx, anchor.RecurrenceRuleID)
		if err != nil {
			return nil, err
		}

		// Widen the probe backwards by one duration so an occurrence that
		// starts before the window but spills into it is still caught.
		probe := model.TimeWindow{
			Start: candidate.Window.Start.Add(-anchor.Window.Duration()),
			End:   candidate.Window.End,
		}
		occurrences, err := recurrence.Expand(rule, anchor, probe)
		if err != nil {
			return nil, err
		}
		for _, occ := range occurrences {
			if occ.Window.Overlaps(candidate.Window) {
				commitments = append(commitments, commitment{event: anchor, window: occ.Window})
			}
		}
	}

	return commitments, nil
}

func (d *Detector) resourceConflicts(candidate model.Candidate, commitments []commitment) []model.ConflictEntry {
	var entries []model.ConflictEntry
	for _, resourceID := range candidate.ResourceIDs {
		for _, c := range commitments {
			if c.event.HasResource(resourceID) {
				entries = append(entries, entry(c, model.ConflictResource, resourceID))
			}
		}
	}
	return sortEntries(entries)
}

func (d *Detector) teamConflicts(candidate model.Candidate, commitments []commitment) []model.ConflictEntry {
	if candidate.TeamID == "" {
		return nil
	}
	var entries []model.ConflictEntry
	for _, c := range commitments {
		if c.event.TeamID == candidate.TeamID {
			entries = append(entries, entry(c, model.ConflictTeam, candidate.TeamID))
		}
	}
	return sortEntries(entries)
}

func (d *Detector) locationConflicts(candidate model.Candidate, commitments []commitment) []model.ConflictEntry {
	if candidate.LocationID == "" {
		return nil
	}
	var entries []model.ConflictEntry
	for _, c := range commitments {
		if c.event.LocationID == candidate.LocationID {
			entries = append(entries, entry(c, model.ConflictLocation, candidate.LocationID))
		}
	}
	return sortEntries(entries)
}

func (d *Detector) participantConflicts(candidate model.Candidate, commitments []commitment) []model.ConflictEntry {
	var entries []model.ConflictEntry
	for _, userID := range candidate.ParticipantIDs {
		for _, c := range commitments {
			if c.event.AcceptedParticipant(userID) {
				entries = append(entries, entry(c, model.ConflictParticipant, userID))
			}
		}
	}
	return sortEntries(entries)
}

func entry(c commitment, reason, identifier string) model.ConflictEntry {
	return model.ConflictEntry{
		ConflictingEventID: c.event.ID,
		Reason:             reason,
		Identifier:         identifier,
		Window:             c.window,
	}
}

func sortEntries(entries []model.ConflictEntry) []model.ConflictEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Window.Start.Equal(entries[j].Window.Start) {
			return entries[i].Window.Start.Before(entries[j].Window.Start)
		}
		if entries[i].ConflictingEventID != entries[j].ConflictingEventID {
			return entries[i].ConflictingEventID < entries[j].ConflictingEventID
		}
		return entries[i].Identifier < entries[j].Identifier
	})
	return entries
}

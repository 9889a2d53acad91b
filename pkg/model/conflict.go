package model

// Conflict dimensions, in report order.
const (
	ConflictResource    = "resource"
	ConflictTeam        = "team"
	ConflictLocation    = "location"
	ConflictParticipant = "participant"
)

// ConflictEntry describes one overlapping commitment. Computed on demand,
// never persisted.
type ConflictEntry struct {
	ConflictingEventID string     `json:"conflicting_event_id"`
	Reason             string     `json:"reason"`
	Identifier         string     `json:"identifier"`
	Window             TimeWindow `json:"window"`
}

// Candidate is a fully-typed conflict-check request. A dimension is skipped
// entirely when its field is empty, so absent criteria never produce false
// positives.
type Candidate struct {
	OrganizationID string     `json:"organization_id" validate:"required,uuid4"`
	Window         TimeWindow `json:"window" validate:"required"`
	ResourceIDs    []string   `json:"resource_ids,omitempty" validate:"omitempty,dive,uuid4"`
	TeamID         string     `json:"team_id,omitempty" validate:"omitempty,uuid4"`
	LocationID     string     `json:"location_id,omitempty" validate:"omitempty,uuid4"`
	ParticipantIDs []string   `json:"participant_ids,omitempty" validate:"omitempty,dive,uuid4"`
	ExcludeEventID string     `json:"exclude_event_id,omitempty" validate:"omitempty,uuid4"`
}

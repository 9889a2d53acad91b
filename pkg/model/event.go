package model

import "time"

const (
	EventTypePractice = "practice"
	EventTypeGame     = "game"
	EventTypeMeeting  = "meeting"
	EventTypeOther    = "other"

	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	VisibilityPrivate = "private"
	VisibilityTeam    = "team"
	VisibilityPublic  = "public"

	RSVPPending   = "pending"
	RSVPAccepted  = "accepted"
	RSVPTentative = "tentative"
	RSVPDeclined  = "declined"
)

type Participant struct {
	UserID string `json:"user_id" bson:"user_id" validate:"required,uuid4"`
	Role   string `json:"role" bson:"role" validate:"required,min=2,max=50"`
	RSVP   string `json:"rsvp" bson:"rsvp" validate:"required,oneof=pending accepted tentative declined"`
}

// Event is one schedulable activity. The organization owns it; a team is a
// visibility/filtering attribute, not an owner. Soft-deleted events keep their
// document (status cancelled, DeletedAt set) so historical conflict and audit
// queries stay valid.
type Event struct {
	ID             string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	OrganizationID string        `json:"organization_id" bson:"organization_id" validate:"required,uuid4"`
	Title          string        `json:"title" bson:"title" validate:"required,min=2,max=200"`
	Description    string        `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Type           string        `json:"type" bson:"type" validate:"required,oneof=practice game meeting other"`
	Window         TimeWindow    `json:"window" bson:"window" validate:"required"`
	Status         string        `json:"status" bson:"status" validate:"required,oneof=draft scheduled confirmed cancelled"`
	Visibility     string        `json:"visibility" bson:"visibility" validate:"required,oneof=private team public"`
	TeamID         string        `json:"team_id,omitempty" bson:"team_id,omitempty" validate:"omitempty,uuid4"`
	LocationID     string        `json:"location_id,omitempty" bson:"location_id,omitempty" validate:"omitempty,uuid4"`
	ResourceIDs    []string      `json:"resource_ids,omitempty" bson:"resource_ids,omitempty" validate:"omitempty,dive,uuid4"`
	Participants   []Participant `json:"participants,omitempty" bson:"participants,omitempty" validate:"omitempty,dive"`

	// Recurrence linkage. SeriesID is shared by every occurrence and exception
	// instance of one series; the anchor references itself. ParentEventID and
	// RecurrenceExceptionDate are set only on materialized exception instances.
	RecurrenceRuleID        string     `json:"recurrence_rule_id,omitempty" bson:"recurrence_rule_id,omitempty" validate:"omitempty,uuid4"`
	SeriesID                string     `json:"series_id,omitempty" bson:"series_id,omitempty" validate:"omitempty,uuid4"`
	ParentEventID           string     `json:"parent_event_id,omitempty" bson:"parent_event_id,omitempty" validate:"omitempty,uuid4"`
	RecurrenceExceptionDate *time.Time `json:"recurrence_exception_date,omitempty" bson:"recurrence_exception_date,omitempty"`

	CreatedAt time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

func (e *Event) IsRecurring() bool {
	return e.RecurrenceRuleID != ""
}

func (e *Event) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// AcceptedParticipant reports whether the user is committed to this event
// (accepted or tentative RSVP).
func (e *Event) AcceptedParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p.UserID == userID && (p.RSVP == RSVPAccepted || p.RSVP == RSVPTentative) {
			return true
		}
	}
	return false
}

func (e *Event) HasResource(resourceID string) bool {
	for _, id := range e.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}

// EventUpdate carries a partial update. Nil / empty fields are left untouched
// when merged onto the existing event.
type EventUpdate struct {
	Title        *string        `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description  *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	Type         *string        `json:"type,omitempty" validate:"omitempty,oneof=practice game meeting other"`
	Window       *TimeWindow    `json:"window,omitempty" validate:"omitempty"`
	Status       *string        `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled confirmed cancelled"`
	Visibility   *string        `json:"visibility,omitempty" validate:"omitempty,oneof=private team public"`
	TeamID       *string        `json:"team_id,omitempty" validate:"omitempty"`
	LocationID   *string        `json:"location_id,omitempty" validate:"omitempty"`
	ResourceIDs  *[]string      `json:"resource_ids,omitempty" validate:"omitempty,dive,uuid4"`
	Participants *[]Participant `json:"participants,omitempty" validate:"omitempty,dive"`
}

// Merge applies the update onto a copy of the existing event and returns it.
func (u *EventUpdate) Merge(existing *Event) *Event {
	merged := *existing

	if u.Title != nil {
		merged.Title = *u.Title
	}
	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.Type != nil {
		merged.Type = *u.Type
	}
	if u.Window != nil {
		merged.Window = *u.Window
	}
	if u.Status != nil {
		merged.Status = *u.Status
	}
	if u.Visibility != nil {
		merged.Visibility = *u.Visibility
	}
	if u.TeamID != nil {
		merged.TeamID = *u.TeamID
	}
	if u.LocationID != nil {
		merged.LocationID = *u.LocationID
	}
	if u.ResourceIDs != nil {
		merged.ResourceIDs = *u.ResourceIDs
	}
	if u.Participants != nil {
		merged.Participants = *u.Participants
	}

	return &merged
}

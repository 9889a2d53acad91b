package model

import "time"

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// ResourceBooking links an event to a resource for a window. Bookings follow
// the event lifecycle: created with it, cancelled when it is soft-cancelled.
type ResourceBooking struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	EventID    string     `json:"event_id" bson:"event_id" validate:"required,uuid4"`
	ResourceID string     `json:"resource_id" bson:"resource_id" validate:"required,uuid4"`
	Window     TimeWindow `json:"window" bson:"window" validate:"required"`
	Status     string     `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

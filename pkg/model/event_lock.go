package model

import "time"

// EventLock is an advisory lock document held across a check-then-commit
// sequence. One lock per conflict identifier (resource/team/location) keeps
// two concurrent bookings from both observing "no conflict" and committing.
type EventLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

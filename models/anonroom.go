package models

import (
	"time"
)

// AnonRoomLifetime is the fixed lifetime of an anonymous room from the
// start of its time slot.
const AnonRoomLifetime = time.Hour

// AnonymousRoom is an ephemeral, identity-free message scope. Rooms are
// bucketed by hour slot; everyone entering within the same slot lands in
// the same room, and the room expires at the end of the slot.
type AnonymousRoom struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SlotKey   string    `gorm:"size:32;uniqueIndex" json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotKeyFor returns the bucket key for the hour slot containing t.
func SlotKeyFor(t time.Time) string {
	return t.UTC().Truncate(AnonRoomLifetime).Format("2006010215")
}

// Expired reports whether the room has passed its expiry at time t.
func (r *AnonymousRoom) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

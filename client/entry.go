package client

import (
	"github.com/momspace/momspace_backend/models"
)

// EntryState distinguishes confirmed rows from optimistic local echoes.
type EntryState int

const (
	// EntryConfirmed is an authoritative row from the gateway.
	EntryConfirmed EntryState = iota
	// EntryPending is a local echo awaiting the send result.
	EntryPending
	// EntryFailed is a local echo whose send failed; it stays visible
	// until retried or discarded.
	EntryFailed
)

// Entry is one element of a session's ordered message list. Pending and
// failed entries carry a temporary id; confirmed entries carry the row id.
type Entry struct {
	State   EntryState
	TempID  string
	Message models.Message
	Err     string
}

// Confirmed reports whether the entry is an authoritative row.
func (e Entry) Confirmed() bool {
	return e.State == EntryConfirmed
}

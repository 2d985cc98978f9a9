package models

import (
	"time"
)

// Channel carries the message stream of a space. A space has at most one
// default channel.
type Channel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SpaceID   uint      `gorm:"not null;index" json:"space_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message belongs to a channel or to an anonymous room, never both.
// Anonymous messages carry no sender reference, only a per-send display
// name, and expire with their room.
type Message struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PublicID    string         `gorm:"size:36;uniqueIndex" json:"public_id"`
	ChannelID   *uint          `gorm:"index" json:"channel_id,omitempty"`
	AnonRoomID  *string        `gorm:"size:36;index" json:"anon_room_id,omitempty"`
	SenderID    *uint          `json:"sender_id,omitempty"`
	Sender      *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	DisplayName string         `gorm:"size:64" json:"display_name,omitempty"`
	Content     string         `gorm:"type:text" json:"content"`
	Type        string         `gorm:"size:10;default:'text'" json:"type"`
	Attachments string         `gorm:"type:text" json:"attachments,omitempty"`
	ReportCount int            `json:"report_count"`
	Masked      bool           `json:"masked"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	EditedAt    *time.Time     `json:"edited_at,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the stable public identifier used by clients and
// moderation targets.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.PublicID == "" {
		m.PublicID = uuid.NewString()
	}
	return nil
}

package models

import (
	"strings"
	"time"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	MaxPublicMembers  = 500
	MaxPrivateMembers = 50

	MaxSpaceTags = 10
)

type Space struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	Visibility  string    `gorm:"size:10;default:'public'" json:"visibility"`
	Tags        string    `gorm:"size:500" json:"-"`
	MemberCount int       `json:"member_count"`
	MaxMembers  int       `json:"max_members"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Channels    []Channel `json:"channels,omitempty"`
	Users       []User    `gorm:"many2many:space_members;" json:"users,omitempty"`
}

type SpaceMember struct {
	SpaceID    uint      `gorm:"primaryKey" json:"space_id"`
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxMembersFor returns the member cap for a visibility setting.
func MaxMembersFor(visibility string) int {
	if visibility == VisibilityPrivate {
		return MaxPrivateMembers
	}
	return MaxPublicMembers
}

// TagList splits the stored tag string into individual tags.
func (s *Space) TagList() []string {
	if s.Tags == "" {
		return nil
	}
	return strings.Split(s.Tags, ",")
}

// SetTags stores a tag slice as a comma-separated string.
func (s *Space) SetTags(tags []string) {
	s.Tags = strings.Join(tags, ",")
}

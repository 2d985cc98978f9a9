package models

import (
	"time"
)

const (
	ReportTargetUser    = "user"
	ReportTargetPost    = "post"
	ReportTargetMessage = "message"
)

// Report records a moderation report. A reporter may report a given target
// at most once; the unique index backs duplicate suppression.
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReporterID uint      `gorm:"not null;uniqueIndex:idx_reporter_target" json:"reporter_id"`
	TargetType string    `gorm:"size:10;not null;uniqueIndex:idx_reporter_target" json:"target_type"`
	TargetID   string    `gorm:"size:36;not null;uniqueIndex:idx_reporter_target" json:"target_id"`
	ReasonCode string    `gorm:"size:50" json:"reason_code,omitempty"`
	ReasonText string    `gorm:"size:500" json:"reason_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportAudit stores hashed request metadata alongside a report. Only
// digests are persisted, never the raw user agent or address.
type ReportAudit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ReportID      uint      `gorm:"not null;index" json:"report_id"`
	UserAgentHash string    `gorm:"size:64" json:"user_agent_hash"`
	IPHash        string    `gorm:"size:64" json:"ip_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidReportTarget reports whether t names a reportable entity type.
func ValidReportTarget(t string) bool {
	return t == ReportTargetUser || t == ReportTargetPost || t == ReportTargetMessage
}

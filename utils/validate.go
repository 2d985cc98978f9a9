package utils

import (
	"strings"

	"github.com/google/uuid"
)

const (
	MaxSpaceNameLength   = 100
	MaxDescriptionLength = 500
	MaxAnonContentLength = 500
)

// ContentValidation is the result of validating message input.
type ContentValidation struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`
}

// ValidateMessageContent checks the send rule: a message needs non-empty
// trimmed content or at least one attachment. Callers get a generic
// invalid-message reason either way.
func ValidateMessageContent(content string, attachmentCount int) ContentValidation {
	if strings.TrimSpace(content) == "" && attachmentCount == 0 {
		return ContentValidation{IsValid: false, Reason: "invalid message"}
	}
	return ContentValidation{IsValid: true}
}

// ValidateAnonContent checks content for an anonymous room send: non-empty
// and bounded length, attachments are not allowed there.
func ValidateAnonContent(content string) ContentValidation {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ContentValidation{IsValid: false, Reason: "invalid message"}
	}
	if len(trimmed) > MaxAnonContentLength {
		return ContentValidation{IsValid: false, Reason: "message too long"}
	}
	return ContentValidation{IsValid: true}
}

// ValidateSpaceName checks the bounded space name rule.
func ValidateSpaceName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= MaxSpaceNameLength
}

// IsUUIDv4 reports whether s is a canonically formatted version 4 UUID.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}

package utils

import (
	"encoding/json"
)

// EncodeAttachments serializes an attachment URL list for storage. An
// empty list stores as the empty string.
func EncodeAttachments(attachments []string) string {
	if len(attachments) == 0 {
		return ""
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// DecodeAttachments parses a stored attachment list.
func DecodeAttachments(stored string) []string {
	if stored == "" {
		return nil
	}
	var attachments []string
	if err := json.Unmarshal([]byte(stored), &attachments); err != nil {
		return nil
	}
	return attachments
}

package models

import "strings"

// ApprovalStatus is the normalized moderation state of a property.
type ApprovalStatus int

const (
	StatusPending ApprovalStatus = iota
	StatusApproved
	StatusRejected
)

// String returns the string representation of an ApprovalStatus.
func (s ApprovalStatus) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// ParseApprovalStatus normalizes the duck-typed approval values the
// marketplace sends (bool, 0/1, "true"/"false", enum strings) into a single
// tagged status. Unknown values map to pending.
func ParseApprovalStatus(raw interface{}) ApprovalStatus {
	switch v := raw.(type) {
	case bool:
		if v {
			return StatusApproved
		}
		return StatusPending
	case float64:
		// JSON numbers decode as float64.
		if v == 1 {
			return StatusApproved
		}
		return StatusPending
	case int:
		if v == 1 {
			return StatusApproved
		}
		return StatusPending
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "approved":
			return StatusApproved
		case "rejected", "declined":
			return StatusRejected
		default:
			return StatusPending
		}
	default:
		return StatusPending
	}
}

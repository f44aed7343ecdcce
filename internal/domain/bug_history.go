package domain

import "time"

// Fields tracked by the audit trail.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldStatus      = "status"
	FieldAssignee    = "assignee_id"
)

// BugHistoryEntry is an immutable record of one field change.
type BugHistoryEntry struct {
	ID            int64
	BugID         int64
	ChangedBy     int64
	ChangedByName string
	Field         string
	OldValue      *string
	NewValue      *string
	ChangedAt     time.Time
}

package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventBugCreated       EventType = "bug_created"
	EventBugStatusChanged EventType = "bug_status_changed"
	EventBugAssigned      EventType = "bug_assigned"
	EventCommentAdded     EventType = "comment_added"
)

// Event represents a domain event emitted after a write committed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	BugID     int64     `json:"bug_id"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, bugID, actorID int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		BugID:     bugID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// BugCreatedPayload payload.
type BugCreatedPayload struct {
	Title      string             `json:"title"`
	Priority   domain.BugPriority `json:"priority"`
	ReporterID int64              `json:"reporter_id"`
	AssigneeID *int64             `json:"assignee_id,omitempty"`
}

// BugStatusChangedPayload payload.
type BugStatusChangedPayload struct {
	Title      string           `json:"title"`
	OldStatus  domain.BugStatus `json:"old_status"`
	NewStatus  domain.BugStatus `json:"new_status"`
	ReporterID int64            `json:"reporter_id"`
	AssigneeID *int64           `json:"assignee_id,omitempty"`
}

// BugAssignedPayload payload.
type BugAssignedPayload struct {
	Title         string `json:"title"`
	OldAssigneeID *int64 `json:"old_assignee_id,omitempty"`
	AssigneeID    *int64 `json:"assignee_id,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	Title       string `json:"title"`
	ReporterID  int64  `json:"reporter_id"`
	AssigneeID  *int64 `json:"assignee_id,omitempty"`
	BodyPreview string `json:"body_preview"`
}

package domain

import "time"

// BugStatus enumerates lifecycle states for bugs. Every status is reachable
// from every other one; only vocabulary membership is enforced.
type BugStatus string

const (
	BugStatusNew        BugStatus = "New"
	BugStatusInProgress BugStatus = "In Progress"
	BugStatusResolved   BugStatus = "Resolved"
	BugStatusClosed     BugStatus = "Closed"
)

// BugPriority enumerates bug urgency.
type BugPriority string

const (
	BugPriorityLow      BugPriority = "Low"
	BugPriorityMedium   BugPriority = "Medium"
	BugPriorityHigh     BugPriority = "High"
	BugPriorityCritical BugPriority = "Critical"
)

// BugStatuses lists statuses in board order.
var BugStatuses = []BugStatus{BugStatusNew, BugStatusInProgress, BugStatusResolved, BugStatusClosed}

// BugPriorities lists priorities from least to most urgent.
var BugPriorities = []BugPriority{BugPriorityLow, BugPriorityMedium, BugPriorityHigh, BugPriorityCritical}

// ParseBugStatus returns the status matching s exactly.
func ParseBugStatus(s string) (BugStatus, bool) {
	for _, status := range BugStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// ParseBugPriority returns the priority matching s exactly.
func ParseBugPriority(s string) (BugPriority, bool) {
	for _, priority := range BugPriorities {
		if string(priority) == s {
			return priority, true
		}
	}
	return "", false
}

// Bug is the aggregate for a tracked defect.
type Bug struct {
	ID          int64
	ProjectID   *int64
	Title       string
	Description string
	Priority    BugPriority
	Status      BugStatus
	ReporterID  int64
	AssigneeID  *int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time

	// Read-model columns joined from projects and users.
	ProjectName  *string
	ReporterName string
	AssigneeName *string
}

// DuplicateCandidate is an existing bug whose text overlaps a proposed title.
type DuplicateCandidate struct {
	ID    int64
	Title string
}

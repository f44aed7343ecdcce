package domain

import "time"

// Project groups bugs.
type Project struct {
	ID          int64
	Name        string
	Description string
	BugCount    int64
	CreatedAt   time.Time
}

package domain

import "time"

// Comment is a remark attached to a bug.
type Comment struct {
	ID        int64
	BugID     int64
	UserID    int64
	UserName  string
	Text      string
	CreatedAt time.Time
}

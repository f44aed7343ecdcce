package domain

import "time"

// Attachment stores metadata for a file uploaded against a bug.
type Attachment struct {
	ID         int64
	BugID      int64
	UploadedBy int64
	FileName   string
	FilePath   string
	MimeType   string
	SizeBytes  int64
	UploadedAt time.Time
}

package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// OptionalID is a reference id posted as a JSON number, a numeric string or
// an empty value. Zero means "none".
type OptionalID struct {
	Value int64
	Set   bool
}

var errInvalidID = errors.New("invalid id")

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = OptionalID{Set: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return o.UnmarshalText([]byte(s))
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errInvalidID
	}
	*o = OptionalID{Value: v, Set: true}
	return nil
}

func (o *OptionalID) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*o = OptionalID{Set: true}
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errInvalidID
	}
	*o = OptionalID{Value: v, Set: true}
	return nil
}

// Ptr returns the id, or nil when it was absent or empty.
func (o OptionalID) Ptr() *int64 {
	if !o.Set || o.Value == 0 {
		return nil
	}
	v := o.Value
	return &v
}

// Flag is a checkbox-style boolean: true, 1, on and yes are true.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}

func (f *Flag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "true", "on", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// CreateBugRequest payload.
type CreateBugRequest struct {
	Title       string     `json:"title" form:"title"`
	Description string     `json:"description" form:"description"`
	Priority    string     `json:"priority" form:"priority"`
	ProjectID   OptionalID `json:"project_id" form:"project_id"`
	AssigneeID  OptionalID `json:"assignee_id" form:"assignee_id"`
	ForceCreate Flag       `json:"force_create" form:"force_create"`
}

// UpdateBugRequest is a partial update. A nil field was absent from the
// body; AssigneeSet marks an assignee_id key that was present.
type UpdateBugRequest struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	AssigneeSet bool
	AssigneeID  *int64
}

// FieldDecodeError names the patch key that could not be decoded.
type FieldDecodeError struct {
	Field string
}

func (e *FieldDecodeError) Error() string {
	return "invalid value for " + e.Field
}

// DecodeUpdateBugRequest reads a patch from raw keys. Unknown keys are
// ignored and a null text key counts as absent.
func DecodeUpdateBugRequest(raw map[string]json.RawMessage) (UpdateBugRequest, error) {
	var req UpdateBugRequest
	text := func(key string) (*string, error) {
		value, ok := raw[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, &FieldDecodeError{Field: key}
		}
		return &s, nil
	}

	var err error
	if req.Title, err = text("title"); err != nil {
		return req, err
	}
	if req.Description, err = text("description"); err != nil {
		return req, err
	}
	if req.Priority, err = text("priority"); err != nil {
		return req, err
	}
	if req.Status, err = text("status"); err != nil {
		return req, err
	}
	if value, ok := raw["assignee_id"]; ok {
		var id OptionalID
		if err := id.UnmarshalJSON(value); err != nil {
			return req, &FieldDecodeError{Field: "assignee"}
		}
		req.AssigneeSet = true
		req.AssigneeID = id.Ptr()
	}
	return req, nil
}

// StatusRequest payload for status transitions.
type StatusRequest struct {
	Status string `json:"status" form:"status"`
}

// CommentRequest payload.
type CommentRequest struct {
	Comment string `json:"comment" form:"comment"`
}

// BugResponse is the public shape of a bug.
type BugResponse struct {
	ID           int64              `json:"id"`
	ProjectID    *int64             `json:"project_id"`
	ProjectName  *string            `json:"project_name"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Priority     domain.BugPriority `json:"priority"`
	Status       domain.BugStatus   `json:"status"`
	ReporterID   int64              `json:"reporter_id"`
	ReporterName string             `json:"reporter_name"`
	AssigneeID   *int64             `json:"assignee_id"`
	AssigneeName *string            `json:"assignee_name"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    *time.Time         `json:"updated_at"`
}

// CommentResponse is one comment with its author.
type CommentResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse is attachment metadata.
type AttachmentResponse struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy int64     `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID            int64     `json:"id"`
	Field         string    `json:"field_name"`
	OldValue      *string   `json:"old_value"`
	NewValue      *string   `json:"new_value"`
	ChangedBy     int64     `json:"changed_by"`
	ChangedByName string    `json:"changed_by_name"`
	ChangedAt     time.Time `json:"changed_at"`
}

// DuplicateResponse is one candidate behind a duplicate warning.
type DuplicateResponse struct {
	BugID int64  `json:"bug_id"`
	Title string `json:"title"`
}

// NewBugResponse maps a domain bug.
func NewBugResponse(bug domain.Bug) BugResponse {
	return BugResponse{
		ID:           bug.ID,
		ProjectID:    bug.ProjectID,
		ProjectName:  bug.ProjectName,
		Title:        bug.Title,
		Description:  bug.Description,
		Priority:     bug.Priority,
		Status:       bug.Status,
		ReporterID:   bug.ReporterID,
		ReporterName: bug.ReporterName,
		AssigneeID:   bug.AssigneeID,
		AssigneeName: bug.AssigneeName,
		CreatedAt:    bug.CreatedAt,
		UpdatedAt:    bug.UpdatedAt,
	}
}

// NewBugResponses maps a slice, never returning nil.
func NewBugResponses(bugs []domain.Bug) []BugResponse {
	out := make([]BugResponse, 0, len(bugs))
	for _, bug := range bugs {
		out = append(out, NewBugResponse(bug))
	}
	return out
}

func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, CommentResponse{
			ID:        comment.ID,
			UserID:    comment.UserID,
			UserName:  comment.UserName,
			Comment:   comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
	return out
}

func NewAttachmentResponses(attachments []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		out = append(out, AttachmentResponse{
			ID:         attachment.ID,
			FileName:   attachment.FileName,
			MimeType:   attachment.MimeType,
			SizeBytes:  attachment.SizeBytes,
			UploadedBy: attachment.UploadedBy,
			UploadedAt: attachment.UploadedAt,
			URL:        "/api/attachments/" + strconv.FormatInt(attachment.ID, 10),
		})
	}
	return out
}

func NewHistoryResponses(entries []domain.BugHistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryResponse{
			ID:            entry.ID,
			Field:         entry.Field,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			ChangedBy:     entry.ChangedBy,
			ChangedByName: entry.ChangedByName,
			ChangedAt:     entry.ChangedAt,
		})
	}
	return out
}

func NewDuplicateResponses(candidates []domain.DuplicateCandidate) []DuplicateResponse {
	out := make([]DuplicateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, DuplicateResponse{BugID: candidate.ID, Title: candidate.Title})
	}
	return out
}

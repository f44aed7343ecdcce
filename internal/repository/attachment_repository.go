package repository

import (
	"context"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id int64) (*domain.Attachment, error)
	ListByBug(ctx context.Context, bugID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (bug_id, uploaded_by, file_name, file_path, mime_type, size_bytes, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,NOW())
        RETURNING attachment_id, uploaded_at`
	return r.db.QueryRow(ctx, query,
		attachment.BugID,
		attachment.UploadedBy,
		attachment.FileName,
		attachment.FilePath,
		attachment.MimeType,
		attachment.SizeBytes,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	const query = `
        SELECT attachment_id, bug_id, uploaded_by, file_name, file_path, mime_type, size_bytes, uploaded_at
        FROM attachments WHERE attachment_id=$1`
	var attachment domain.Attachment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.BugID,
		&attachment.UploadedBy,
		&attachment.FileName,
		&attachment.FilePath,
		&attachment.MimeType,
		&attachment.SizeBytes,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByBug(ctx context.Context, bugID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT attachment_id, bug_id, uploaded_by, file_name, file_path, mime_type, size_bytes, uploaded_at
        FROM attachments WHERE bug_id=$1 ORDER BY uploaded_at ASC, attachment_id ASC`
	rows, err := r.db.Query(ctx, query, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.BugID,
			&attachment.UploadedBy,
			&attachment.FileName,
			&attachment.FilePath,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

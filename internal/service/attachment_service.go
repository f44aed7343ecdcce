package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

// AttachmentService stores uploaded files on local disk and their metadata
// in the database.
type AttachmentService struct {
	attachments repository.AttachmentRepository
	bugs        repository.BugRepository
	dir         string
	maxBytes    int64
	allowed     map[string]struct{}
	logger      *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(attachments repository.AttachmentRepository, bugs repository.BugRepository, cfg config.UploadsConfig, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &AttachmentService{
		attachments: attachments,
		bugs:        bugs,
		dir:         cfg.Dir,
		maxBytes:    cfg.MaxBytes,
		allowed:     allowed,
		logger:      logger,
	}
}

// UploadInput is one uploaded file.
type UploadInput struct {
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Upload validates and stores a file against an existing bug.
func (s *AttachmentService) Upload(ctx context.Context, actor domain.Identity, bugID int64, input UploadInput) (*domain.Attachment, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if _, err := s.bugs.GetByID(ctx, bugID); err != nil {
		return nil, notFoundOr(s.logger, "bugs.get", "bug", bugID, err)
	}

	name := filepath.Base(strings.TrimSpace(input.FileName))
	ext := strings.ToLower(filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) || ext == "" {
		return nil, apperrors.NewFieldError("file", "file is required")
	}
	if _, ok := s.allowed[strings.TrimPrefix(ext, ".")]; !ok {
		return nil, apperrors.NewFieldError("file", "file type not allowed")
	}
	if input.Size > s.maxBytes {
		return nil, apperrors.NewFieldError("file", "file too large")
	}

	storedPath, written, err := s.store(ext, input.Content)
	if err != nil {
		return nil, err
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	attachment := &domain.Attachment{
		BugID:      bugID,
		UploadedBy: actor.ID,
		FileName:   name,
		FilePath:   storedPath,
		MimeType:   mimeType,
		SizeBytes:  written,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		_ = os.Remove(storedPath)
		return nil, storeFailure(s.logger, "attachments.create", err, zap.Int64("bug_id", bugID))
	}
	return attachment, nil
}

var errTooLarge = errors.New("file too large")

// store copies content to a uuid-named file under the upload directory,
// refusing to write more than maxBytes.
func (s *AttachmentService) store(ext string, content io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, storeFailure(s.logger, "uploads.mkdir", err)
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, storeFailure(s.logger, "uploads.create", err)
	}

	written, err := io.Copy(file, io.LimitReader(content, s.maxBytes+1))
	if err == nil && written > s.maxBytes {
		err = errTooLarge
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, errTooLarge) {
			return "", 0, apperrors.NewFieldError("file", "file too large")
		}
		return "", 0, storeFailure(s.logger, "uploads.write", fmt.Errorf("write %s: %w", path, err))
	}
	return path, written, nil
}

// Get returns attachment metadata; the file lives at FilePath.
func (s *AttachmentService) Get(ctx context.Context, actor domain.Identity, id int64) (*domain.Attachment, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(s.logger, "attachments.get", "attachment", id, err)
	}
	if _, err := os.Stat(attachment.FilePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": id})
		}
		return nil, storeFailure(s.logger, "uploads.stat", err)
	}
	return attachment, nil
}

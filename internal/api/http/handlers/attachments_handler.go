package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/service"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

// AttachmentsHandler handles uploads and downloads.
type AttachmentsHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachments *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments}
}

// Upload POST /api/bugs/:id/attachments with multipart field "file".
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	bugID, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewFieldError("file", "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.UserContext(), actor, bugID, service.UploadInput{
		FileName: header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"attachment_id": attachment.ID}))
}

// Download GET /api/attachments/:id.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "attachment")
	if err != nil {
		return err
	}
	attachment, err := h.attachments.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, attachment.MimeType)
	return c.Download(attachment.FilePath, attachment.FileName)
}

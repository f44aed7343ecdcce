package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/api/dto"
	"github.com/bugsage-dev/bugsage/internal/service"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

const duplicateWarning = "Possible duplicate bugs found"

// BugsHandler exposes the bug lifecycle endpoints.
type BugsHandler struct {
	service *service.BugService
}

// NewBugsHandler constructs handler.
func NewBugsHandler(bugService *service.BugService) *BugsHandler {
	return &BugsHandler{service: bugService}
}

// Create POST /api/bugs.
func (h *BugsHandler) Create(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateBugRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	result, err := h.service.Create(c.UserContext(), actor, service.CreateBugInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID.Ptr(),
		AssigneeID:  req.AssigneeID.Ptr(),
		Force:       bool(req.ForceCreate),
	})
	if err != nil {
		return err
	}
	if result.IsWarning() {
		return c.JSON(fiber.Map{
			"warning":    duplicateWarning,
			"duplicates": dto.NewDuplicateResponses(result.Duplicates),
		})
	}
	return c.JSON(success(fiber.Map{"bug_id": result.BugID}))
}

// Update PUT /api/bugs/:id.
func (h *BugsHandler) Update(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	raw, err := patchKeys(c)
	if err != nil {
		return err
	}
	req, err := dto.DecodeUpdateBugRequest(raw)
	if err != nil {
		var fieldErr *dto.FieldDecodeError
		if errors.As(err, &fieldErr) {
			return apperrors.NewFieldError(fieldErr.Field, "invalid "+fieldErr.Field)
		}
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.service.Update(c.UserContext(), actor, id, service.BugPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		AssigneeSet: req.AssigneeSet,
		AssigneeID:  req.AssigneeID,
	}); err != nil {
		return err
	}
	return c.JSON(success(nil))
}

// patchKeys returns the keys present in a JSON object or form body.
func patchKeys(c *fiber.Ctx) (map[string]json.RawMessage, error) {
	raw := map[string]json.RawMessage{}
	if len(c.Body()) == 0 {
		return raw, nil
	}
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.HasPrefix(contentType, fiber.MIMEApplicationForm) {
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			encoded, _ := json.Marshal(string(value))
			raw[string(key)] = encoded
		})
		return raw, nil
	}
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	return raw, nil
}

// UpdateStatus POST /api/bugs/:id/status.
func (h *BugsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.TransitionStatus(c.UserContext(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"message": result.Message}))
}

// AddComment POST /api/bugs/:id/comments.
func (h *BugsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), actor, id, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{"comment_id": comment.ID}))
}

// Get GET /api/bugs/:id.
func (h *BugsHandler) Get(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	details, err := h.service.GetDetails(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"bug":         dto.NewBugResponse(details.Bug),
		"comments":    dto.NewCommentResponses(details.Comments),
		"attachments": dto.NewAttachmentResponses(details.Attachments),
	})
}

// List GET /api/bugs.
func (h *BugsHandler) List(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	input := service.ListBugsInput{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Assignee: c.Query("assignee"),
		Page:     c.QueryInt("page", 1),
		PerPage:  c.QueryInt("per_page", 0),
	}
	if project := strings.TrimSpace(c.Query("project")); project != "" {
		projectID, err := strconv.ParseInt(project, 10, 64)
		if err != nil {
			return apperrors.NewFieldError("project", "invalid project")
		}
		input.ProjectID = &projectID
	}

	page, err := h.service.List(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"bugs":       dto.NewBugResponses(page.Bugs),
		"pagination": page.Pagination,
	})
}

// Search GET /api/bugs/search.
func (h *BugsHandler) Search(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	bugs, err := h.service.Search(c.UserContext(), actor, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": dto.NewBugResponses(bugs)})
}

// History GET /api/bugs/:id/history.
func (h *BugsHandler) History(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "bug")
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": dto.NewHistoryResponses(entries)})
}

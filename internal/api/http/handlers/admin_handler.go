package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/api/dto"
	"github.com/bugsage-dev/bugsage/internal/service"
)

// AdminHandler serves projects and users, the data behind the admin panel
// and the assignee pickers.
type AdminHandler struct {
	projects *service.ProjectService
	users    *service.UserService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(projects *service.ProjectService, users *service.UserService) *AdminHandler {
	return &AdminHandler{projects: projects, users: users}
}

// ListProjects GET /api/projects.
func (h *AdminHandler) ListProjects(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	projects, err := h.projects.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"projects": dto.NewProjectResponses(projects)})
}

// CreateProject POST /api/projects.
func (h *AdminHandler) CreateProject(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ProjectRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	project, err := h.projects.Create(c.UserContext(), actor, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(success(fiber.Map{
		"project_id": project.ID,
		"message":    "Project created",
	}))
}

// ListUsers GET /api/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": dto.NewUserResponses(users)})
}

// UpdateRole PUT /api/users/:id/role.
func (h *AdminHandler) UpdateRole(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.users.UpdateRole(c.UserContext(), actor, id, req.Role); err != nil {
		return err
	}
	return c.JSON(success(nil))
}

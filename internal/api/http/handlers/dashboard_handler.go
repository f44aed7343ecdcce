package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/api/dto"
	"github.com/bugsage-dev/bugsage/internal/service"
)

// DashboardHandler serves report endpoints.
type DashboardHandler struct {
	reports *service.ReportService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(reports *service.ReportService) *DashboardHandler {
	return &DashboardHandler{reports: reports}
}

// Stats GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.reports.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// Recent GET /api/dashboard/recent.
func (h *DashboardHandler) Recent(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	bugs, err := h.reports.Recent(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"bugs": dto.NewBugResponses(bugs)})
}

// Charts GET /api/dashboard/charts.
func (h *DashboardHandler) Charts(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	charts, err := h.reports.Charts(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(charts)
}

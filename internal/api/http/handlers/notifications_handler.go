package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bugsage-dev/bugsage/internal/api/dto"
	"github.com/bugsage-dev/bugsage/internal/service"
)

// NotificationsHandler serves the caller's in-app notifications.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /api/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notifications": dto.NewNotificationResponses(items)})
}

// MarkRead POST /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "notification")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(success(nil))
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/events"
	"github.com/bugsage-dev/bugsage/internal/repository"
)

const notificationListLimit = 50

// NotificationService turns domain events into per-user notifications.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventBugCreated, n.handleBugCreated)
	n.dispatcher.Subscribe(events.EventBugStatusChanged, n.handleBugStatusChanged)
	n.dispatcher.Subscribe(events.EventBugAssigned, n.handleBugAssigned)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
}

func (n *NotificationService) handleBugCreated(_ context.Context, event events.Event) error {
	n.logger.Info("BugCreated", zap.Int64("bug_id", event.BugID), zap.Int64("actor_id", event.ActorID))
	return nil
}

func (n *NotificationService) handleBugStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.BugStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	message := fmt.Sprintf("Bug #%d %q moved from %s to %s", event.BugID, payload.Title, payload.OldStatus, payload.NewStatus)
	return n.notify(ctx, event.ActorID, message, &payload.ReporterID, payload.AssigneeID)
}

func (n *NotificationService) handleBugAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.BugAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	message := fmt.Sprintf("You have been assigned bug #%d: %s", event.BugID, payload.Title)
	return n.notify(ctx, event.ActorID, message, payload.AssigneeID)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	message := fmt.Sprintf("New comment on bug #%d %q: %s", event.BugID, payload.Title, payload.BodyPreview)
	return n.notify(ctx, event.ActorID, message, &payload.ReporterID, payload.AssigneeID)
}

// notify writes message once to every distinct recipient except the actor.
func (n *NotificationService) notify(ctx context.Context, actorID int64, message string, recipients ...*int64) error {
	seen := map[int64]struct{}{actorID: {}}
	for _, recipient := range recipients {
		if recipient == nil || *recipient <= 0 {
			continue
		}
		if _, dup := seen[*recipient]; dup {
			continue
		}
		seen[*recipient] = struct{}{}
		notification := &domain.Notification{UserID: *recipient, Message: message}
		if err := n.notifications.Create(ctx, notification); err != nil {
			return fmt.Errorf("notify user %d: %w", *recipient, err)
		}
	}
	return nil
}

// List returns the caller's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, actor domain.Identity) ([]domain.Notification, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	items, err := n.notifications.ListByUser(ctx, actor.ID, notificationListLimit)
	if err != nil {
		return nil, storeFailure(n.logger, "notifications.list", err, zap.Int64("user_id", actor.ID))
	}
	return items, nil
}

// MarkRead flags one of the caller's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Identity, id int64) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if err := n.notifications.MarkRead(ctx, id, actor.ID); err != nil {
		return notFoundOr(n.logger, "notifications.mark_read", "notification", id, err)
	}
	return nil
}

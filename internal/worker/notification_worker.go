package worker

import (
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/service"
)

// StartNotificationWorker subscribes the notification service to bug
// events. Delivery is synchronous with the publishing request, after its
// write has committed.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if logger != nil {
		logger.Info("notification worker subscribed")
	}
}

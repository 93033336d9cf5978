package worker

import (
	"github.com/concerttix/console/internal/service"
)

// StartNotificationWorker registers the toast handlers on the dispatcher.
// It must run before the session manager is initialized so the startup
// transitions reach the feed.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

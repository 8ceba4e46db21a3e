package worker

import (
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/service"
)

// StartNotificationWorker registers notification handlers and starts the
// goroutines that deliver queued mail events.
func StartNotificationWorker(dispatcher *events.AsyncDispatcher, notificationService *service.NotificationService, workers int) {
	if dispatcher == nil {
		return
	}
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	dispatcher.Start(workers)
}

package notification

import (
	"github.com/flexprice/freemium/internal/email"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/webhook/publisher"
)

// NewDispatcher delivers every notice by email and as a lifecycle event
func NewDispatcher(sender *email.Email, pub publisher.WebhookPublisher, logger *logger.Logger) Dispatcher {
	return NewMultiDispatcher(
		NewEmailDispatcher(sender, logger),
		NewEventDispatcher(pub),
	)
}

package webhook

import (
	"context"

	"github.com/flexprice/freemium/internal/config"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	pubsubRouter "github.com/flexprice/freemium/internal/pubsub/router"
	"github.com/flexprice/freemium/internal/webhook/handler"
	"github.com/flexprice/freemium/internal/webhook/publisher"
)

// WebhookService runs delivery of lifecycle events to the configured endpoint
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	router    *pubsubRouter.Router
	logger    *logger.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	router *pubsubRouter.Router,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		router:    router,
		logger:    l,
	}
}

// Start registers the delivery handler and runs the router in the background
func (s *WebhookService) Start(ctx context.Context) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook service disabled")
		return nil
	}

	s.handler.RegisterHandler(s.router)

	go func() {
		if err := s.router.Run(context.Background()); err != nil {
			s.logger.Errorw("webhook router stopped", "error", err)
		}
	}()

	select {
	case <-s.router.Running():
	case <-ctx.Done():
		return ierr.WithError(ctx.Err()).
			WithHint("Webhook router did not start in time").
			Mark(ierr.ErrSystem)
	}

	s.logger.Info("webhook service started successfully")
	return nil
}

// Stop stops the webhook service
func (s *WebhookService) Stop() error {
	if !s.config.Webhook.Enabled {
		return nil
	}

	s.logger.Debug("stopping webhook service")

	if err := s.router.Close(); err != nil {
		s.logger.Errorw("failed to close webhook router", "error", err)
		return err
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close webhook publisher", "error", err)
		return err
	}

	s.logger.Info("webhook service stopped successfully")
	return nil
}

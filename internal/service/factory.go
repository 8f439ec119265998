package service

import (
	"time"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/domain/plan"
	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/idempotency"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/notification"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/sentry"
	"github.com/flexprice/freemium/internal/types"
	webhookPublisher "github.com/flexprice/freemium/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service

	// Repositories
	PlanRepo plan.Repository
	SubRepo  subscription.Repository

	// External collaborators
	Gateway          payment.Gateway
	Notifier         notification.Dispatcher
	WebhookPublisher webhookPublisher.WebhookPublisher
	IdempotencyGen   *idempotency.Generator

	// Now is the clock billing dates are derived from
	Now func() time.Time
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	gateway payment.Gateway,
	notifier notification.Dispatcher,
	webhookPublisher webhookPublisher.WebhookPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Sentry:           sentry,
		PlanRepo:         planRepo,
		SubRepo:          subRepo,
		Gateway:          gateway,
		Notifier:         notifier,
		WebhookPublisher: webhookPublisher,
		IdempotencyGen:   idempotency.NewGenerator(),
		Now:              time.Now,
	}
}

// Today is the current billing date
func (p ServiceParams) Today() time.Time {
	return types.Today(p.Now)
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/email"
	"github.com/flexprice/freemium/internal/integration"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/notification"
	"github.com/flexprice/freemium/internal/postgres"
	repository "github.com/flexprice/freemium/internal/repository/postgres"
	"github.com/flexprice/freemium/internal/scheduler"
	"github.com/flexprice/freemium/internal/sentry"
	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/flexprice/freemium/internal/webhook"
	"go.uber.org/fx"
)

func init() {
	// Billing dates are computed in UTC
	time.Local = time.UTC
}

func main() {
	// The run mode decides which providers are wired, so config is loaded up front
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Supply(cfg),
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Logger
			logger.NewLogger,
		),
		sentry.Module(),
		postgres.Module(),
		repository.Module(),
		fx.Provide(
			// Payment gateway
			integration.NewGateway,

			// Email
			email.NewEmailClient,
			email.NewEmail,

			// Notices
			notification.NewDispatcher,
		),
	)

	// Webhook module (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts, service.Module())

	// Billing trigger
	opts = append(opts, billingTrigger(cfg)...)

	app := fx.New(opts...)
	app.Run()
}

// billingTrigger picks what runs the billing cycle. Temporal owns the schedule
// when enabled; otherwise the in-process cron scheduler does.
func billingTrigger(cfg *config.Configuration) []fx.Option {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	if mode == types.ModeTemporalWorker || cfg.Temporal.Enabled {
		return []fx.Option{
			fx.Provide(
				provideTemporalConfig,
				temporal.NewTemporalClient,
				temporal.NewService,
				temporal.NewWorker,
			),
			fx.Invoke(func(lc fx.Lifecycle, w *temporal.Worker, svc *temporal.Service, client *temporal.TemporalClient, log *logger.Logger) {
				startTemporal(lc, mode, w, svc, client, log)
			}),
		}
	}

	return []fx.Option{scheduler.Module()}
}

func provideTemporalConfig(cfg *config.Configuration) *config.TemporalConfig {
	return &cfg.Temporal
}

func startTemporal(
	lc fx.Lifecycle,
	mode types.RunMode,
	w *temporal.Worker,
	svc *temporal.Service,
	client *temporal.TemporalClient,
	log *logger.Logger,
) {
	w.RegisterWithLifecycle(lc)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// a dedicated worker only executes; the scheduling deployment registers the cron
			if mode == types.ModeTemporalWorker {
				return nil
			}
			return svc.ScheduleBillingCycle(types.NewSystemContext(ctx, ""))
		},
		OnStop: func(ctx context.Context) error {
			log.Info("closing temporal client")
			client.Close()
			return nil
		},
	})
}

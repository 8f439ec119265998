package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/email"
	"github.com/flexprice/freemium/internal/integration"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/notification"
	"github.com/flexprice/freemium/internal/postgres"
	repository "github.com/flexprice/freemium/internal/repository/postgres"
	"github.com/flexprice/freemium/internal/sentry"
	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/flexprice/freemium/internal/webhook"
	"go.uber.org/fx"
)

func init() {
	time.Local = time.UTC
}

// billing runs one billing cycle and exits. The exit code is 1 when any item
// or phase failed.
func main() {
	tenantID := flag.String("tenant", "", "Tenant to bill (defaults to the system tenant)")
	viaTemporal := flag.Bool("temporal", false, "Execute the cycle as a Temporal workflow instead of in-process")
	timeout := flag.Duration("timeout", 6*time.Hour, "Give up after this long")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		billing     service.BillingService
		temporalSvc *temporal.Service
		lg          *logger.Logger
	)

	opts := []fx.Option{
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(
			validator.NewValidator,
			logger.NewLogger,
		),
		sentry.Module(),
		postgres.Module(),
		repository.Module(),
		fx.Provide(
			integration.NewGateway,
			email.NewEmailClient,
			email.NewEmail,
			notification.NewDispatcher,
		),
		webhook.Module,
		service.Module(),
		fx.Populate(&billing, &lg),
	}
	if *viaTemporal {
		opts = append(opts,
			fx.Provide(
				func(cfg *config.Configuration) *config.TemporalConfig { return &cfg.Temporal },
				temporal.NewTemporalClient,
				temporal.NewService,
			),
			fx.Populate(&temporalSvc),
		)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	ctx, cancel := context.WithTimeout(types.NewSystemContext(context.Background(), *tenantID), *timeout)
	defer cancel()

	var report *service.BillingReport
	if temporalSvc != nil {
		report, err = temporalSvc.RunBillingCycle(ctx)
		temporalSvc.Close()
	} else {
		report, err = billing.RunBilling(ctx)
	}

	if report != nil {
		fmt.Println(report.Subject())
		fmt.Println(report.Text())
	}
	if err != nil {
		lg.Errorw("billing run finished with errors", "error", err)
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if stopErr := app.Stop(stopCtx); stopErr != nil {
		lg.Errorw("failed to stop application", "error", stopErr)
	}

	if err != nil || (report != nil && report.HasFailures()) {
		os.Exit(1)
	}
}

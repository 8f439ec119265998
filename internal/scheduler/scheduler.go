package scheduler

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/config"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

// Scheduler triggers the billing cycle on the configured cron schedule. A
// run still in progress when the next one is due makes the next one skip.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	billing  service.BillingService
	logger   *logger.Logger
	timeout  time.Duration
}

// Module provides the scheduler and ties it to the fx lifecycle
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewScheduler),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}

// NewScheduler validates the schedule and registers the billing job
func NewScheduler(cfg *config.Configuration, billing service.BillingService, log *logger.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Billing.Schedule); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("billing.schedule %q is not a valid cron expression", cfg.Billing.Schedule).
			WithReportableDetails(map[string]any{"schedule": cfg.Billing.Schedule}).
			Mark(ierr.ErrValidation)
	}

	cl := &cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: cfg.Billing.Schedule,
		billing:  billing,
		logger:   log,
		timeout:  6 * time.Hour,
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runBilling); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Billing job could not be scheduled").
			Mark(ierr.ErrSystem)
	}
	return s, nil
}

// Start begins firing the schedule in the background
func (s *Scheduler) Start() error {
	s.cron.Start()
	s.logger.Infow("billing scheduler started", "schedule", s.schedule, "next_run", s.NextRun())
	return nil
}

// Stop stops the schedule and waits for a running cycle until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("billing scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("billing run still in progress at shutdown")
		return ctx.Err()
	}
}

// NextRun is when the billing job fires next, zero before Start
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runBilling() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.billing.RunBilling(ctx)
	if err != nil {
		s.logger.Errorw("scheduled billing run finished with errors", "error", err)
	}
	if report != nil {
		s.logger.Infow("scheduled billing run completed",
			"run_id", report.RunID,
			"failures", len(report.Failures),
		)
	}
}

// cronLogger routes cron's own messages through the application logger
type cronLogger struct {
	log *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

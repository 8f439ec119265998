package temporal

import (
	"context"

	"github.com/flexprice/freemium/internal/config"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal/models"
	"github.com/flexprice/freemium/internal/types"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Service handles Temporal workflow operations
type Service struct {
	client *TemporalClient
	log    *logger.Logger
	cfg    *config.Configuration
}

// NewService creates a new Temporal service
func NewService(client *TemporalClient, cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{
		client: client,
		log:    log,
		cfg:    cfg,
	}
}

// ScheduleBillingCycle registers the billing cycle as a cron workflow on the
// configured schedule. An existing schedule is left in place.
func (s *Service) ScheduleBillingCycle(ctx context.Context) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                                       models.BillingCycleWorkflowID,
		TaskQueue:                                s.cfg.Temporal.TaskQueue,
		CronSchedule:                             s.cfg.Billing.Schedule,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	input := models.BillingCycleInput{TenantID: types.GetTenantID(ctx)}
	we, err := s.client.Client.ExecuteWorkflow(ctx, workflowOptions, models.BillingCycleWorkflowName, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if ierr.As(err, &started) {
			s.log.Infow("billing cycle already scheduled", "workflow_id", models.BillingCycleWorkflowID)
			return nil
		}
		s.log.Errorw("failed to schedule billing cycle", "error", err)
		return ierr.WithError(err).
			WithHint("Billing cycle workflow could not be scheduled").
			Mark(ierr.ErrSystem)
	}

	s.log.Infow("scheduled billing cycle workflow",
		"workflow_id", we.GetID(),
		"run_id", we.GetRunID(),
		"schedule", s.cfg.Billing.Schedule,
	)
	return nil
}

// RunBillingCycle starts one cycle now and waits for its report
func (s *Service) RunBillingCycle(ctx context.Context) (*service.BillingReport, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:        models.BillingCycleWorkflowID + "-" + types.GenerateUUID(),
		TaskQueue: s.cfg.Temporal.TaskQueue,
	}

	input := models.BillingCycleInput{TenantID: types.GetTenantID(ctx)}
	we, err := s.client.Client.ExecuteWorkflow(ctx, workflowOptions, models.BillingCycleWorkflowName, input)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Billing cycle workflow could not be started").
			Mark(ierr.ErrSystem)
	}

	var report service.BillingReport
	if err := we.Get(ctx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Close closes the temporal client
func (s *Service) Close() {
	s.client.Close()
}

package workflows

import (
	"time"

	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal/models"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var billingPhases = []struct {
	phase    service.BillingPhase
	activity string
}{
	{service.PhaseTransactions, models.ActivityProcessNewTransactions},
	{service.PhaseExpirable, models.ActivityFindExpirable},
	{service.PhaseExpire, models.ActivityExpireElapsed},
}

// BillingCycleWorkflow runs one billing cycle with every phase as its own
// activity. A phase that still fails after its retries is recorded in the
// report and the next phase runs anyway.
func BillingCycleWorkflow(ctx workflow.Context, input models.BillingCycleInput) (*service.BillingReport, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting billing cycle workflow", "tenantID", input.TenantID)

	opts := models.DefaultActivityOptions
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: opts.StartToCloseTimeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    opts.MaximumAttempts,
		},
	})

	var report service.BillingReport
	if err := workflow.ExecuteActivity(ctx, models.ActivityStartRun, input).Get(ctx, &report); err != nil {
		logger.Error("Failed to start billing run", "error", err)
		return nil, err
	}

	for _, p := range billingPhases {
		var next service.BillingReport
		if err := workflow.ExecuteActivity(ctx, p.activity, report).Get(ctx, &next); err != nil {
			logger.Error("Billing phase failed", "runID", report.RunID, "phase", p.phase, "error", err)
			report.AddFailure(p.phase, "", "", err)
			continue
		}
		report = next
	}

	report.FinishedAt = workflow.Now(ctx).UTC()
	if err := workflow.ExecuteActivity(ctx, models.ActivitySendReport, report).Get(ctx, nil); err != nil {
		logger.Error("Failed to send billing report", "runID", report.RunID, "error", err)
	}

	logger.Info("Billing cycle workflow completed",
		"runID", report.RunID,
		"paymentsApplied", report.PaymentsApplied,
		"expired", report.Expired,
		"failures", len(report.Failures))
	return &report, nil
}

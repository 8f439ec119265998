package activities

import (
	"context"

	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal/models"
	"github.com/flexprice/freemium/internal/types"
)

// BillingActivities exposes each billing phase as a Temporal activity. The
// report travels between activities so each phase can be retried alone.
type BillingActivities struct {
	billingService service.BillingService
}

// NewBillingActivities creates a new BillingActivities instance
func NewBillingActivities(billingService service.BillingService) *BillingActivities {
	return &BillingActivities{billingService: billingService}
}

// runContext rebuilds the tenant and run id the phases log and tag with
func runContext(ctx context.Context, report *service.BillingReport) context.Context {
	ctx = types.NewSystemContext(ctx, report.TenantID)
	return types.SetBillingRunID(ctx, report.RunID)
}

// StartRun opens a report dated by the service clock
func (a *BillingActivities) StartRun(ctx context.Context, input models.BillingCycleInput) (*service.BillingReport, error) {
	_, report := a.billingService.NewReport(types.NewSystemContext(ctx, input.TenantID))
	return report, nil
}

// ProcessNewTransactions returns the report with the transaction phase applied
func (a *BillingActivities) ProcessNewTransactions(ctx context.Context, report service.BillingReport) (*service.BillingReport, error) {
	if err := a.billingService.ProcessNewTransactions(runContext(ctx, &report), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FindExpirable returns the report with newly started grace periods
func (a *BillingActivities) FindExpirable(ctx context.Context, report service.BillingReport) (*service.BillingReport, error) {
	if err := a.billingService.FindExpirable(runContext(ctx, &report), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ExpireElapsed returns the report with expired subscriptions counted
func (a *BillingActivities) ExpireElapsed(ctx context.Context, report service.BillingReport) (*service.BillingReport, error) {
	if err := a.billingService.ExpireElapsed(runContext(ctx, &report), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SendReport mails the summary and publishes the run completed event
func (a *BillingActivities) SendReport(ctx context.Context, report service.BillingReport) error {
	return a.billingService.SendReport(runContext(ctx, &report), &report)
}

package temporal

import (
	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal/activities"
	"github.com/flexprice/freemium/internal/temporal/workflows"
	"go.temporal.io/sdk/worker"
)

// RegisterWorkflowsAndActivities registers the billing workflow and its
// activities. Activity names are the BillingActivities method names.
func RegisterWorkflowsAndActivities(w worker.Worker, billingService service.BillingService) {
	w.RegisterWorkflow(workflows.BillingCycleWorkflow)
	w.RegisterActivity(activities.NewBillingActivities(billingService))
}

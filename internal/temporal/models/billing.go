package models

import "time"

const (
	// BillingCycleWorkflowName is the registered name of the billing workflow
	BillingCycleWorkflowName = "BillingCycleWorkflow"

	// BillingCycleWorkflowID is fixed so only one schedule exists per namespace
	BillingCycleWorkflowID = "billing-cycle"
)

// Activity names as registered by the worker
const (
	ActivityStartRun               = "StartRun"
	ActivityProcessNewTransactions = "ProcessNewTransactions"
	ActivityFindExpirable          = "FindExpirable"
	ActivityExpireElapsed          = "ExpireElapsed"
	ActivitySendReport             = "SendReport"
)

// BillingCycleInput starts a billing cycle for one tenant. An empty TenantID
// runs for the default tenant.
type BillingCycleInput struct {
	TenantID string `json:"tenant_id"`
}

// ActivityOptions bounds every billing activity
type ActivityOptions struct {
	StartToCloseTimeout time.Duration
	MaximumAttempts     int32
}

// DefaultActivityOptions is used when the workflow input does not override it
var DefaultActivityOptions = ActivityOptions{
	StartToCloseTimeout: 30 * time.Minute,
	MaximumAttempts:     3,
}

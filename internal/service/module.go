package service

import "go.uber.org/fx"

// Module provides the service layer
func Module() fx.Option {
	return fx.Provide(
		NewServiceParams,
		NewPlanService,
		NewSubscriptionService,
		NewBillableSource,
		NewBillingService,
	)
}

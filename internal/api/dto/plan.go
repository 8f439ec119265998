package dto

import (
	"context"

	"github.com/flexprice/freemium/internal/domain/plan"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/shopspring/decimal"
)

type CreatePlanRequest struct {
	Name          string              `json:"name" validate:"required"`
	Rate          decimal.Decimal     `json:"rate"`
	Currency      string              `json:"currency" validate:"required,len=3"`
	BillingPeriod types.BillingPeriod `json:"billing_period,omitempty" validate:"omitempty,billing_period"`
}

type UpdatePlanRequest struct {
	Name *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Rate *decimal.Decimal `json:"rate,omitempty"`
}

type PlanResponse struct {
	*plan.Plan
}

type ListPlansResponse struct {
	Plans  []*PlanResponse `json:"plans"`
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
}

func (r *CreatePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreatePlanRequest) ToPlan(ctx context.Context) *plan.Plan {
	p := plan.New(ctx, r.Name, r.Rate, r.Currency)
	if r.BillingPeriod != "" {
		p.BillingPeriod = r.BillingPeriod
	}
	return p
}

func (r *UpdatePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

package plan

import (
	"context"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/shopspring/decimal"
)

// Plan is catalog reference data. A plan whose rate is zero is free.
type Plan struct {
	ID            string              `db:"id" json:"id"`
	Name          string              `db:"name" json:"name" validate:"required"`
	Rate          decimal.Decimal     `db:"rate" json:"rate"`
	Currency      string              `db:"currency" json:"currency" validate:"required,len=3"`
	BillingPeriod types.BillingPeriod `db:"billing_period" json:"billing_period" validate:"billing_period"`
	types.BaseModel
}

// New builds a monthly plan stamped with the caller from ctx
func New(ctx context.Context, name string, rate decimal.Decimal, currency string) *Plan {
	return &Plan{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:          name,
		Rate:          rate,
		Currency:      currency,
		BillingPeriod: types.BILLING_PERIOD_MONTHLY,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

// IsFree reports whether subscribers on this plan are never billed
func (p *Plan) IsFree() bool {
	return p.Rate.IsZero()
}

// DailyRate is the prorating rate used for remaining value
func (p *Plan) DailyRate() decimal.Decimal {
	return p.BillingPeriod.DailyRate(p.Rate)
}

// Periods converts a payment into a number of billing periods, fractional
// when the amount is not a multiple of the rate.
func (p *Plan) Periods(amount decimal.Decimal) (decimal.Decimal, error) {
	if p.IsFree() {
		return decimal.Zero, ierr.NewError("cannot convert payment on a free plan").
			WithHint("Free plans do not accept payments").
			WithReportableDetails(map[string]any{"plan_id": p.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	return amount.DivRound(p.Rate, 8), nil
}

func (p *Plan) Validate() error {
	if p.Rate.IsNegative() {
		return ierr.NewError("plan rate cannot be negative").
			WithHint("Rate must be zero or greater").
			WithReportableDetails(map[string]any{"rate": p.Rate.String()}).
			Mark(ierr.ErrValidation)
	}
	return p.BillingPeriod.Validate()
}

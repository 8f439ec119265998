package types

import (
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/shopspring/decimal"
)

// BillingPeriod is the length of service one plan rate pays for
type BillingPeriod string

const (
	BILLING_PERIOD_MONTHLY BillingPeriod = "MONTHLY"
	BILLING_PERIOD_ANNUAL  BillingPeriod = "ANNUAL"
)

// daysPerYear is the calendar convention used for prorating
const daysPerYear = 365

func (b BillingPeriod) Validate() error {
	switch b {
	case BILLING_PERIOD_MONTHLY, BILLING_PERIOD_ANNUAL:
		return nil
	default:
		return ierr.NewError("invalid billing period").
			WithHintf("Billing period must be one of %s or %s", BILLING_PERIOD_MONTHLY, BILLING_PERIOD_ANNUAL).
			WithReportableDetails(map[string]any{"billing_period": b}).
			Mark(ierr.ErrValidation)
	}
}

// Months returns the number of calendar months in one period
func (b BillingPeriod) Months() int {
	if b == BILLING_PERIOD_ANNUAL {
		return 12
	}
	return 1
}

// Days returns the prorating length of one period in days, 365/12 for a month
func (b BillingPeriod) Days() decimal.Decimal {
	return decimal.NewFromInt(int64(daysPerYear * b.Months())).Div(decimal.NewFromInt(12))
}

// DailyRate converts a per-period rate into a per-day amount truncated to cents
func (b BillingPeriod) DailyRate(rate decimal.Decimal) decimal.Decimal {
	yearly := rate.Mul(decimal.NewFromInt(int64(12 / b.Months())))
	return yearly.Div(decimal.NewFromInt(daysPerYear)).Truncate(2)
}

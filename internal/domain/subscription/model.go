package subscription

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/domain/plan"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/shopspring/decimal"
)

// Subscription ties a subscriber to a plan and tracks how far service is paid.
// All dates are billing dates at UTC midnight.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// PlanID is the plan the subscriber is currently on
	PlanID string `db:"plan_id" json:"plan_id" validate:"required"`

	// SubscriberID identifies the account that owns the subscription
	SubscriberID string `db:"subscriber_id" json:"subscriber_id" validate:"required"`

	// SubscriberEmail is where lifecycle notices are delivered
	SubscriberEmail string `db:"subscriber_email" json:"subscriber_email,omitempty" validate:"omitempty,email"`

	// PaymentMethod is required on paid plans and absent on free ones
	PaymentMethod *types.PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`

	// StartedOn resets whenever the subscription moves between free and paid
	StartedOn time.Time `db:"started_on" json:"started_on"`

	// PaidThrough is nil for free subscriptions, which never expire
	PaidThrough *time.Time `db:"paid_through" json:"paid_through,omitempty"`

	// ExpireOn is the grace deadline set after a missed payment
	ExpireOn *time.Time `db:"expire_on" json:"expire_on,omitempty"`

	// BillingKey is the gateway token for the stored payment method
	BillingKey *string `db:"billing_key" json:"billing_key,omitempty"`

	// LastTransactionAt is the time of the latest gateway transaction applied
	// to this subscription. Its maximum across all rows is the fetch checkpoint.
	LastTransactionAt *time.Time `db:"last_transaction_at" json:"last_transaction_at,omitempty"`

	types.BaseModel
}

// New builds a subscription on p starting today. Paid plans start with a
// trial of daysTrial days; the payment method must be set before saving.
func New(ctx context.Context, p *plan.Plan, subscriberID string, today time.Time, daysTrial int) *Subscription {
	s := &Subscription{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		PlanID:       p.ID,
		SubscriberID: subscriberID,
		StartedOn:    types.StartOfDay(today),
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	if !p.IsFree() {
		paidThrough := types.AddDays(today, daysTrial)
		s.PaidThrough = &paidThrough
	}
	return s
}

// IsPaid reports whether the subscription has a paid-through date
func (s *Subscription) IsPaid() bool {
	return s.PaidThrough != nil
}

// HasBillingKey reports whether a payment method is stored at the gateway
func (s *Subscription) HasBillingKey() bool {
	return s.BillingKey != nil && *s.BillingKey != ""
}

// GetBillingKey returns the billing key or an empty string
func (s *Subscription) GetBillingKey() string {
	if s.BillingKey == nil {
		return ""
	}
	return *s.BillingKey
}

// RemainingDays is the number of paid days left, negative when past due.
// Free subscriptions have none.
func (s *Subscription) RemainingDays(today time.Time) int {
	if !s.IsPaid() {
		return 0
	}
	return types.DaysBetween(today, *s.PaidThrough)
}

// RemainingValue is the prorated value of the unused paid period
func (s *Subscription) RemainingValue(p *plan.Plan, today time.Time) decimal.Decimal {
	if !s.IsPaid() || p.IsFree() {
		return decimal.Zero
	}
	return p.DailyRate().Mul(decimal.NewFromInt(int64(s.RemainingDays(today))))
}

// Expired reports whether the grace deadline has been reached
func (s *Subscription) Expired(today time.Time) bool {
	return s.ExpireOn != nil && !s.ExpireOn.After(types.StartOfDay(today))
}

// InGrace reports whether service continues although payment is overdue.
// A past-due subscription with no deadline yet is in grace too.
func (s *Subscription) InGrace(today time.Time) bool {
	if !s.IsPaid() {
		return false
	}
	return s.PaidThrough.Before(types.StartOfDay(today)) && !s.Expired(today)
}

// RemainingDaysOfGrace counts full days of service left before the deadline:
// 0 when expiring tomorrow, -1 on the deadline itself. ok is false when no
// deadline is set.
func (s *Subscription) RemainingDaysOfGrace(today time.Time) (days int, ok bool) {
	if s.ExpireOn == nil {
		return 0, false
	}
	return types.DaysBetween(today, *s.ExpireOn) - 1, true
}

// ApplyPayment extends PaidThrough by the number of periods amount buys on p.
// Whole periods advance by calendar months, the fractional rest by days.
// The extension is anchored on the current PaidThrough, never on today, and
// any grace deadline is cleared.
func (s *Subscription) ApplyPayment(p *plan.Plan, amount decimal.Decimal, today time.Time) error {
	periods, err := p.Periods(amount)
	if err != nil {
		return err
	}
	if periods.IsNegative() {
		return ierr.NewError("payment amount cannot be negative").
			WithHint("Refunds are not applied to subscriptions").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"amount":          amount.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	anchor := types.StartOfDay(today)
	if s.PaidThrough != nil {
		anchor = *s.PaidThrough
	}

	whole := periods.Floor()
	fraction := periods.Sub(whole)

	paidThrough := types.AddClampedMonths(anchor, int(whole.IntPart())*p.BillingPeriod.Months())
	extraDays := fraction.Mul(p.BillingPeriod.Days()).Floor()
	paidThrough = types.AddDays(paidThrough, int(extraDays.IntPart()))

	s.PaidThrough = &paidThrough
	s.ExpireOn = nil
	return nil
}

// FlagForExpiration starts a grace period ending daysGrace days after the later
// of PaidThrough and today. It returns false and changes nothing when a grace
// period is already tracked, i.e. ExpireOn is on or after PaidThrough, or when
// the subscription is free.
func (s *Subscription) FlagForExpiration(today time.Time, daysGrace int) bool {
	if !s.IsPaid() {
		return false
	}
	if s.ExpireOn != nil && !s.ExpireOn.Before(*s.PaidThrough) {
		return false
	}

	expireOn := types.AddDays(types.MaxDate(*s.PaidThrough, types.StartOfDay(today)), daysGrace)
	s.ExpireOn = &expireOn
	return true
}

// AssignPaymentMethod records a method the gateway accepted. An empty
// billingKey keeps the existing key. Any pending grace deadline is cleared.
func (s *Subscription) AssignPaymentMethod(pm *types.PaymentMethod, billingKey string) {
	s.PaymentMethod = pm
	if billingKey != "" {
		s.BillingKey = &billingKey
	}
	s.ExpireOn = nil
}

// ClearPayment forgets the payment method and billing key
func (s *Subscription) ClearPayment() {
	s.PaymentMethod = nil
	s.BillingKey = nil
}

// SwitchPlan moves the subscription from one plan to another. Crossing between
// free and paid resets StartedOn; moving onto a paid plan starts a trial of
// daysTrial days and requires a payment method. Paid to paid changes take
// effect at the next payment.
func (s *Subscription) SwitchPlan(from, to *plan.Plan, today time.Time, daysTrial int) error {
	today = types.StartOfDay(today)

	switch {
	case from.IsFree() && !to.IsFree():
		if s.PaymentMethod == nil {
			return ierr.NewError("payment method required for paid plan").
				WithHint("Add a payment method before upgrading to a paid plan").
				WithReportableDetails(map[string]any{"payment_method": "required for paid plans"}).
				Mark(ierr.ErrValidation)
		}
		paidThrough := types.AddDays(today, daysTrial)
		s.PaidThrough = &paidThrough
		s.ExpireOn = nil
		s.StartedOn = today
	case !from.IsFree() && to.IsFree():
		s.ClearPayment()
		s.PaidThrough = nil
		s.ExpireOn = nil
		s.StartedOn = today
	}

	s.PlanID = to.ID
	return nil
}

// CheckExpiredPlan rejects a plan that cannot receive expired subscriptions
func CheckExpiredPlan(expiredPlan *plan.Plan) error {
	if !expiredPlan.IsFree() {
		return ierr.NewError("expired plan must be free").
			WithHint("Configure billing.expired_plan_id to point at a free plan").
			WithReportableDetails(map[string]any{"plan_id": expiredPlan.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// Downgrade is the terminal step of a billing failure: the subscription moves
// to expiredPlan with no payment state left.
func (s *Subscription) Downgrade(expiredPlan *plan.Plan, today time.Time) error {
	if err := CheckExpiredPlan(expiredPlan); err != nil {
		return err
	}

	s.ClearPayment()
	s.PlanID = expiredPlan.ID
	s.PaidThrough = nil
	s.ExpireOn = nil
	s.StartedOn = types.StartOfDay(today)
	return nil
}

// Validate checks the record against its plan. Failures carry one detail
// per offending field.
func (s *Subscription) Validate(p *plan.Plan) error {
	if err := validator.ValidateRequest(s); err != nil {
		return err
	}
	if p == nil || p.ID != s.PlanID {
		return ierr.NewError("subscription plan not found").
			WithHint("Subscription must reference an existing plan").
			WithReportableDetails(map[string]any{"plan_id": "must reference an existing plan"}).
			Mark(ierr.ErrValidation)
	}

	details := make(map[string]any)
	if p.IsFree() {
		if s.PaymentMethod != nil {
			details["payment_method"] = "must be empty on a free plan"
		}
		if s.HasBillingKey() {
			details["billing_key"] = "must be empty on a free plan"
		}
		if s.PaidThrough != nil {
			details["paid_through"] = "must be empty on a free plan"
		}
	} else {
		if s.PaymentMethod == nil {
			details["payment_method"] = "required for paid plans"
		}
		if s.PaidThrough == nil {
			details["paid_through"] = "required for paid plans"
		}
	}

	if len(details) > 0 {
		return ierr.NewError("subscription validation failed").
			WithHint("Subscription is not valid for its plan").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}

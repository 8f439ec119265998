package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/freemium/internal/domain/plan"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SubscriptionModelSuite struct {
	suite.Suite
	ctx   context.Context
	today time.Time
	free  *plan.Plan
	basic *plan.Plan
}

func TestSubscriptionModel(t *testing.T) {
	suite.Run(t, new(SubscriptionModelSuite))
}

func (s *SubscriptionModelSuite) SetupTest() {
	s.ctx = types.NewSystemContext(context.Background(), "")
	s.today = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s.free = plan.New(s.ctx, "Free", decimal.Zero, "USD")
	s.basic = plan.New(s.ctx, "Basic", decimal.NewFromFloat(13), "USD")
}

func (s *SubscriptionModelSuite) date(offset int) *time.Time {
	return lo.ToPtr(types.AddDays(s.today, offset))
}

func (s *SubscriptionModelSuite) card() *types.PaymentMethod {
	return &types.PaymentMethod{Token: "tok_visa", Type: types.PaymentMethodTypeCard, Brand: "visa", Last4: "4242"}
}

func (s *SubscriptionModelSuite) paid(paidThroughOffset int) *Subscription {
	sub := New(s.ctx, s.basic, "user_bob", s.today, 0)
	sub.PaidThrough = s.date(paidThroughOffset)
	sub.PaymentMethod = s.card()
	sub.BillingKey = lo.ToPtr("bk_bob")
	return sub
}

func (s *SubscriptionModelSuite) TestNew() {
	free := New(s.ctx, s.free, "user_sue", s.today, 30)
	s.Equal(s.today, free.StartedOn)
	s.Nil(free.PaidThrough)
	s.False(free.IsPaid())
	s.Nil(free.PaymentMethod)

	paid := New(s.ctx, s.basic, "user_sue", s.today, 30)
	s.Equal(s.today, paid.StartedOn)
	s.Require().NotNil(paid.PaidThrough)
	s.Equal(types.AddDays(s.today, 30), *paid.PaidThrough)
	s.True(paid.IsPaid())
}

func (s *SubscriptionModelSuite) TestValidate() {
	free := New(s.ctx, s.free, "user_sue", s.today, 30)
	s.NoError(free.Validate(s.free))

	paid := New(s.ctx, s.basic, "user_sue", s.today, 30)
	err := paid.Validate(s.basic)
	s.True(ierr.IsValidation(err))
	s.Contains(ierr.Details(err), "payment_method")

	paid.PaymentMethod = s.card()
	s.NoError(paid.Validate(s.basic))

	missing := New(s.ctx, s.free, "", s.today, 0)
	err = missing.Validate(s.free)
	s.True(ierr.IsValidation(err))
	s.Contains(ierr.Details(err), "SubscriberID")

	err = free.Validate(nil)
	s.True(ierr.IsValidation(err))
	s.Contains(ierr.Details(err), "plan_id")

	free.PaymentMethod = s.card()
	err = free.Validate(s.free)
	s.True(ierr.IsValidation(err))
	s.Contains(ierr.Details(err), "payment_method")
}

func (s *SubscriptionModelSuite) TestRemainingDaysAndValue() {
	sub := s.paid(20)
	s.Equal(20, sub.RemainingDays(s.today))
	s.Equal("8.4", sub.RemainingValue(s.basic, s.today).String())

	past := s.paid(-3)
	s.Equal(-3, past.RemainingDays(s.today))

	free := New(s.ctx, s.free, "user_sue", s.today, 0)
	s.Equal(0, free.RemainingDays(s.today))
	s.True(free.RemainingValue(s.free, s.today).IsZero())
}

func (s *SubscriptionModelSuite) TestGraceAndExpiration() {
	current := s.paid(5)
	s.False(current.InGrace(s.today))
	s.False(current.Expired(s.today))

	// past due but never flagged still counts as grace
	unflagged := s.paid(-5)
	s.True(unflagged.InGrace(s.today))
	s.False(unflagged.Expired(s.today))
	_, ok := unflagged.RemainingDaysOfGrace(s.today)
	s.False(ok)

	tomorrow := s.paid(-5)
	tomorrow.ExpireOn = s.date(1)
	days, ok := tomorrow.RemainingDaysOfGrace(s.today)
	s.True(ok)
	s.Equal(0, days)
	s.True(tomorrow.InGrace(s.today))
	s.False(tomorrow.Expired(s.today))

	today := s.paid(-5)
	today.ExpireOn = s.date(0)
	days, ok = today.RemainingDaysOfGrace(s.today)
	s.True(ok)
	s.Equal(-1, days)
	s.False(today.InGrace(s.today))
	s.True(today.Expired(s.today))
}

func (s *SubscriptionModelSuite) TestApplyPayment() {
	tests := []struct {
		name   string
		amount decimal.Decimal
		want   func(time.Time) time.Time
	}{
		{
			name:   "one period",
			amount: s.basic.Rate,
			want:   func(t time.Time) time.Time { return types.AddClampedMonths(t, 1) },
		},
		{
			name:   "three periods",
			amount: s.basic.Rate.Mul(decimal.NewFromInt(3)),
			want:   func(t time.Time) time.Time { return types.AddClampedMonths(t, 3) },
		},
		{
			name:   "half a period",
			amount: s.basic.Rate.Mul(decimal.NewFromFloat(0.5)),
			want:   func(t time.Time) time.Time { return types.AddDays(t, 15) },
		},
		{
			name:   "zero amount",
			amount: decimal.Zero,
			want:   func(t time.Time) time.Time { return t },
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			sub := s.paid(20)
			sub.ExpireOn = s.date(25)
			before := *sub.PaidThrough

			s.Require().NoError(sub.ApplyPayment(s.basic, tt.amount, s.today))
			s.Equal(tt.want(before), *sub.PaidThrough)
			s.Nil(sub.ExpireOn)
		})
	}
}

func (s *SubscriptionModelSuite) TestApplyPaymentIsAdditive() {
	sub := s.paid(0)
	sub.PaidThrough = lo.ToPtr(time.Date(2009, 1, 31, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(sub.ApplyPayment(s.basic, s.basic.Rate, s.today))
	s.Require().NoError(sub.ApplyPayment(s.basic, s.basic.Rate, s.today))
	s.Equal(time.Date(2009, 3, 31, 0, 0, 0, 0, time.UTC), *sub.PaidThrough)
}

func (s *SubscriptionModelSuite) TestApplyPaymentRejectsFreePlanAndRefunds() {
	sub := s.paid(0)
	s.True(ierr.IsInvalidOperation(sub.ApplyPayment(s.free, decimal.NewFromInt(10), s.today)))
	s.True(ierr.IsInvalidOperation(sub.ApplyPayment(s.basic, decimal.NewFromInt(-13), s.today)))
	s.Equal(s.today, *sub.PaidThrough)
}

func (s *SubscriptionModelSuite) TestFlagForExpiration() {
	pastDue := s.paid(-1)
	s.True(pastDue.FlagForExpiration(s.today, 3))
	s.Equal(types.AddDays(s.today, 3), *pastDue.ExpireOn)

	// second call without time passing is a no-op
	s.False(pastDue.FlagForExpiration(s.today, 3))
	s.Equal(types.AddDays(s.today, 3), *pastDue.ExpireOn)

	remaining := s.paid(1)
	s.True(remaining.FlagForExpiration(s.today, 3))
	s.Equal(types.AddDays(s.today, 4), *remaining.ExpireOn)

	stale := s.paid(-1)
	stale.ExpireOn = s.date(-10)
	s.True(stale.FlagForExpiration(s.today, 3))
	s.Equal(types.AddDays(s.today, 3), *stale.ExpireOn)

	free := New(s.ctx, s.free, "user_sue", s.today, 0)
	s.False(free.FlagForExpiration(s.today, 3))
	s.Nil(free.ExpireOn)
}

func (s *SubscriptionModelSuite) TestSwitchPlan() {
	later := types.AddDays(s.today, 10)

	// free to paid needs a payment method
	sub := New(s.ctx, s.free, "user_sue", s.today, 0)
	err := sub.SwitchPlan(s.free, s.basic, later, 0)
	s.True(ierr.IsValidation(err))
	s.Equal(s.free.ID, sub.PlanID)

	sub.PaymentMethod = s.card()
	s.Require().NoError(sub.SwitchPlan(s.free, s.basic, later, 0))
	s.Equal(s.basic.ID, sub.PlanID)
	s.Equal(later, sub.StartedOn)
	s.Equal(later, *sub.PaidThrough)

	// paid to paid keeps dates
	premium := plan.New(s.ctx, "Premium", decimal.NewFromFloat(30), "USD")
	s.Require().NoError(sub.SwitchPlan(s.basic, premium, types.AddDays(later, 5), 0))
	s.Equal(premium.ID, sub.PlanID)
	s.Equal(later, sub.StartedOn)
	s.Equal(later, *sub.PaidThrough)

	// paid to free drops payment state
	sub.BillingKey = lo.ToPtr("bk_sue")
	down := types.AddDays(later, 7)
	s.Require().NoError(sub.SwitchPlan(premium, s.free, down, 0))
	s.Equal(s.free.ID, sub.PlanID)
	s.Equal(down, sub.StartedOn)
	s.Nil(sub.PaidThrough)
	s.Nil(sub.PaymentMethod)
	s.Nil(sub.BillingKey)
	s.False(sub.IsPaid())
}

func (s *SubscriptionModelSuite) TestAssignPaymentMethod() {
	sub := s.paid(-2)
	sub.ExpireOn = s.date(1)

	sub.AssignPaymentMethod(s.card(), "")
	s.Equal("bk_bob", sub.GetBillingKey(), "empty key keeps the stored one")
	s.Nil(sub.ExpireOn)

	sub.AssignPaymentMethod(s.card(), "bk_new")
	s.Equal("bk_new", sub.GetBillingKey())
}

func (s *SubscriptionModelSuite) TestDowngrade() {
	sub := s.paid(-4)
	sub.ExpireOn = s.date(0)

	s.Require().NoError(sub.Downgrade(s.free, s.today))
	s.Equal(s.free.ID, sub.PlanID)
	s.Equal(s.today, sub.StartedOn)
	s.Nil(sub.BillingKey)
	s.Nil(sub.PaymentMethod)
	s.Nil(sub.PaidThrough)
	s.Nil(sub.ExpireOn)

	err := s.paid(-4).Downgrade(s.basic, s.today)
	s.True(ierr.IsInvalidOperation(err))
}

func TestFreeSubscriptionsAreNeverPaid(t *testing.T) {
	ctx := context.Background()
	free := plan.New(ctx, "Free", decimal.Zero, "USD")
	for _, trial := range []int{0, 7, 30} {
		sub := New(ctx, free, "user", time.Now(), trial)
		require.NoError(t, sub.Validate(free))
		assert.Nil(t, sub.PaidThrough)
		assert.Nil(t, sub.PaymentMethod)
		assert.False(t, sub.IsPaid())
	}
}

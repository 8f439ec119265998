package dto

import (
	"time"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	PlanID          string               `json:"plan_id" validate:"required"`
	SubscriberID    string               `json:"subscriber_id" validate:"required"`
	SubscriberEmail string               `json:"subscriber_email,omitempty" validate:"omitempty,email"`
	PaymentMethod   *types.PaymentMethod `json:"payment_method,omitempty"`
}

type ChangePlanRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
	// PaymentMethod is stored first when moving from a free plan to a paid one
	PaymentMethod *types.PaymentMethod `json:"payment_method,omitempty"`
}

type SetPaymentMethodRequest struct {
	PaymentMethod types.PaymentMethod `json:"payment_method" validate:"required"`
}

// SubscriptionResponse adds the derived billing state as of Today
type SubscriptionResponse struct {
	*subscription.Subscription
	Plan                 *PlanResponse   `json:"plan,omitempty"`
	Today                time.Time       `json:"today"`
	RemainingDays        int             `json:"remaining_days"`
	RemainingValue       decimal.Decimal `json:"remaining_value"`
	InGrace              bool            `json:"in_grace"`
	Expired              bool            `json:"expired"`
	RemainingDaysOfGrace *int            `json:"remaining_days_of_grace,omitempty"`
}

type ListSubscriptionsResponse struct {
	Subscriptions []*SubscriptionResponse `json:"subscriptions"`
	Total         int                     `json:"total"`
	Offset        int                     `json:"offset"`
	Limit         int                     `json:"limit"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *ChangePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *SetPaymentMethodRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// NewSubscriptionResponse derives the billing state of sub on today
func NewSubscriptionResponse(sub *subscription.Subscription, p *PlanResponse, today time.Time) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		Subscription:  sub,
		Plan:          p,
		Today:         types.StartOfDay(today),
		RemainingDays: sub.RemainingDays(today),
		InGrace:       sub.InGrace(today),
		Expired:       sub.Expired(today),
	}
	if p != nil {
		resp.RemainingValue = sub.RemainingValue(p.Plan, today)
	}
	if days, ok := sub.RemainingDaysOfGrace(today); ok {
		resp.RemainingDaysOfGrace = &days
	}
	return resp
}

package service

import (
	"context"

	"github.com/flexprice/freemium/internal/api/dto"
	"github.com/flexprice/freemium/internal/domain/plan"
	"github.com/flexprice/freemium/internal/domain/subscription"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SubscriptionService owns every state change of a subscription that involves
// the gateway, the notifier or persistence
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)

	// SetPaymentMethod stores the method at the gateway and records the billing
	// key. A gateway refusal returns ErrPaymentStorage and persists nothing.
	SetPaymentMethod(ctx context.Context, id string, req dto.SetPaymentMethodRequest) (*dto.SubscriptionResponse, error)

	// ChangePlan moves the subscription to another plan
	ChangePlan(ctx context.Context, id string, req dto.ChangePlanRequest) (*dto.SubscriptionResponse, error)

	// ReceivePayment extends service by the periods amount buys and sends a
	// payment notice
	ReceivePayment(ctx context.Context, id string, amount decimal.Decimal) error

	// ExpireAfterGrace starts the grace period of a past-due subscription. It
	// returns false when one is already tracked; the subscriber is warned only
	// when it returns true.
	ExpireAfterGrace(ctx context.Context, id string) (bool, error)

	// Expire downgrades the subscription to the configured expired plan
	Expire(ctx context.Context, id string) error

	// DeleteSubscription cancels the billing key at the gateway, then deletes
	DeleteSubscription(ctx context.Context, id string) error
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	sub := subscription.New(ctx, p, req.SubscriberID, today, s.Config.Billing.DaysTrial)
	sub.SubscriberEmail = req.SubscriberEmail

	var issued string
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if req.PaymentMethod != nil && !p.IsFree() {
			var err error
			if issued, err = s.storePaymentMethod(ctx, sub, req.PaymentMethod); err != nil {
				return err
			}
		} else if req.PaymentMethod != nil {
			sub.PaymentMethod = req.PaymentMethod
		}

		if err := sub.Validate(p); err != nil {
			return err
		}
		return s.SubRepo.Create(ctx, sub)
	})
	if err != nil {
		s.releaseIssuedKey(ctx, sub.ID, issued)
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"plan_id", sub.PlanID,
		"subscriber_id", sub.SubscriberID,
	)
	return dto.NewSubscriptionResponse(sub, &dto.PlanResponse{Plan: p}, today), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	if id == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub, &dto.PlanResponse{Plan: p}, s.Today()), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if err := validator.ValidateRequest(filter); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	plans, err := s.plansFor(ctx, subs)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		var p *dto.PlanResponse
		if found, ok := plans[sub.PlanID]; ok {
			p = &dto.PlanResponse{Plan: found}
		}
		return dto.NewSubscriptionResponse(sub, p, today)
	})

	return &dto.ListSubscriptionsResponse{
		Subscriptions: items,
		Total:         len(items),
		Offset:        filter.GetOffset(),
		Limit:         filter.GetLimit(),
	}, nil
}

func (s *subscriptionService) SetPaymentMethod(ctx context.Context, id string, req dto.SetPaymentMethodRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		sub    *subscription.Subscription
		p      *plan.Plan
		issued string
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.SubRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if p, err = s.PlanRepo.Get(ctx, sub.PlanID); err != nil {
			return err
		}
		if p.IsFree() {
			return ierr.NewError("free subscriptions do not take a payment method").
				WithHint("Change to a paid plan to add a payment method").
				WithReportableDetails(map[string]any{"payment_method": "must be empty on a free plan"}).
				Mark(ierr.ErrValidation)
		}

		pm := req.PaymentMethod
		if issued, err = s.storePaymentMethod(ctx, sub, &pm); err != nil {
			return err
		}
		if err := sub.Validate(p); err != nil {
			return err
		}

		sub.Touch(ctx)
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		s.releaseIssuedKey(ctx, id, issued)
		return nil, err
	}

	s.Logger.Infow("payment method updated",
		"subscription_id", sub.ID,
		"payment_method", sub.PaymentMethod.String(),
	)
	return dto.NewSubscriptionResponse(sub, &dto.PlanResponse{Plan: p}, s.Today()), nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, id string, req dto.ChangePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	today := s.Today()
	var (
		sub    *subscription.Subscription
		to     *plan.Plan
		issued string
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.SubRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		from, err := s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		if to, err = s.PlanRepo.Get(ctx, req.PlanID); err != nil {
			return err
		}

		if from.IsFree() && !to.IsFree() && req.PaymentMethod != nil {
			if issued, err = s.storePaymentMethod(ctx, sub, req.PaymentMethod); err != nil {
				return err
			}
		}

		if err := sub.SwitchPlan(from, to, today, s.Config.Billing.DaysTrial); err != nil {
			return err
		}
		if err := sub.Validate(to); err != nil {
			return err
		}

		sub.Touch(ctx)
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		s.releaseIssuedKey(ctx, id, issued)
		return nil, err
	}

	s.Logger.Infow("subscription plan changed",
		"subscription_id", sub.ID,
		"plan_id", sub.PlanID,
	)
	return dto.NewSubscriptionResponse(sub, &dto.PlanResponse{Plan: to}, today), nil
}

func (s *subscriptionService) ReceivePayment(ctx context.Context, id string, amount decimal.Decimal) error {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.SubRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		p, err := s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		if err := sub.ApplyPayment(p, amount, s.Today()); err != nil {
			return err
		}

		sub.Touch(ctx)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}

		// the extension only stands if the subscriber was told about it
		if err := s.Notifier.PaymentReceived(ctx, sub, amount); err != nil {
			return ierr.WithError(err).
				WithHint("Payment received notice could not be delivered, the payment was not applied").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"amount":          amount.String(),
				}).
				Mark(ierr.ErrNotification)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("payment received",
		"subscription_id", sub.ID,
		"amount", amount.String(),
		"paid_through", sub.PaidThrough,
	)
	return nil
}

func (s *subscriptionService) ExpireAfterGrace(ctx context.Context, id string) (bool, error) {
	var (
		sub     *subscription.Subscription
		flagged bool
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.SubRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if flagged = sub.FlagForExpiration(s.Today(), s.Config.Billing.DaysGrace); !flagged {
			return nil
		}

		sub.Touch(ctx)
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil || !flagged {
		return false, err
	}

	s.Logger.Infow("subscription entered grace period",
		"subscription_id", sub.ID,
		"paid_through", sub.PaidThrough,
		"expire_on", sub.ExpireOn,
	)
	s.notify(ctx, sub, "grace_entered", func() error {
		return s.Notifier.GraceEntered(ctx, sub)
	})
	return true, nil
}

func (s *subscriptionService) Expire(ctx context.Context, id string) error {
	expiredPlan, err := s.PlanRepo.Get(ctx, s.Config.Billing.ExpiredPlanID)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Expired plan %s could not be loaded", s.Config.Billing.ExpiredPlanID).
			Mark(ierr.ErrInvalidOperation)
	}
	// checked before the gateway cancel so a misconfiguration leaves the key live
	if err := subscription.CheckExpiredPlan(expiredPlan); err != nil {
		return err
	}

	var (
		sub     *subscription.Subscription
		expired bool
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.SubRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		// free subscriptions never expire
		if !sub.IsPaid() {
			return nil
		}

		if sub.HasBillingKey() {
			s.cancelBillingKey(ctx, sub)
		}
		if err := sub.Downgrade(expiredPlan, s.Today()); err != nil {
			return err
		}

		sub.Touch(ctx)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil || !expired {
		return err
	}

	s.Logger.Infow("subscription expired",
		"subscription_id", sub.ID,
		"plan_id", sub.PlanID,
	)
	s.notify(ctx, sub, "expired", func() error {
		return s.Notifier.Expired(ctx, sub)
	})
	return nil
}

func (s *subscriptionService) DeleteSubscription(ctx context.Context, id string) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.HasBillingKey() {
			s.cancelBillingKey(ctx, sub)
		}
		return s.SubRepo.Delete(ctx, id)
	})
}

// storePaymentMethod saves pm at the gateway and assigns it to sub. Store is
// used without a billing key and Update otherwise. issued is the key a Store
// call created; the caller releases it if the row is not saved.
func (s *subscriptionService) storePaymentMethod(ctx context.Context, sub *subscription.Subscription, pm *types.PaymentMethod) (issued string, err error) {
	if err := validator.ValidateRequest(pm); err != nil {
		return "", err
	}

	var resp *payment.Response
	stored := !sub.HasBillingKey()
	if stored {
		resp, err = s.Gateway.Store(ctx, &payment.StoreRequest{
			PaymentMethod:   pm,
			SubscriberID:    sub.SubscriberID,
			SubscriberEmail: sub.SubscriberEmail,
		})
	} else {
		resp, err = s.Gateway.Update(ctx, sub.GetBillingKey(), pm)
	}

	if err != nil {
		return "", ierr.WithError(err).
			WithHint("The payment method could not be stored").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrPaymentStorage)
	}
	if resp == nil || !resp.Success {
		message := "payment method refused"
		if resp != nil && resp.Message != "" {
			message = resp.Message
		}
		return "", ierr.NewError(message).
			WithHint("The payment method was refused by the payment gateway").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"payment_method":  message,
			}).
			Mark(ierr.ErrPaymentStorage)
	}

	sub.AssignPaymentMethod(pm, resp.BillingKey)
	if stored {
		issued = resp.BillingKey
	}
	return issued, nil
}

// releaseIssuedKey cancels a key stored during a change that was rolled back,
// so no payment agreement outlives the row that should reference it
func (s *subscriptionService) releaseIssuedKey(ctx context.Context, subscriptionID, key string) {
	if key == "" {
		return
	}
	s.Logger.Warnw("releasing billing key of a change that was not saved",
		"subscription_id", subscriptionID,
	)
	s.cancelKey(ctx, subscriptionID, key)
}

// cancelBillingKey releases the key at the gateway. Failures are reported and
// swallowed; the subscription change goes ahead regardless.
func (s *subscriptionService) cancelBillingKey(ctx context.Context, sub *subscription.Subscription) {
	s.cancelKey(ctx, sub.ID, sub.GetBillingKey())
}

func (s *subscriptionService) cancelKey(ctx context.Context, subscriptionID, key string) {
	if err := s.Gateway.Cancel(ctx, key); err != nil {
		s.Logger.Errorw("failed to cancel billing key at gateway",
			"error", err,
			"subscription_id", subscriptionID,
		)
		s.Sentry.CaptureWithContext(ctx, err, map[string]string{
			"subscription_id": subscriptionID,
			"operation":       "gateway_cancel",
		})
	}
}

// notify delivers a notice after the change is saved. Delivery failures do
// not undo the change.
func (s *subscriptionService) notify(ctx context.Context, sub *subscription.Subscription, notice string, send func() error) {
	if err := send(); err != nil {
		s.Logger.Errorw("failed to deliver notice",
			"error", err,
			"notice", notice,
			"subscription_id", sub.ID,
		)
		s.Sentry.CaptureWithContext(ctx, err, map[string]string{
			"subscription_id": sub.ID,
			"notice":          notice,
		})
	}
}

func (s *subscriptionService) plansFor(ctx context.Context, subs []*subscription.Subscription) (map[string]*plan.Plan, error) {
	if len(subs) == 0 {
		return map[string]*plan.Plan{}, nil
	}

	filter := types.NewPlanFilter()
	filter.PlanIDs = lo.Uniq(lo.Map(subs, func(sub *subscription.Subscription, _ int) string { return sub.PlanID }))

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(plans, func(p *plan.Plan) string { return p.ID }), nil
}

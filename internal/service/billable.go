package service

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Billable is what the billing coordinator needs from a subscription
type Billable interface {
	GetID() string
	IsPaid() bool
	ReceivePayment(ctx context.Context, amount decimal.Decimal) error
	ExpireAfterGrace(ctx context.Context) (bool, error)
	Expire(ctx context.Context) error
}

// BillableSource finds billables and keeps the transaction bookkeeping the
// coordinator relies on
type BillableSource interface {
	// FindByBillingKey returns the owner of billingKey, locked for the
	// surrounding transaction. ErrNotFound when nobody owns the key.
	FindByBillingKey(ctx context.Context, billingKey string) (Billable, error)

	// FindExpirable returns past-due billables with no tracked grace period
	FindExpirable(ctx context.Context, today time.Time) ([]Billable, error)

	// FindGraceElapsed returns billables whose grace deadline was reached
	FindGraceElapsed(ctx context.Context, today time.Time) ([]Billable, error)

	// Checkpoint is the time of the latest applied transaction
	Checkpoint(ctx context.Context) (*time.Time, error)

	// AdvanceCheckpoint records that b has seen transactions up to at
	AdvanceCheckpoint(ctx context.Context, b Billable, at time.Time) error

	// ClaimTransaction records txn as applied to b. It returns false when
	// txn was applied before.
	ClaimTransaction(ctx context.Context, b Billable, txn *payment.Transaction) (bool, error)
}

type billableSubscription struct {
	svc *subscriptionService
	sub *subscription.Subscription
}

func (b *billableSubscription) GetID() string {
	return b.sub.ID
}

func (b *billableSubscription) IsPaid() bool {
	return b.sub.IsPaid()
}

func (b *billableSubscription) ReceivePayment(ctx context.Context, amount decimal.Decimal) error {
	return b.svc.ReceivePayment(ctx, b.sub.ID, amount)
}

func (b *billableSubscription) ExpireAfterGrace(ctx context.Context) (bool, error) {
	return b.svc.ExpireAfterGrace(ctx, b.sub.ID)
}

func (b *billableSubscription) Expire(ctx context.Context) error {
	return b.svc.Expire(ctx, b.sub.ID)
}

type subscriptionSource struct {
	svc *subscriptionService
}

// NewBillableSource exposes stored subscriptions to the billing coordinator
func NewBillableSource(params ServiceParams) BillableSource {
	return &subscriptionSource{svc: &subscriptionService{ServiceParams: params}}
}

func (s *subscriptionSource) wrap(subs []*subscription.Subscription) []Billable {
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) Billable {
		return &billableSubscription{svc: s.svc, sub: sub}
	})
}

func (s *subscriptionSource) FindByBillingKey(ctx context.Context, billingKey string) (Billable, error) {
	owner, err := s.svc.SubRepo.GetByBillingKey(ctx, billingKey)
	if err != nil {
		return nil, err
	}
	locked, err := s.svc.SubRepo.GetForUpdate(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	return &billableSubscription{svc: s.svc, sub: locked}, nil
}

func (s *subscriptionSource) FindExpirable(ctx context.Context, today time.Time) ([]Billable, error) {
	subs, err := s.svc.SubRepo.ListExpirable(ctx, today)
	if err != nil {
		return nil, err
	}
	return s.wrap(subs), nil
}

func (s *subscriptionSource) FindGraceElapsed(ctx context.Context, today time.Time) ([]Billable, error) {
	subs, err := s.svc.SubRepo.ListGraceElapsed(ctx, today)
	if err != nil {
		return nil, err
	}
	return s.wrap(subs), nil
}

func (s *subscriptionSource) Checkpoint(ctx context.Context) (*time.Time, error) {
	return s.svc.SubRepo.MaxLastTransactionAt(ctx)
}

func (s *subscriptionSource) AdvanceCheckpoint(ctx context.Context, b Billable, at time.Time) error {
	return s.svc.SubRepo.AdvanceCheckpoint(ctx, b.GetID(), at)
}

func (s *subscriptionSource) ClaimTransaction(ctx context.Context, b Billable, txn *payment.Transaction) (bool, error) {
	return s.svc.SubRepo.ClaimTransaction(ctx, &subscription.ProcessedTransaction{
		IdempotencyKey: txn.IdempotencyKey(s.svc.IdempotencyGen),
		TransactionID:  txn.ID,
		SubscriptionID: b.GetID(),
		BillingKey:     txn.BillingKey,
		Amount:         txn.Amount,
		Success:        txn.Success,
		OccurredAt:     txn.CreatedAt,
		ProcessedAt:    s.svc.Now().UTC(),
		BillingRunID:   types.GetBillingRunID(ctx),
		TenantID:       types.GetTenantID(ctx),
	})
}

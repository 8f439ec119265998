package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/freemium/internal/domain/subscription"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository, including the
// processed-transaction ledger and the per-row checkpoint
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	ledgerMu sync.Mutex
	ledger   map[string]*subscription.ProcessedTransaction

	// FailUpdateFor makes Update fail for the listed subscription ids
	FailUpdateFor map[string]error
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		ledger:        make(map[string]*subscription.ProcessedTransaction),
		FailUpdateFor: make(map[string]error),
	}
}

// copySubscription detaches stored rows from caller mutations, the way a
// database round trip would
func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	copied := *sub
	if sub.PaymentMethod != nil {
		pm := *sub.PaymentMethod
		copied.PaymentMethod = &pm
	}
	copied.PaidThrough = copyTime(sub.PaidThrough)
	copied.ExpireOn = copyTime(sub.ExpireOn)
	copied.LastTransactionAt = copyTime(sub.LastTransactionAt)
	if sub.BillingKey != nil {
		copied.BillingKey = lo.ToPtr(*sub.BillingKey)
	}
	return &copied
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(*t)
}

func visible(ctx context.Context, sub *subscription.Subscription) bool {
	return sub.Status == types.StatusPublished && CheckTenantFilter(ctx, sub.TenantID)
}

// subscriptionFilterFn implements filtering logic for subscriptions
func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil || !CheckTenantFilter(ctx, sub.TenantID) {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok {
		return sub.Status == types.StatusPublished
	}

	if sub.Status != f.GetStatus() {
		return false
	}
	if f.PlanID != "" && sub.PlanID != f.PlanID {
		return false
	}
	if f.SubscriberID != "" && sub.SubscriberID != f.SubscriberID {
		return false
	}
	if f.PaidOnly && !sub.IsPaid() {
		return false
	}
	if f.PaidThroughBefore != nil {
		if !sub.IsPaid() || !sub.PaidThrough.Before(types.StartOfDay(*f.PaidThroughBefore)) {
			return false
		}
	}
	return true
}

func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func notFound(id string) error {
	return ierr.NewError("subscription not found").
		WithHintf("Subscription %s not found", id).
		WithReportableDetails(map[string]any{"subscription_id": id}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	if sub.TenantID == "" {
		sub.TenantID = types.GetTenantID(ctx)
	}
	if sub.Status == "" {
		sub.Status = types.StatusPublished
	}
	if sub.HasBillingKey() {
		if _, err := s.GetByBillingKey(ctx, sub.GetBillingKey()); err == nil {
			return ierr.NewError("billing key already in use").Mark(ierr.ErrAlreadyExists)
		}
	}
	if err := s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub)); err != nil {
		return err
	}
	OnRollback(ctx, func() { _ = s.InMemoryStore.Delete(ctx, sub.ID) })
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !visible(ctx, sub) {
		return nil, notFound(id)
	}
	return copySubscription(sub), nil
}

// GetForUpdate has no locking to do in memory
func (s *InMemorySubscriptionStore) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	if err, ok := s.FailUpdateFor[sub.ID]; ok {
		return err
	}

	stored, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return notFound(sub.ID)
	}

	// the checkpoint column is owned by AdvanceCheckpoint
	updated := copySubscription(sub)
	updated.LastTransactionAt = copyTime(stored.LastTransactionAt)
	return s.replace(ctx, stored, updated)
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	stored, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !visible(ctx, stored) {
		return notFound(id)
	}
	deleted := copySubscription(stored)
	deleted.Status = types.StatusDeleted
	deleted.BillingKey = nil
	return s.replace(ctx, stored, deleted)
}

func (s *InMemorySubscriptionStore) GetByBillingKey(ctx context.Context, billingKey string) (*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return visible(ctx, sub) && sub.GetBillingKey() == billingKey
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription owns this billing key").
			WithReportableDetails(map[string]any{"billing_key": billingKey}).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) ListByPlan(ctx context.Context, planID string) ([]*subscription.Subscription, error) {
	filter := types.NewSubscriptionFilter()
	filter.PlanID = planID
	return s.List(ctx, filter)
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	return s.list(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) ListExpirable(ctx context.Context, today time.Time) ([]*subscription.Subscription, error) {
	today = types.StartOfDay(today)
	return s.list(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if !visible(ctx, sub) || !sub.IsPaid() || !sub.PaidThrough.Before(today) {
			return false
		}
		return sub.ExpireOn == nil || sub.ExpireOn.Before(*sub.PaidThrough)
	})
}

func (s *InMemorySubscriptionStore) ListGraceElapsed(ctx context.Context, today time.Time) ([]*subscription.Subscription, error) {
	today = types.StartOfDay(today)
	return s.list(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if !visible(ctx, sub) || !sub.IsPaid() || sub.ExpireOn == nil {
			return false
		}
		return !sub.ExpireOn.Before(*sub.PaidThrough) && !sub.ExpireOn.After(today)
	})
}

func (s *InMemorySubscriptionStore) MaxLastTransactionAt(ctx context.Context) (*time.Time, error) {
	subs, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return CheckTenantFilter(ctx, sub.TenantID) && sub.LastTransactionAt != nil
	}, nil)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	latest := lo.MaxBy(subs, func(a, b *subscription.Subscription) bool {
		return a.LastTransactionAt.After(*b.LastTransactionAt)
	})
	return copyTime(latest.LastTransactionAt), nil
}

func (s *InMemorySubscriptionStore) AdvanceCheckpoint(ctx context.Context, id string, at time.Time) error {
	stored, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return notFound(id)
	}
	if stored.LastTransactionAt != nil && !at.After(*stored.LastTransactionAt) {
		return nil
	}
	updated := copySubscription(stored)
	updated.LastTransactionAt = lo.ToPtr(at.UTC())
	return s.replace(ctx, stored, updated)
}

func (s *InMemorySubscriptionStore) ClaimTransaction(ctx context.Context, txn *subscription.ProcessedTransaction) (bool, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	if _, claimed := s.ledger[txn.IdempotencyKey]; claimed {
		return false, nil
	}
	copied := *txn
	s.ledger[txn.IdempotencyKey] = &copied

	OnRollback(ctx, func() {
		s.ledgerMu.Lock()
		defer s.ledgerMu.Unlock()
		delete(s.ledger, txn.IdempotencyKey)
	})
	return true, nil
}

// Ledger returns every claimed transaction
func (s *InMemorySubscriptionStore) Ledger() []*subscription.ProcessedTransaction {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	return lo.Values(s.ledger)
}

// Clear removes all subscriptions and ledger entries
func (s *InMemorySubscriptionStore) Clear() {
	s.InMemoryStore.Clear()
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.ledger = make(map[string]*subscription.ProcessedTransaction)
	s.FailUpdateFor = make(map[string]error)
}

// replace stores next and restores previous if the surrounding transaction fails
func (s *InMemorySubscriptionStore) replace(ctx context.Context, previous, next *subscription.Subscription) error {
	if err := s.InMemoryStore.Update(ctx, next.ID, next); err != nil {
		return err
	}
	OnRollback(ctx, func() { _ = s.InMemoryStore.Update(ctx, previous.ID, previous) })
	return nil
}

func (s *InMemorySubscriptionStore) list(ctx context.Context, filter interface{}, fn FilterFunc[*subscription.Subscription]) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, filter, fn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

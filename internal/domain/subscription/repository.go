package subscription

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/types"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetForUpdate loads the row and locks it until the surrounding
	// transaction ends. Outside a transaction it behaves like Get.
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error
	Delete(ctx context.Context, id string) error
	GetByBillingKey(ctx context.Context, billingKey string) (*Subscription, error)
	ListByPlan(ctx context.Context, planID string) ([]*Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)

	// ListExpirable returns paid subscriptions past due on today that carry no
	// grace deadline, or only a stale one earlier than their paid-through date.
	ListExpirable(ctx context.Context, today time.Time) ([]*Subscription, error)

	// ListGraceElapsed returns subscriptions whose tracked grace deadline
	// (on or after paid-through) has been reached on today.
	ListGraceElapsed(ctx context.Context, today time.Time) ([]*Subscription, error)

	// MaxLastTransactionAt is the global transaction checkpoint, nil before
	// the first transaction is applied.
	MaxLastTransactionAt(ctx context.Context) (*time.Time, error)

	// AdvanceCheckpoint moves the subscription's last_transaction_at forward
	// to at. It never moves it back.
	AdvanceCheckpoint(ctx context.Context, id string, at time.Time) error

	// ClaimTransaction records txn in the processed ledger. It returns false
	// when the key was already claimed.
	ClaimTransaction(ctx context.Context, txn *ProcessedTransaction) (bool, error)
}

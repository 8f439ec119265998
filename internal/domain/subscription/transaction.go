package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessedTransaction is a ledger entry for a gateway transaction that has
// been applied. Its key is claimed in the same database transaction as the
// subscription update, so a replayed fetch can never apply it twice.
type ProcessedTransaction struct {
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	TransactionID  string          `db:"transaction_id" json:"transaction_id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	BillingKey     string          `db:"billing_key" json:"billing_key"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Success        bool            `db:"success" json:"success"`
	OccurredAt     time.Time       `db:"occurred_at" json:"occurred_at"`
	ProcessedAt    time.Time       `db:"processed_at" json:"processed_at"`
	BillingRunID   string          `db:"billing_run_id" json:"billing_run_id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
}

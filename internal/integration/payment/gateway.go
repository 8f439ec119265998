package payment

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/idempotency"
	"github.com/flexprice/freemium/internal/types"
	"github.com/shopspring/decimal"
)

// Gateway is the narrow view of an external payment processor.
//
// Store and Update report a processor refusal through Response.Success and
// reserve the error return for transport failures. Callers treat both the
// same way. Cancel is best effort and its error is expected to be logged
// and swallowed by the caller.
type Gateway interface {
	// Store saves a new payment method and returns the billing key for it
	Store(ctx context.Context, req *StoreRequest) (*Response, error)
	// Update replaces the payment method behind billingKey. The response may
	// carry a new billing key.
	Update(ctx context.Context, billingKey string, pm *types.PaymentMethod) (*Response, error)
	// Cancel releases the stored payment method
	Cancel(ctx context.Context, billingKey string) error
	// FetchTransactions returns transactions created strictly after the
	// checkpoint, or all known transactions when after is nil
	FetchTransactions(ctx context.Context, after *time.Time) ([]*Transaction, error)
}

// StoreRequest carries the payment method and the owner it is stored for
type StoreRequest struct {
	PaymentMethod   *types.PaymentMethod
	SubscriberID    string
	SubscriberEmail string
}

// Response is the outcome of a Store or Update call
type Response struct {
	Success    bool
	BillingKey string
	Message    string
}

// Transaction is a charge attempt reported by the gateway
type Transaction struct {
	ID         string
	BillingKey string
	Amount     decimal.Decimal
	Currency   string
	Success    bool
	Message    string
	CreatedAt  time.Time

	// Occurrence numbers ID-less transactions with identical content within
	// one fetch, so repeated charges stay distinct in the ledger
	Occurrence int
}

// IdempotencyKey identifies the transaction in the processed ledger. Gateway
// ids are preferred; transactions without one are keyed on their content.
func (t *Transaction) IdempotencyKey(g *idempotency.Generator) string {
	if t.ID != "" {
		return g.GenerateKey(idempotency.ScopeGatewayTransaction, map[string]interface{}{
			"transaction_id": t.ID,
		})
	}
	return g.GenerateKey(idempotency.ScopeGatewayTransaction, map[string]interface{}{
		"billing_key": t.BillingKey,
		"amount":      t.Amount.String(),
		"success":     t.Success,
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"occurrence":  t.Occurrence,
	})
}

// NumberOccurrences sets Occurrence on ID-less transactions that share their
// content with an earlier one in txns. The numbering depends only on order,
// so a sorted refetch of the same window yields the same keys.
func NumberOccurrences(txns []*Transaction, g *idempotency.Generator) {
	counts := make(map[string]int)
	for _, txn := range txns {
		if txn.ID != "" {
			continue
		}
		txn.Occurrence = 0
		key := txn.IdempotencyKey(g)
		txn.Occurrence = counts[key]
		counts[key]++
	}
}

// IsPayment reports whether the transaction should extend service. A
// successful charge for nothing is treated like a failed one.
func (t *Transaction) IsPayment() bool {
	return t.Success && t.Amount.IsPositive()
}

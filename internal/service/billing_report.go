package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/freemium/internal/types"
)

// BillingPhase names a step of the billing run
type BillingPhase string

const (
	PhaseTransactions BillingPhase = "process_new_transactions"
	PhaseExpirable    BillingPhase = "find_expirable"
	PhaseExpire       BillingPhase = "expire"
)

// ItemFailure is one subscription or transaction the run could not handle
type ItemFailure struct {
	Phase          BillingPhase `json:"phase"`
	SubscriptionID string       `json:"subscription_id,omitempty"`
	TransactionID  string       `json:"transaction_id,omitempty"`
	Error          string       `json:"error"`
}

// BillingReport summarises a billing run. It is plain data so workflow
// activities can return it.
type BillingReport struct {
	RunID      string    `json:"run_id"`
	TenantID   string    `json:"tenant_id"`
	Today      time.Time `json:"today"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TransactionsFetched   int        `json:"transactions_fetched"`
	PaymentsApplied       int        `json:"payments_applied"`
	PaymentsFailed        int        `json:"payments_failed"`
	TransactionsSkipped   int        `json:"transactions_skipped"`
	TransactionsDuplicate int        `json:"transactions_duplicate"`
	Checkpoint            *time.Time `json:"checkpoint,omitempty"`
	CheckpointAdvanced    bool       `json:"checkpoint_advanced"`

	GraceStarted int `json:"grace_started"`
	Expired      int `json:"expired"`

	Failures []ItemFailure `json:"failures,omitempty"`
}

// NewBillingReport starts an empty report for a run on today
func NewBillingReport(runID, tenantID string, today, startedAt time.Time) *BillingReport {
	return &BillingReport{
		RunID:     runID,
		TenantID:  tenantID,
		Today:     types.StartOfDay(today),
		StartedAt: startedAt.UTC(),
	}
}

// HasFailures reports whether any item or phase failed
func (r *BillingReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// FailuresIn returns the failures recorded for phase
func (r *BillingReport) FailuresIn(phase BillingPhase) []ItemFailure {
	var out []ItemFailure
	for _, f := range r.Failures {
		if f.Phase == phase {
			out = append(out, f)
		}
	}
	return out
}

// Merge adds the counters and failures of other, e.g. a phase run separately
func (r *BillingReport) Merge(other *BillingReport) {
	if other == nil {
		return
	}
	r.TransactionsFetched += other.TransactionsFetched
	r.PaymentsApplied += other.PaymentsApplied
	r.PaymentsFailed += other.PaymentsFailed
	r.TransactionsSkipped += other.TransactionsSkipped
	r.TransactionsDuplicate += other.TransactionsDuplicate
	r.GraceStarted += other.GraceStarted
	r.Expired += other.Expired
	r.CheckpointAdvanced = r.CheckpointAdvanced || other.CheckpointAdvanced
	if other.Checkpoint != nil {
		r.Checkpoint = other.Checkpoint
	}
	r.Failures = append(r.Failures, other.Failures...)
}

// AddFailure records an item or phase that could not be handled
func (r *BillingReport) AddFailure(phase BillingPhase, subscriptionID, transactionID string, err error) {
	r.Failures = append(r.Failures, ItemFailure{
		Phase:          phase,
		SubscriptionID: subscriptionID,
		TransactionID:  transactionID,
		Error:          err.Error(),
	})
}

// Subject is the admin email subject line
func (r *BillingReport) Subject() string {
	status := "OK"
	if r.HasFailures() {
		status = fmt.Sprintf("%d failures", len(r.Failures))
	}
	return fmt.Sprintf("Billing report %s: %s", r.Today.Format("2006-01-02"), status)
}

// Text renders the admin summary as plain text
func (r *BillingReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Billing run %s for %s\n", r.RunID, r.Today.Format("2006-01-02"))
	fmt.Fprintf(&b, "Duration: %s\n\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(&b, "Transactions fetched:   %d\n", r.TransactionsFetched)
	fmt.Fprintf(&b, "Payments applied:       %d\n", r.PaymentsApplied)
	fmt.Fprintf(&b, "Payments failed:        %d\n", r.PaymentsFailed)
	fmt.Fprintf(&b, "Unmatched transactions: %d\n", r.TransactionsSkipped)
	fmt.Fprintf(&b, "Already processed:      %d\n", r.TransactionsDuplicate)
	fmt.Fprintf(&b, "Grace periods started:  %d\n", r.GraceStarted)
	fmt.Fprintf(&b, "Subscriptions expired:  %d\n", r.Expired)

	if r.Checkpoint != nil {
		fmt.Fprintf(&b, "Checkpoint:             %s", r.Checkpoint.UTC().Format(time.RFC3339))
		if !r.CheckpointAdvanced {
			b.WriteString(" (not advanced)")
		}
		b.WriteString("\n")
	}

	if r.HasFailures() {
		fmt.Fprintf(&b, "\nFailures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- [%s]", f.Phase)
			if f.SubscriptionID != "" {
				fmt.Fprintf(&b, " subscription=%s", f.SubscriptionID)
			}
			if f.TransactionID != "" {
				fmt.Fprintf(&b, " transaction=%s", f.TransactionID)
			}
			fmt.Fprintf(&b, ": %s\n", f.Error)
		}
	}
	return b.String()
}

// eventPayload is the body of the billing.run_completed event
func (r *BillingReport) eventPayload() map[string]any {
	return map[string]any{
		"run_id":                 r.RunID,
		"today":                  r.Today.Format("2006-01-02"),
		"transactions_fetched":   r.TransactionsFetched,
		"payments_applied":       r.PaymentsApplied,
		"payments_failed":        r.PaymentsFailed,
		"transactions_skipped":   r.TransactionsSkipped,
		"transactions_duplicate": r.TransactionsDuplicate,
		"grace_started":          r.GraceStarted,
		"expired":                r.Expired,
		"failures":               len(r.Failures),
	}
}

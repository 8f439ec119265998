package service

import (
	"context"
	"sort"
	"time"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/sentry"
	"github.com/flexprice/freemium/internal/types"
	"github.com/sourcegraph/conc/panics"
)

// BillingService runs the daily billing cycle. Every phase is exposed so a
// workflow can retry it on its own.
type BillingService interface {
	// RunBilling runs all phases and sends the admin summary. Item failures
	// are collected in the report; the returned error joins phase level
	// failures.
	RunBilling(ctx context.Context) (*BillingReport, error)

	// ProcessNewTransactions applies gateway transactions made after the
	// checkpoint
	ProcessNewTransactions(ctx context.Context, report *BillingReport) error

	// FindExpirable starts the grace period of past-due subscriptions the
	// transaction feed missed
	FindExpirable(ctx context.Context, report *BillingReport) error

	// ExpireElapsed downgrades subscriptions whose grace period is over
	ExpireElapsed(ctx context.Context, report *BillingReport) error

	// SendReport mails the summary to the configured admins and publishes the
	// run completed event
	SendReport(ctx context.Context, report *BillingReport) error

	// NewReport starts the report of a new run and tags ctx with its id
	NewReport(ctx context.Context) (context.Context, *BillingReport)
}

type billingService struct {
	ServiceParams
	source BillableSource
}

func NewBillingService(params ServiceParams, source BillableSource) BillingService {
	return &billingService{
		ServiceParams: params,
		source:        source,
	}
}

func (s *billingService) NewReport(ctx context.Context) (context.Context, *BillingReport) {
	if types.GetTenantID(ctx) == "" {
		ctx = types.NewSystemContext(ctx, "")
	}

	runID := types.GetBillingRunID(ctx)
	if runID == "" {
		runID = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_BILLING_RUN)
		ctx = types.SetBillingRunID(ctx, runID)
	}
	return ctx, NewBillingReport(runID, types.GetTenantID(ctx), s.Today(), s.Now())
}

func (s *billingService) RunBilling(ctx context.Context) (*BillingReport, error) {
	ctx, report := s.NewReport(ctx)

	span, ctx := s.Sentry.StartTransaction(ctx, "billing.run")
	defer sentry.FinishSpan(span)

	s.Logger.Infow("billing run started",
		"run_id", report.RunID,
		"tenant_id", report.TenantID,
		"today", report.Today,
	)

	phases := []struct {
		name BillingPhase
		run  func(context.Context, *BillingReport) error
	}{
		{PhaseTransactions, s.ProcessNewTransactions},
		{PhaseExpirable, s.FindExpirable},
		{PhaseExpire, s.ExpireElapsed},
	}

	var errs []error
	for _, phase := range phases {
		s.Sentry.AddBreadcrumb("billing", string(phase.name), map[string]interface{}{
			"run_id":   report.RunID,
			"failures": len(report.Failures),
		})
		if err := phase.run(ctx, report); err != nil {
			s.Logger.Errorw("billing phase failed",
				"run_id", report.RunID,
				"phase", phase.name,
				"error", err,
			)
			s.capture(ctx, phase.name, "", err)
			report.AddFailure(phase.name, "", "", err)
			errs = append(errs, err)
		}
	}

	report.FinishedAt = s.Now().UTC()

	if err := s.SendReport(ctx, report); err != nil {
		s.Logger.Errorw("failed to send billing report",
			"run_id", report.RunID,
			"error", err,
		)
		s.Sentry.CaptureWithContext(ctx, err, map[string]string{"run_id": report.RunID})
	}

	s.Logger.Infow("billing run finished",
		"run_id", report.RunID,
		"payments_applied", report.PaymentsApplied,
		"payments_failed", report.PaymentsFailed,
		"skipped", report.TransactionsSkipped,
		"duplicates", report.TransactionsDuplicate,
		"grace_started", report.GraceStarted,
		"expired", report.Expired,
		"failures", len(report.Failures),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)

	return report, ierr.Combine(errs...)
}

// transactionOutcome is what happened to one gateway transaction
type transactionOutcome int

const (
	outcomeApplied transactionOutcome = iota
	outcomeFailedPayment
	outcomeSkipped
	outcomeDuplicate
)

func (s *billingService) ProcessNewTransactions(ctx context.Context, report *BillingReport) error {
	checkpoint, err := s.source.Checkpoint(ctx)
	if err != nil {
		return err
	}
	report.Checkpoint = checkpoint

	var after *time.Time
	if checkpoint != nil {
		from := checkpoint.Add(-s.Config.Billing.CheckpointLookback)
		after = &from
	}

	txns, err := s.Gateway.FetchTransactions(ctx, after)
	if err != nil {
		return err
	}
	report.TransactionsFetched += len(txns)

	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID < txns[j].ID
		}
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
	payment.NumberOccurrences(txns, s.IdempotencyGen)

	seen := make(map[string]time.Time)
	owners := make(map[string]Billable)
	failed := false

	for _, txn := range txns {
		var (
			owner   Billable
			outcome transactionOutcome
		)
		err := s.isolate(func() error {
			var err error
			owner, outcome, err = s.processTransaction(ctx, txn)
			return err
		})
		if err != nil {
			failed = true
			subID := ""
			if owner != nil {
				subID = owner.GetID()
			}
			s.Logger.Errorw("failed to process transaction",
				"run_id", report.RunID,
				"transaction_id", txn.ID,
				"subscription_id", subID,
				"error", err,
			)
			s.capture(ctx, PhaseTransactions, subID, err)
			report.AddFailure(PhaseTransactions, subID, txn.ID, err)
			continue
		}

		switch outcome {
		case outcomeApplied:
			report.PaymentsApplied++
		case outcomeFailedPayment:
			report.PaymentsFailed++
		case outcomeSkipped:
			report.TransactionsSkipped++
			continue
		case outcomeDuplicate:
			report.TransactionsDuplicate++
		}

		id := owner.GetID()
		owners[id] = owner
		if at, ok := seen[id]; !ok || txn.CreatedAt.After(at) {
			seen[id] = txn.CreatedAt
		}
	}

	if failed {
		s.Logger.Warnw("checkpoint held back after transaction failures",
			"run_id", report.RunID,
			"checkpoint", checkpoint,
		)
		return nil
	}

	for id, at := range seen {
		if err := s.source.AdvanceCheckpoint(ctx, owners[id], at); err != nil {
			return err
		}
		if report.Checkpoint == nil || at.After(*report.Checkpoint) {
			latest := at
			report.Checkpoint = &latest
		}
	}
	report.CheckpointAdvanced = len(seen) > 0
	return nil
}

// processTransaction claims and applies txn inside one database transaction.
// The claim rolls back with the state change when applying fails.
func (s *billingService) processTransaction(ctx context.Context, txn *payment.Transaction) (Billable, transactionOutcome, error) {
	if txn.BillingKey == "" {
		return nil, outcomeSkipped, nil
	}

	var (
		owner   Billable
		outcome transactionOutcome
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		owner, err = s.source.FindByBillingKey(ctx, txn.BillingKey)
		if ierr.IsNotFound(err) {
			outcome = outcomeSkipped
			return nil
		}
		if err != nil {
			return err
		}

		claimed, err := s.source.ClaimTransaction(ctx, owner, txn)
		if err != nil {
			return err
		}
		if !claimed {
			outcome = outcomeDuplicate
			return nil
		}

		if txn.IsPayment() {
			outcome = outcomeApplied
			return owner.ReceivePayment(ctx, txn.Amount)
		}
		outcome = outcomeFailedPayment
		_, err = owner.ExpireAfterGrace(ctx)
		return err
	})
	if outcome == outcomeSkipped {
		s.Logger.Infow("skipping transaction with unknown billing key",
			"transaction_id", txn.ID,
			"billing_key", txn.BillingKey,
		)
	}
	return owner, outcome, err
}

func (s *billingService) FindExpirable(ctx context.Context, report *BillingReport) error {
	billables, err := s.source.FindExpirable(ctx, report.Today)
	if err != nil {
		return err
	}

	for _, b := range billables {
		var flagged bool
		err := s.isolate(func() error {
			var err error
			flagged, err = b.ExpireAfterGrace(ctx)
			return err
		})
		if err != nil {
			s.itemFailed(ctx, report, PhaseExpirable, b.GetID(), err)
			continue
		}
		if flagged {
			report.GraceStarted++
		}
	}
	return nil
}

func (s *billingService) ExpireElapsed(ctx context.Context, report *BillingReport) error {
	billables, err := s.source.FindGraceElapsed(ctx, report.Today)
	if err != nil {
		return err
	}

	for _, b := range billables {
		err := s.isolate(func() error {
			return b.Expire(ctx)
		})
		if err != nil {
			s.itemFailed(ctx, report, PhaseExpire, b.GetID(), err)
			continue
		}
		report.Expired++
	}
	return nil
}

func (s *billingService) SendReport(ctx context.Context, report *BillingReport) error {
	var errs []error

	recipients := s.Config.Billing.AdminReportRecipients
	if len(recipients) > 0 {
		if err := s.Notifier.AdminReport(ctx, report.Subject(), report.Text(), recipients); err != nil {
			errs = append(errs, err)
		}
	} else {
		s.Logger.Debugw("no admin report recipients configured", "run_id", report.RunID)
	}

	if s.WebhookPublisher != nil {
		event := &types.LifecycleEvent{
			ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
			EventName: types.EventBillingRunCompleted,
			TenantID:  report.TenantID,
			Timestamp: s.Now().UTC(),
			Payload:   report.eventPayload(),
		}
		if err := s.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return ierr.Combine(errs...)
}

// isolate runs fn and turns a panic into an error so one bad item cannot
// abort the run
func (s *billingService) isolate(fn func() error) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() {
		err = fn()
	})
	if r := pc.Recovered(); r != nil {
		return ierr.WithError(r.AsError()).
			WithHint("Billing item panicked").
			Mark(ierr.ErrSystem)
	}
	return err
}

func (s *billingService) itemFailed(ctx context.Context, report *BillingReport, phase BillingPhase, subscriptionID string, err error) {
	s.Logger.Errorw("billing item failed",
		"run_id", report.RunID,
		"phase", phase,
		"subscription_id", subscriptionID,
		"error", err,
	)
	s.capture(ctx, phase, subscriptionID, err)
	report.AddFailure(phase, subscriptionID, "", err)
}

func (s *billingService) capture(ctx context.Context, phase BillingPhase, subscriptionID string, err error) {
	s.Sentry.CaptureWithContext(ctx, err, map[string]string{
		"run_id":          types.GetBillingRunID(ctx),
		"phase":           string(phase),
		"subscription_id": subscriptionID,
	})
}

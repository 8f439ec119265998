package payment

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
)

// RetryingGateway retries transaction fetches with exponential backoff.
// Store, Update and Cancel pass straight through: retrying a store could
// leave a second payment method behind at the processor.
type RetryingGateway struct {
	Gateway
	maxRetries  uint64
	initialWait time.Duration
	logger      *logger.Logger
}

// NewRetryingGateway wraps gw. maxRetries of 0 disables retries.
func NewRetryingGateway(gw Gateway, maxRetries int, log *logger.Logger) *RetryingGateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryingGateway{
		Gateway:     gw,
		maxRetries:  uint64(maxRetries),
		initialWait: 500 * time.Millisecond,
		logger:      log,
	}
}

func (g *RetryingGateway) FetchTransactions(ctx context.Context, after *time.Time) ([]*Transaction, error) {
	var txns []*Transaction

	operation := func() error {
		var err error
		txns, err = g.Gateway.FetchTransactions(ctx, after)
		if err != nil && (ierr.IsValidation(err) || ierr.IsInvalidOperation(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initialWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, g.maxRetries), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		g.logger.Warnw("fetching gateway transactions failed, retrying",
			"error", err,
			"wait", wait)
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not fetch transactions from the payment gateway").
			Mark(ierr.ErrGateway)
	}
	return txns, nil
}

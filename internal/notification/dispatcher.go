package notification

import (
	"context"

	"github.com/flexprice/freemium/internal/domain/subscription"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/shopspring/decimal"
)

// Dispatcher delivers subscriber and admin notices for lifecycle transitions
type Dispatcher interface {
	// PaymentReceived is sent after a payment extended the subscription
	PaymentReceived(ctx context.Context, sub *subscription.Subscription, amount decimal.Decimal) error

	// GraceEntered is sent once when a subscription is flagged for expiration
	GraceEntered(ctx context.Context, sub *subscription.Subscription) error

	// Expired is sent after a subscription was downgraded to the expired plan
	Expired(ctx context.Context, sub *subscription.Subscription) error

	// AdminReport sends the billing run summary to the given recipients
	AdminReport(ctx context.Context, subject, text string, recipients []string) error
}

type multiDispatcher struct {
	dispatchers []Dispatcher
}

// NewMultiDispatcher fans every notice out to all dispatchers. Every dispatcher
// is attempted and their errors are combined.
func NewMultiDispatcher(dispatchers ...Dispatcher) Dispatcher {
	return &multiDispatcher{dispatchers: dispatchers}
}

func (m *multiDispatcher) PaymentReceived(ctx context.Context, sub *subscription.Subscription, amount decimal.Decimal) error {
	return m.each(func(d Dispatcher) error { return d.PaymentReceived(ctx, sub, amount) })
}

func (m *multiDispatcher) GraceEntered(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(func(d Dispatcher) error { return d.GraceEntered(ctx, sub) })
}

func (m *multiDispatcher) Expired(ctx context.Context, sub *subscription.Subscription) error {
	return m.each(func(d Dispatcher) error { return d.Expired(ctx, sub) })
}

func (m *multiDispatcher) AdminReport(ctx context.Context, subject, text string, recipients []string) error {
	return m.each(func(d Dispatcher) error { return d.AdminReport(ctx, subject, text, recipients) })
}

func (m *multiDispatcher) each(fn func(Dispatcher) error) error {
	errs := make([]error, 0, len(m.dispatchers))
	for _, d := range m.dispatchers {
		errs = append(errs, fn(d))
	}
	return ierr.Combine(errs...)
}

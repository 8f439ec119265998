package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/email"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type emailDispatcher struct {
	sender email.Sender
	logger *logger.Logger
}

// NewEmailDispatcher sends plain text notices through sender. Subscribers
// without an email address are skipped.
func NewEmailDispatcher(sender email.Sender, logger *logger.Logger) Dispatcher {
	return &emailDispatcher{
		sender: sender,
		logger: logger,
	}
}

func (d *emailDispatcher) PaymentReceived(ctx context.Context, sub *subscription.Subscription, amount decimal.Decimal) error {
	var b strings.Builder
	fmt.Fprintf(&b, "We received your payment of %s.\n", amount.StringFixed(2))
	if sub.PaidThrough != nil {
		fmt.Fprintf(&b, "Your subscription is paid through %s.\n", sub.PaidThrough.Format(dateLayout))
	}
	return d.toSubscriber(ctx, sub, "Payment received", b.String())
}

func (d *emailDispatcher) GraceEntered(ctx context.Context, sub *subscription.Subscription) error {
	var b strings.Builder
	b.WriteString("We could not collect payment for your subscription.\n")
	if sub.ExpireOn != nil {
		fmt.Fprintf(&b, "Please update your payment method before %s to keep your plan.\n", sub.ExpireOn.Format(dateLayout))
	}
	return d.toSubscriber(ctx, sub, "Payment failed", b.String())
}

func (d *emailDispatcher) Expired(ctx context.Context, sub *subscription.Subscription) error {
	text := "Your paid subscription has expired and your account was moved to the free plan.\n"
	return d.toSubscriber(ctx, sub, "Subscription expired", text)
}

func (d *emailDispatcher) AdminReport(ctx context.Context, subject, text string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	return d.send(ctx, email.SendEmailRequest{
		ToAddresses: recipients,
		Subject:     subject,
		Text:        text,
	})
}

func (d *emailDispatcher) toSubscriber(ctx context.Context, sub *subscription.Subscription, subject, text string) error {
	if sub.SubscriberEmail == "" {
		d.logger.Debugw("subscriber has no email address, skipping notice",
			"subscription_id", sub.ID,
			"subject", subject,
		)
		return nil
	}
	return d.send(ctx, email.SendEmailRequest{
		ToAddresses: []string{sub.SubscriberEmail},
		Subject:     subject,
		Text:        text,
	})
}

func (d *emailDispatcher) send(ctx context.Context, req email.SendEmailRequest) error {
	if _, err := d.sender.SendEmail(ctx, req); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to deliver %q", req.Subject).
			Mark(ierr.ErrNotification)
	}
	return nil
}

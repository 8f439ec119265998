package stripe

import (
	"context"
	"sort"
	"strings"
	"time"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// Gateway implements payment.Gateway on Stripe. The billing key is the
// Stripe customer id; the stored payment method is the customer's default.
type Gateway struct {
	client *Client
	logger *logger.Logger
}

var _ payment.Gateway = (*Gateway)(nil)

func NewGateway(client *Client, log *logger.Logger) *Gateway {
	return &Gateway{client: client, logger: log}
}

// Store creates a Stripe customer with the payment method attached as default
func (g *Gateway) Store(ctx context.Context, req *payment.StoreRequest) (*payment.Response, error) {
	if err := g.client.wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.CustomerCreateParams{
		PaymentMethod: stripe.String(req.PaymentMethod.Token),
		InvoiceSettings: &stripe.CustomerCreateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(req.PaymentMethod.Token),
		},
		Metadata: map[string]string{
			"freemium_subscriber_id": req.SubscriberID,
		},
	}
	if req.SubscriberEmail != "" {
		params.Email = stripe.String(req.SubscriberEmail)
	}
	if req.PaymentMethod.HolderName != "" {
		params.Name = stripe.String(req.PaymentMethod.HolderName)
	}

	customer, err := g.client.api.V1Customers.Create(ctx, params)
	if err != nil {
		if resp, ok := refusal(err); ok {
			g.logger.Infow("stripe refused payment method",
				"subscriber_id", req.SubscriberID,
				"payment_method", req.PaymentMethod.String(),
				"message", resp.Message)
			return resp, nil
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to create customer in Stripe").
			WithReportableDetails(map[string]any{"subscriber_id": req.SubscriberID}).
			Mark(ierr.ErrGateway)
	}

	g.logger.Infow("stored payment method in stripe",
		"subscriber_id", req.SubscriberID,
		"stripe_customer_id", customer.ID)

	return &payment.Response{Success: true, BillingKey: customer.ID}, nil
}

// Update attaches the new payment method to the customer and makes it default
func (g *Gateway) Update(ctx context.Context, billingKey string, pm *types.PaymentMethod) (*payment.Response, error) {
	if err := g.client.wait(ctx); err != nil {
		return nil, err
	}

	_, err := g.client.api.V1PaymentMethods.Attach(ctx, pm.Token, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(billingKey),
	})
	if err != nil {
		if resp, ok := refusal(err); ok {
			return resp, nil
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to attach payment method in Stripe").
			WithReportableDetails(map[string]any{"stripe_customer_id": billingKey}).
			Mark(ierr.ErrGateway)
	}

	if err := g.client.wait(ctx); err != nil {
		return nil, err
	}

	_, err = g.client.api.V1Customers.Update(ctx, billingKey, &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(pm.Token),
		},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to set default payment method in Stripe").
			WithReportableDetails(map[string]any{"stripe_customer_id": billingKey}).
			Mark(ierr.ErrGateway)
	}

	return &payment.Response{Success: true, BillingKey: billingKey}, nil
}

// Cancel deletes the Stripe customer, which detaches its payment methods
func (g *Gateway) Cancel(ctx context.Context, billingKey string) error {
	if err := g.client.wait(ctx); err != nil {
		return err
	}

	if _, err := g.client.api.V1Customers.Delete(ctx, billingKey, nil); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete customer in Stripe").
			WithReportableDetails(map[string]any{"stripe_customer_id": billingKey}).
			Mark(ierr.ErrGateway)
	}
	return nil
}

// FetchTransactions lists charges created after the checkpoint
func (g *Gateway) FetchTransactions(ctx context.Context, after *time.Time) ([]*payment.Transaction, error) {
	if err := g.client.wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.ChargeListParams{}
	if after != nil {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThan: after.Unix()}
	}

	var charges []*stripe.Charge
	for ch, err := range g.client.api.V1Charges.List(ctx, params) {
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to list charges in Stripe").
				Mark(ierr.ErrGateway)
		}
		charges = append(charges, ch)
	}

	txns := transactionsFromCharges(charges)
	g.logger.Infow("fetched stripe charges",
		"charges", len(charges),
		"transactions", len(txns))
	return txns, nil
}

// transactionsFromCharges converts settled charges in creation order. It stops
// at the first pending charge so the checkpoint never moves past a charge
// whose outcome is still unknown.
func transactionsFromCharges(charges []*stripe.Charge) []*payment.Transaction {
	sorted := make([]*stripe.Charge, len(charges))
	copy(sorted, charges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created < sorted[j].Created
	})

	txns := make([]*payment.Transaction, 0, len(sorted))
	for _, ch := range sorted {
		if ch.Status == stripe.ChargeStatusPending {
			break
		}
		if ch.Customer == nil || ch.Customer.ID == "" {
			continue
		}

		txn := &payment.Transaction{
			ID:         ch.ID,
			BillingKey: ch.Customer.ID,
			Amount:     fromMinorUnits(ch.Amount, string(ch.Currency)),
			Currency:   strings.ToUpper(string(ch.Currency)),
			Success:    ch.Status == stripe.ChargeStatusSucceeded && ch.Paid,
			Message:    ch.FailureMessage,
			CreatedAt:  time.Unix(ch.Created, 0).UTC(),
		}
		txns = append(txns, txn)
	}
	return txns
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// refusal turns card errors into an unsuccessful response. Anything else is
// a real failure and stays an error.
func refusal(err error) (*payment.Response, bool) {
	var stripeErr *stripe.Error
	if !ierr.As(err, &stripeErr) {
		return nil, false
	}
	if stripeErr.Type != stripe.ErrorTypeCard && stripeErr.Code != stripe.ErrorCodeCardDeclined {
		return nil, false
	}
	return &payment.Response{Success: false, Message: stripeErr.Msg}, true
}

package stripe

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/config"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/httpclient"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/stripe/stripe-go/v82"
	"golang.org/x/time/rate"
)

// Client holds the configured Stripe API client. Every call waits on a shared
// limiter so a large billing run cannot trip Stripe's rate limits.
type Client struct {
	api     *stripe.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewClient creates a new Stripe client. HTTP retries are handled by the
// retryablehttp client, so the SDK's own retries are disabled.
func NewClient(cfg *config.Configuration, log *logger.Logger) (*Client, error) {
	if cfg.Stripe.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key is missing").
			WithHint("Set stripe.secret_key or disable the stripe gateway").
			Mark(ierr.ErrValidation)
	}

	httpClient := httpclient.NewRetryingHTTPClient(httpclient.ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: cfg.Stripe.MaxRetries,
	}, log)

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	})

	limit := rate.Limit(cfg.Stripe.RateLimit)
	if cfg.Stripe.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Stripe.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     stripe.NewClient(cfg.Stripe.SecretKey, stripe.WithBackends(backends)),
		limiter: rate.NewLimiter(limit, burst),
		logger:  log,
	}, nil
}

// wait blocks until the limiter admits one more API call
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Stripe call cancelled while waiting for rate limit").
			Mark(ierr.ErrGateway)
	}
	return nil
}

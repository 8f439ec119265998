package integration

import (
	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/integration/stripe"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/types"
)

// NewGateway picks the payment gateway for the deployment. Stripe is used when
// enabled; local runs fall back to the in-memory test gateway. Either way
// transaction fetches are retried.
func NewGateway(cfg *config.Configuration, log *logger.Logger) (payment.Gateway, error) {
	var gw payment.Gateway

	if cfg.Stripe.Enabled {
		client, err := stripe.NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		gw = stripe.NewGateway(client, log)
		log.Infow("using stripe payment gateway")
	} else {
		if cfg.Deployment.Mode != types.ModeLocal {
			log.Warnw("stripe is disabled outside local mode, using the test gateway",
				"mode", cfg.Deployment.Mode)
		}
		gw = payment.NewTestGateway()
	}

	return payment.NewRetryingGateway(gw, cfg.Stripe.MaxRetries, log), nil
}

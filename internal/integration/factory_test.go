package integration

import (
	"testing"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGateway(t *testing.T) {
	cfg := config.GetDefaultConfig()

	gw, err := NewGateway(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	retrying, ok := gw.(*payment.RetryingGateway)
	require.True(t, ok)
	_, ok = retrying.Gateway.(*payment.TestGateway)
	assert.True(t, ok)

	cfg.Stripe.Enabled = true
	_, err = NewGateway(cfg, logger.NewNopLogger())
	assert.Error(t, err, "stripe without a secret key")
}

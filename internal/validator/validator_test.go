package validator

import (
	"testing"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePlan struct {
	ID            string              `validate:"required"`
	BillingPeriod types.BillingPeriod `validate:"billing_period"`
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(samplePlan{ID: "plan_1", BillingPeriod: types.BILLING_PERIOD_MONTHLY})
	assert.NoError(t, err)

	err = ValidateRequest(samplePlan{BillingPeriod: "WEEKLY"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	details := ierr.Details(err)
	assert.Contains(t, details, "ID")
	assert.Contains(t, details, "BillingPeriod")
	assert.Equal(t, "Request validation failed", ierr.Hint(err))
}

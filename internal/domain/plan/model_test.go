package plan

import (
	"context"
	"testing"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFree(t *testing.T) {
	ctx := context.Background()
	assert.True(t, New(ctx, "Free", decimal.Zero, "USD").IsFree())
	assert.False(t, New(ctx, "Basic", decimal.NewFromFloat(13), "USD").IsFree())
}

func TestPeriods(t *testing.T) {
	p := New(context.Background(), "Basic", decimal.NewFromFloat(13), "USD")

	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{"one period", decimal.NewFromFloat(13), "1"},
		{"three periods", decimal.NewFromFloat(39), "3"},
		{"half period", decimal.NewFromFloat(6.5), "0.5"},
		{"nothing", decimal.Zero, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Periods(tt.amount)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}

	free := New(context.Background(), "Free", decimal.Zero, "USD")
	_, err := free.Periods(decimal.NewFromFloat(13))
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestValidate(t *testing.T) {
	p := New(context.Background(), "Basic", decimal.NewFromFloat(-1), "USD")
	assert.True(t, ierr.IsValidation(p.Validate()))

	p.Rate = decimal.NewFromFloat(10)
	assert.NoError(t, p.Validate())

	p.BillingPeriod = types.BillingPeriod("WEEKLY")
	assert.True(t, ierr.IsValidation(p.Validate()))
}

func TestDailyRate(t *testing.T) {
	p := New(context.Background(), "Basic", decimal.NewFromFloat(13), "USD")
	assert.Equal(t, "0.42", p.DailyRate().String())
}

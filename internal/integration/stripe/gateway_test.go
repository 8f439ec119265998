package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func charge(id, customer string, amount int64, status stripe.ChargeStatus, created int64) *stripe.Charge {
	return &stripe.Charge{
		ID:       id,
		Amount:   amount,
		Currency: stripe.CurrencyUSD,
		Status:   status,
		Paid:     status == stripe.ChargeStatusSucceeded,
		Customer: &stripe.Customer{ID: customer},
		Created:  created,
	}
}

func TestTransactionsFromCharges(t *testing.T) {
	charges := []*stripe.Charge{
		charge("ch_3", "cus_b", 500, stripe.ChargeStatusFailed, 300),
		charge("ch_1", "cus_a", 1300, stripe.ChargeStatusSucceeded, 100),
		charge("ch_2", "", 1300, stripe.ChargeStatusSucceeded, 200),
	}

	txns := transactionsFromCharges(charges)
	require.Len(t, txns, 2)

	assert.Equal(t, "ch_1", txns[0].ID)
	assert.Equal(t, "cus_a", txns[0].BillingKey)
	assert.Equal(t, "13", txns[0].Amount.String())
	assert.Equal(t, "USD", txns[0].Currency)
	assert.True(t, txns[0].Success)
	assert.Equal(t, time.Unix(100, 0).UTC(), txns[0].CreatedAt)

	assert.Equal(t, "ch_3", txns[1].ID)
	assert.False(t, txns[1].Success)
}

func TestTransactionsStopAtPendingCharge(t *testing.T) {
	charges := []*stripe.Charge{
		charge("ch_1", "cus_a", 1300, stripe.ChargeStatusSucceeded, 100),
		charge("ch_2", "cus_a", 1300, stripe.ChargeStatusPending, 200),
		charge("ch_3", "cus_a", 1300, stripe.ChargeStatusSucceeded, 300),
	}

	txns := transactionsFromCharges(charges)
	require.Len(t, txns, 1)
	assert.Equal(t, "ch_1", txns[0].ID)
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "13.5", fromMinorUnits(1350, "usd").String())
	assert.Equal(t, "1350", fromMinorUnits(1350, "jpy").String())
}

func TestRefusal(t *testing.T) {
	resp, ok := refusal(&stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."})
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "Your card was declined.", resp.Message)

	_, ok = refusal(&stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "server error"})
	assert.False(t, ok)
}

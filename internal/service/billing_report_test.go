package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillingReportText(t *testing.T) {
	started := time.Date(2024, time.March, 15, 3, 0, 0, 0, time.UTC)
	r := NewBillingReport("RUN-ABC123", "tenant_1", started, started)
	r.FinishedAt = started.Add(1500 * time.Millisecond)
	r.PaymentsApplied = 4
	r.Expired = 1

	assert.Equal(t, "Billing report 2024-03-15: OK", r.Subject())
	assert.Contains(t, r.Text(), "Payments applied:       4")
	assert.NotContains(t, r.Text(), "Failures")

	r.AddFailure(PhaseExpire, "subs_1", "", errors.New("plan missing"))
	assert.Equal(t, "Billing report 2024-03-15: 1 failures", r.Subject())
	assert.Contains(t, r.Text(), "- [expire] subscription=subs_1: plan missing")
}

func TestBillingReportMerge(t *testing.T) {
	now := time.Date(2024, time.March, 15, 3, 0, 0, 0, time.UTC)
	total := NewBillingReport("RUN-1", "tenant_1", now, now)

	phase := NewBillingReport("RUN-1", "tenant_1", now, now)
	phase.PaymentsApplied = 2
	phase.CheckpointAdvanced = true
	phase.Checkpoint = &now
	phase.AddFailure(PhaseTransactions, "subs_1", "ch_1", errors.New("boom"))

	total.Merge(phase)
	total.Merge(nil)
	total.Merge(&BillingReport{GraceStarted: 3})

	assert.Equal(t, 2, total.PaymentsApplied)
	assert.Equal(t, 3, total.GraceStarted)
	assert.True(t, total.CheckpointAdvanced)
	assert.Equal(t, &now, total.Checkpoint)
	assert.Len(t, total.FailuresIn(PhaseTransactions), 1)
	assert.Empty(t, total.FailuresIn(PhaseExpire))
}

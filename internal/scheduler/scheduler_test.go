package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexprice/freemium/internal/config"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBilling struct {
	service.BillingService
	runs int32
}

func (c *countingBilling) RunBilling(ctx context.Context) (*service.BillingReport, error) {
	atomic.AddInt32(&c.runs, 1)
	return &service.BillingReport{RunID: "RUN-TEST01"}, nil
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Billing.Schedule = "every day at three"

	_, err := NewScheduler(cfg, &countingBilling{}, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestSchedulerStartStop(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Billing.Schedule = "0 3 * * *"

	s, err := NewScheduler(cfg, &countingBilling{}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	next := s.NextRun()
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, time.UTC, next.Location())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestRunBillingInvokesService(t *testing.T) {
	billing := &countingBilling{}
	s, err := NewScheduler(config.GetDefaultConfig(), billing, logger.NewNopLogger())
	require.NoError(t, err)

	s.runBilling()
	assert.Equal(t, int32(1), atomic.LoadInt32(&billing.runs))
}

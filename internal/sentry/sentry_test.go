package sentry

import (
	"context"
	"errors"
	"testing"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Sentry.Enabled = false

	for name, svc := range map[string]*Service{
		"disabled": NewSentryService(cfg, logger.NewNopLogger()),
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.NotPanics(t, func() {
				svc.AddBreadcrumb("billing", "process_new_transactions", map[string]interface{}{"run_id": "RUN-1"})
				svc.CaptureException(errors.New("boom"))
				svc.CaptureWithContext(ctx, errors.New("boom"), map[string]string{"phase": "expire"})
			})
			assert.True(t, svc.Flush(1), "nothing is queued")

			span, spanCtx := svc.StartTransaction(ctx, "billing.run")
			assert.Nil(t, span)
			assert.Equal(t, ctx, spanCtx)
			FinishSpan(span)
		})
	}
}

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/httpclient"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/freemium/internal/pubsub/router"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/webhook/handler"
	"github.com/flexprice/freemium/internal/webhook/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	event string
	auth  string
	body  string
}

func TestLifecycleEventDelivery(t *testing.T) {
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{
			event: r.Header.Get("X-Freemium-Event"),
			auth:  r.Header.Get("Authorization"),
			body:  string(body),
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Webhook = config.WebhookConfig{
		Enabled:  true,
		Topic:    "lifecycle_events",
		Endpoint: srv.URL,
		Headers:  map[string]string{"Authorization": "Bearer test"},
	}
	log := logger.NewNopLogger()

	ps := memory.NewPubSub(log)
	router, err := pubsubRouter.NewRouter(log, nil)
	require.NoError(t, err)
	pub, err := publisher.NewPublisher(ps, cfg, log)
	require.NoError(t, err)
	h, err := handler.NewHandler(ps, cfg, httpclient.NewDefaultClient(httpclient.ClientConfig{Timeout: time.Second}, log), log)
	require.NoError(t, err)

	svc := NewWebhookService(cfg, pub, h, router, log)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	err = pub.PublishWebhook(ctx, &types.LifecycleEvent{
		ID:        "evt_1",
		EventName: types.EventSubscriptionExpired,
		TenantID:  types.DefaultTenantID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"subscription_id": "subs_1"},
	})
	require.NoError(t, err)

	select {
	case r := <-got:
		assert.Equal(t, string(types.EventSubscriptionExpired), r.event)
		assert.Equal(t, "Bearer test", r.auth)
		assert.Contains(t, r.body, `"subscription_id":"subs_1"`)
	case <-ctx.Done():
		t.Fatal("webhook not delivered")
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log := logger.NewNopLogger()
	pub, err := publisher.NewPublisher(memory.NewPubSub(log), cfg, log)
	require.NoError(t, err)
	assert.NoError(t, pub.PublishWebhook(context.Background(), &types.LifecycleEvent{ID: "evt_1"}))
}

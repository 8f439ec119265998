package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/pubsub/memory"
	"github.com/flexprice/freemium/internal/testutil"
	"github.com/flexprice/freemium/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, client *testutil.MockHTTPClient) *handler {
	cfg := config.GetDefaultConfig()
	cfg.Webhook = config.WebhookConfig{
		Enabled:  true,
		Topic:    "lifecycle_events",
		Endpoint: "https://hooks.example.com/freemium",
		Headers:  map[string]string{"Authorization": "Bearer secret"},
	}
	log := logger.NewNopLogger()
	h, err := NewHandler(memory.NewPubSub(log), cfg, client, log)
	require.NoError(t, err)
	return h.(*handler)
}

func TestProcessMessageDelivers(t *testing.T) {
	client := testutil.NewMockHTTPClient()
	client.RegisterResponse("/freemium", testutil.MockResponse{StatusCode: http.StatusNoContent})
	h := newTestHandler(t, client)

	payload := []byte(`{"id":"evt_1","event_name":"subscription.expired","tenant_id":"tenant_1","payload":{}}`)
	require.NoError(t, h.processMessage(message.NewMessage("evt_1", payload)))

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, string(types.EventSubscriptionExpired), reqs[0].Headers["X-Freemium-Event"])
	assert.Equal(t, "evt_1", reqs[0].Headers["X-Freemium-Event-Id"])
	assert.Equal(t, "Bearer secret", reqs[0].Headers["Authorization"])
	assert.Equal(t, payload, reqs[0].Body)
}

func TestProcessMessageReturnsSendError(t *testing.T) {
	client := testutil.NewMockHTTPClient()
	client.RegisterResponse("/freemium", testutil.MockResponse{Err: errors.New("connection refused")})
	h := newTestHandler(t, client)

	err := h.processMessage(message.NewMessage("evt_1", []byte(`{"id":"evt_1"}`)))
	assert.EqualError(t, err, "connection refused")
}

func TestProcessMessageDropsMalformedPayload(t *testing.T) {
	client := testutil.NewMockHTTPClient()
	h := newTestHandler(t, client)

	assert.NoError(t, h.processMessage(message.NewMessage("evt_1", []byte(`not json`))))
	assert.Empty(t, client.Requests())
}

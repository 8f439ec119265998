package handler

import (
	"context"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/httpclient"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/pubsub"
	pubsubRouter "github.com/flexprice/freemium/internal/pubsub/router"
	"github.com/flexprice/freemium/internal/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler interface for processing lifecycle events
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.WebhookConfig
	client httpclient.Client
	logger *logger.Logger
}

// NewHandler creates a handler that posts every lifecycle event to the
// configured endpoint
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Webhook,
		client: client,
		logger: logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage delivers a single lifecycle event
func (h *handler) processMessage(msg *message.Message) error {
	var event types.LifecycleEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal lifecycle event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // Don't retry on unmarshal errors
	}

	ctx := types.SetTenantID(msg.Context(), event.TenantID)
	return h.deliver(ctx, &event, msg)
}

func (h *handler) deliver(ctx context.Context, event *types.LifecycleEvent, msg *message.Message) error {
	headers := map[string]string{
		"X-Freemium-Event":    string(event.EventName),
		"X-Freemium-Event-Id": event.ID,
	}
	for k, v := range h.config.Headers {
		headers[k] = v
	}

	req := &httpclient.Request{
		Method:  http.MethodPost,
		URL:     h.config.Endpoint,
		Headers: headers,
		Body:    msg.Payload,
	}

	resp, err := h.client.Send(ctx, req)
	if err != nil {
		h.logger.Errorw("failed to send webhook",
			"error", err,
			"message_uuid", msg.UUID,
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.Infow("webhook sent successfully",
		"message_uuid", msg.UUID,
		"tenant_id", event.TenantID,
		"event", event.EventName,
		"status_code", resp.StatusCode,
	)
	return nil
}

package webhook

import (
	"context"

	"github.com/flexprice/freemium/internal/httpclient"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/pubsub"
	"github.com/flexprice/freemium/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/freemium/internal/pubsub/router"
	"github.com/flexprice/freemium/internal/webhook/handler"
	"github.com/flexprice/freemium/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides all webhook-related dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		provideHTTPClient,
		pubsubRouter.NewRouter,
	),

	fx.Provide(
		publisher.NewPublisher,
		handler.NewHandler,
		NewWebhookService,
	),

	fx.Invoke(registerHooks),
)

func providePubSub(logger *logger.Logger) pubsub.PubSub {
	return memory.NewPubSub(logger)
}

func provideHTTPClient(logger *logger.Logger) httpclient.Client {
	return httpclient.NewDefaultClient(httpclient.ClientConfig{MaxRetries: 3}, logger)
}

func registerHooks(lc fx.Lifecycle, svc *WebhookService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}

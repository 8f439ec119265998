package notification

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/webhook/publisher"
	"github.com/shopspring/decimal"
)

type eventDispatcher struct {
	publisher publisher.WebhookPublisher
}

// NewEventDispatcher publishes subscriber notices as lifecycle events.
// Admin reports are not published here.
func NewEventDispatcher(pub publisher.WebhookPublisher) Dispatcher {
	return &eventDispatcher{publisher: pub}
}

func (d *eventDispatcher) PaymentReceived(ctx context.Context, sub *subscription.Subscription, amount decimal.Decimal) error {
	payload := subscriptionPayload(sub)
	payload["amount"] = amount.String()
	return d.publish(ctx, types.EventSubscriptionPaymentReceived, sub, payload)
}

func (d *eventDispatcher) GraceEntered(ctx context.Context, sub *subscription.Subscription) error {
	return d.publish(ctx, types.EventSubscriptionGraceEntered, sub, subscriptionPayload(sub))
}

func (d *eventDispatcher) Expired(ctx context.Context, sub *subscription.Subscription) error {
	return d.publish(ctx, types.EventSubscriptionExpired, sub, subscriptionPayload(sub))
}

func (d *eventDispatcher) AdminReport(context.Context, string, string, []string) error {
	return nil
}

func (d *eventDispatcher) publish(ctx context.Context, name types.LifecycleEventName, sub *subscription.Subscription, payload map[string]any) error {
	tenantID := sub.TenantID
	if tenantID == "" {
		tenantID = types.GetTenantID(ctx)
	}
	return d.publisher.PublishWebhook(ctx, &types.LifecycleEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName: name,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func subscriptionPayload(sub *subscription.Subscription) map[string]any {
	payload := map[string]any{
		"subscription_id": sub.ID,
		"subscriber_id":   sub.SubscriberID,
		"plan_id":         sub.PlanID,
		"started_on":      sub.StartedOn.Format(dateLayout),
	}
	if sub.PaidThrough != nil {
		payload["paid_through"] = sub.PaidThrough.Format(dateLayout)
	}
	if sub.ExpireOn != nil {
		payload["expire_on"] = sub.ExpireOn.Format(dateLayout)
	}
	return payload
}

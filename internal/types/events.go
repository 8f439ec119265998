package types

import (
	"time"
)

// LifecycleEventName names a subscription lifecycle transition published to listeners
type LifecycleEventName string

const (
	EventSubscriptionPaymentReceived LifecycleEventName = "subscription.payment_received"
	EventSubscriptionGraceEntered    LifecycleEventName = "subscription.grace_entered"
	EventSubscriptionExpired         LifecycleEventName = "subscription.expired"
	EventBillingRunCompleted         LifecycleEventName = "billing.run_completed"
)

// LifecycleEvent is the envelope published for every lifecycle transition
type LifecycleEvent struct {
	ID        string             `json:"id"`
	EventName LifecycleEventName `json:"event_name"`
	TenantID  string             `json:"tenant_id"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   map[string]any     `json:"payload"`
}

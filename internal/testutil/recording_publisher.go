package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/freemium/internal/types"
	webhookPublisher "github.com/flexprice/freemium/internal/webhook/publisher"
)

var _ webhookPublisher.WebhookPublisher = (*RecordingWebhookPublisher)(nil)

// RecordingWebhookPublisher keeps published lifecycle events in memory
type RecordingWebhookPublisher struct {
	mu     sync.Mutex
	events []*types.LifecycleEvent
}

func NewRecordingWebhookPublisher() *RecordingWebhookPublisher {
	return &RecordingWebhookPublisher{}
}

func (p *RecordingWebhookPublisher) PublishWebhook(_ context.Context, event *types.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingWebhookPublisher) Close() error {
	return nil
}

// Events returns the published events named name, or all when name is empty
func (p *RecordingWebhookPublisher) Events(name types.LifecycleEventName) []*types.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*types.LifecycleEvent
	for _, e := range p.events {
		if name == "" || e.EventName == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *RecordingWebhookPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

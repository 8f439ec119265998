package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/notification"
	"github.com/shopspring/decimal"
)

// NoticeKind names the notice a RecordingDispatcher received
type NoticeKind string

const (
	NoticePaymentReceived NoticeKind = "payment_received"
	NoticeGraceEntered    NoticeKind = "grace_entered"
	NoticeExpired         NoticeKind = "expired"
	NoticeAdminReport     NoticeKind = "admin_report"
)

// Notice is one recorded delivery
type Notice struct {
	Kind           NoticeKind
	SubscriptionID string
	Amount         decimal.Decimal
	Subject        string
	Text           string
	Recipients     []string
}

var _ notification.Dispatcher = (*RecordingDispatcher)(nil)

// RecordingDispatcher keeps every notice in memory. Err, when set, is
// returned after the notice is recorded.
type RecordingDispatcher struct {
	mu      sync.Mutex
	notices []Notice
	Err     error
}

func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

func (d *RecordingDispatcher) record(n Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
	return d.Err
}

func (d *RecordingDispatcher) PaymentReceived(_ context.Context, sub *subscription.Subscription, amount decimal.Decimal) error {
	return d.record(Notice{Kind: NoticePaymentReceived, SubscriptionID: sub.ID, Amount: amount})
}

func (d *RecordingDispatcher) GraceEntered(_ context.Context, sub *subscription.Subscription) error {
	return d.record(Notice{Kind: NoticeGraceEntered, SubscriptionID: sub.ID})
}

func (d *RecordingDispatcher) Expired(_ context.Context, sub *subscription.Subscription) error {
	return d.record(Notice{Kind: NoticeExpired, SubscriptionID: sub.ID})
}

func (d *RecordingDispatcher) AdminReport(_ context.Context, subject, text string, recipients []string) error {
	return d.record(Notice{Kind: NoticeAdminReport, Subject: subject, Text: text, Recipients: recipients})
}

// Notices returns a copy of everything recorded so far
func (d *RecordingDispatcher) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notice(nil), d.notices...)
}

// NoticesOf returns the recorded notices of one kind
func (d *RecordingDispatcher) NoticesOf(kind NoticeKind) []Notice {
	var out []Notice
	for _, n := range d.Notices() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// NoticesFor returns the notices sent about one subscription
func (d *RecordingDispatcher) NoticesFor(subscriptionID string) []Notice {
	var out []Notice
	for _, n := range d.Notices() {
		if n.SubscriptionID == subscriptionID {
			out = append(out, n)
		}
	}
	return out
}

func (d *RecordingDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = nil
	d.Err = nil
}

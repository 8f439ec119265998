package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flexprice/freemium/internal/types"
)

// TestGateway is an in-memory Gateway for tests and local runs. Responses
// default to success; set the exported fields to script failures.
type TestGateway struct {
	mu sync.Mutex

	// StoreResponse and UpdateResponse override the default success
	StoreResponse  *Response
	UpdateResponse *Response
	// StoreErr, UpdateErr, CancelErr and FetchErr are returned when set
	StoreErr  error
	UpdateErr error
	CancelErr error
	FetchErr  error

	transactions []*Transaction
	seq          int

	StoreCalls  []*StoreRequest
	UpdateCalls []string
	CancelCalls []string
	FetchCalls  []*time.Time
}

var _ Gateway = (*TestGateway)(nil)

func NewTestGateway() *TestGateway {
	return &TestGateway{}
}

func (g *TestGateway) Store(_ context.Context, req *StoreRequest) (*Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.StoreCalls = append(g.StoreCalls, req)
	if g.StoreErr != nil {
		return nil, g.StoreErr
	}
	if g.StoreResponse != nil {
		resp := *g.StoreResponse
		return &resp, nil
	}

	g.seq++
	return &Response{Success: true, BillingKey: fmt.Sprintf("bk_test_%d", g.seq)}, nil
}

func (g *TestGateway) Update(_ context.Context, billingKey string, _ *types.PaymentMethod) (*Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.UpdateCalls = append(g.UpdateCalls, billingKey)
	if g.UpdateErr != nil {
		return nil, g.UpdateErr
	}
	if g.UpdateResponse != nil {
		resp := *g.UpdateResponse
		return &resp, nil
	}
	return &Response{Success: true, BillingKey: billingKey}, nil
}

func (g *TestGateway) Cancel(_ context.Context, billingKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CancelCalls = append(g.CancelCalls, billingKey)
	return g.CancelErr
}

func (g *TestGateway) FetchTransactions(_ context.Context, after *time.Time) ([]*Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.FetchCalls = append(g.FetchCalls, after)
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}

	result := make([]*Transaction, 0, len(g.transactions))
	for _, t := range g.transactions {
		if after == nil || t.CreatedAt.After(*after) {
			txn := *t
			result = append(result, &txn)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// AddTransactions makes transactions visible to FetchTransactions
func (g *TestGateway) AddTransactions(txns ...*Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions = append(g.transactions, txns...)
}

// Reset forgets recorded calls and transactions but keeps scripted responses
func (g *TestGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions = nil
	g.StoreCalls = nil
	g.UpdateCalls = nil
	g.CancelCalls = nil
	g.FetchCalls = nil
}

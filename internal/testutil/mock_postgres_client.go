package testutil

import (
	"context"

	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTxKey struct{}

type mockTx struct {
	rollbacks []func()
}

// MockPostgresClient is a mock implementation of postgres client for testing.
// In-memory stores register undo functions with OnRollback, so a failed
// transaction leaves them as they were.
type MockPostgresClient struct {
	logger *logger.Logger
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) postgres.IClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) (err error) {
	// If we're already in a transaction, reuse it
	if _, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		return fn(ctx)
	}

	tx := &mockTx{}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, mockTxKey{}, tx)); err != nil {
		c.logger.Debugw("rolling back mock transaction", "error", err)
		tx.rollback()
	}
	return err
}

func (tx *mockTx) rollback() {
	for i := len(tx.rollbacks) - 1; i >= 0; i-- {
		tx.rollbacks[i]()
	}
	tx.rollbacks = nil
}

// OnRollback registers undo to run if the transaction in ctx fails.
// Outside a transaction it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		tx.rollbacks = append(tx.rollbacks, undo)
	}
}

package testutil

import (
	"context"

	"github.com/flexprice/freemium/internal/types"
)

// SetupContext returns a request context for the default tenant with a fresh
// request id. Billing runs derive their own context from it.
func SetupContext() context.Context {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	return context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
}

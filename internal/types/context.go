package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID    ContextKey = "ctx_request_id"
	CtxTenantID     ContextKey = "ctx_tenant_id"
	CtxUserID       ContextKey = "ctx_user_id"
	CtxBillingRunID ContextKey = "ctx_billing_run_id"

	// Default values
	DefaultTenantID = "00000000-0000-0000-0000-000000000000"
	DefaultUserID   = "00000000-0000-0000-0000-000000000000"

	// SystemUserID marks writes performed by the billing job rather than a person
	SystemUserID = "system"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(CtxTenantID).(string); ok {
		return tenantID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// GetBillingRunID returns the id of the billing run the context belongs to, if any
func GetBillingRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(CtxBillingRunID).(string); ok {
		return runID
	}
	return ""
}

// SetTenantID sets the tenant ID in the context
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// SetBillingRunID tags the context with a billing run id for log correlation
func SetBillingRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, CtxBillingRunID, runID)
}

// NewSystemContext builds the context used by scheduled jobs. Tenant defaults
// to DefaultTenantID when empty.
func NewSystemContext(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		tenantID = DefaultTenantID
	}
	ctx = SetTenantID(ctx, tenantID)
	ctx = SetUserID(ctx, SystemUserID)
	return context.WithValue(ctx, CtxRequestID, GenerateUUID())
}

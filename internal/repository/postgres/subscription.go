package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/types"
)

const subscriptionColumns = `id, plan_id, subscriber_id, subscriber_email, payment_method,
	started_on, paid_through, expire_on, billing_key, last_transaction_at,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, plan_id, subscriber_id, subscriber_email, payment_method,
			started_on, paid_through, expire_on, billing_key, last_transaction_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :plan_id, :subscriber_id, :subscriber_email, :payment_method,
			:started_on, :paid_through, :expire_on, :billing_key, :last_transaction_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, id, false)
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, id, true)
}

func (r *subscriptionRepository) get(ctx context.Context, id string, lock bool) (*subscription.Subscription, error) {
	c := tenantScope(types.GetTenantID(ctx), types.StatusPublished)
	c.add("id = ?", id)

	query := "SELECT " + subscriptionColumns + " FROM subscriptions" + c.where()
	if lock {
		query += " FOR UPDATE"
	}

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, c.args...); err != nil {
		return nil, mapError(err, "subscription", map[string]any{"subscription_id": id})
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan_id = :plan_id,
			subscriber_email = :subscriber_email,
			payment_method = :payment_method,
			started_on = :started_on,
			paid_through = :paid_through,
			expire_on = :expire_on,
			billing_key = :billing_key,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	return expectAffected(result, "subscription", map[string]any{"subscription_id": sub.ID})
}

// Delete marks the row deleted and releases its billing key
func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions SET
			status = $1, billing_key = NULL, updated_at = $2, updated_by = $3
		WHERE id = $4 AND tenant_id = $5 AND status != $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		string(types.StatusDeleted),
		time.Now().UTC(),
		types.GetUserID(ctx),
		id,
		types.GetTenantID(ctx),
	)
	if err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": id})
	}
	return expectAffected(result, "subscription", map[string]any{"subscription_id": id})
}

func (r *subscriptionRepository) GetByBillingKey(ctx context.Context, billingKey string) (*subscription.Subscription, error) {
	c := tenantScope(types.GetTenantID(ctx), types.StatusPublished)
	c.add("billing_key = ?", billingKey)

	var sub subscription.Subscription
	query := "SELECT " + subscriptionColumns + " FROM subscriptions" + c.where()
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, c.args...); err != nil {
		return nil, mapError(err, "subscription", map[string]any{"billing_key": billingKey})
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByPlan(ctx context.Context, planID string) ([]*subscription.Subscription, error) {
	filter := types.NewSubscriptionFilter()
	filter.PlanID = planID
	return r.List(ctx, filter)
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	c := tenantScope(types.GetTenantID(ctx), filter.GetStatus())
	if filter.PlanID != "" {
		c.add("plan_id = ?", filter.PlanID)
	}
	if filter.SubscriberID != "" {
		c.add("subscriber_id = ?", filter.SubscriberID)
	}
	if filter.PaidOnly {
		c.add("paid_through IS NOT NULL")
	}
	if filter.PaidThroughBefore != nil {
		c.add("paid_through < ?", types.StartOfDay(*filter.PaidThroughBefore))
	}

	query := "SELECT " + subscriptionColumns + " FROM subscriptions" + c.where() + " ORDER BY created_at, id"
	query += c.page(filter.QueryFilter)

	return r.selectAll(ctx, query, c.args...)
}

func (r *subscriptionRepository) ListExpirable(ctx context.Context, today time.Time) ([]*subscription.Subscription, error) {
	c := tenantScope(types.GetTenantID(ctx), types.StatusPublished)
	c.add("paid_through IS NOT NULL")
	c.add("paid_through < ?", types.StartOfDay(today))
	c.add("(expire_on IS NULL OR expire_on < paid_through)")

	query := "SELECT " + subscriptionColumns + " FROM subscriptions" + c.where() + " ORDER BY paid_through, id"
	return r.selectAll(ctx, query, c.args...)
}

func (r *subscriptionRepository) ListGraceElapsed(ctx context.Context, today time.Time) ([]*subscription.Subscription, error) {
	c := tenantScope(types.GetTenantID(ctx), types.StatusPublished)
	c.add("paid_through IS NOT NULL")
	c.add("expire_on >= paid_through")
	c.add("expire_on <= ?", types.StartOfDay(today))

	query := "SELECT " + subscriptionColumns + " FROM subscriptions" + c.where() + " ORDER BY expire_on, id"
	return r.selectAll(ctx, query, c.args...)
}

func (r *subscriptionRepository) MaxLastTransactionAt(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(last_transaction_at) FROM subscriptions WHERE tenant_id = $1`

	var max sql.NullTime
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &max, query, types.GetTenantID(ctx)); err != nil {
		return nil, mapError(err, "subscription", nil)
	}
	if !max.Valid {
		return nil, nil
	}
	at := max.Time.UTC()
	return &at, nil
}

func (r *subscriptionRepository) AdvanceCheckpoint(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE subscriptions SET last_transaction_at = GREATEST(last_transaction_at, $1)
		WHERE id = $2 AND tenant_id = $3`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, at.UTC(), id, types.GetTenantID(ctx))
	if err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": id})
	}
	return expectAffected(result, "subscription", map[string]any{"subscription_id": id})
}

func (r *subscriptionRepository) ClaimTransaction(ctx context.Context, txn *subscription.ProcessedTransaction) (bool, error) {
	query := `
		INSERT INTO processed_transactions (
			idempotency_key, transaction_id, subscription_id, billing_key, amount, success,
			occurred_at, processed_at, billing_run_id, tenant_id
		) VALUES (
			:idempotency_key, :transaction_id, :subscription_id, :billing_key, :amount, :success,
			:occurred_at, :processed_at, :billing_run_id, :tenant_id
		)
		ON CONFLICT (idempotency_key) DO NOTHING`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, txn)
	if err != nil {
		return false, mapError(err, "processed transaction", map[string]any{
			"idempotency_key": txn.IdempotencyKey,
		})
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, mapError(err, "processed transaction", nil)
	}

	if n == 0 {
		r.logger.Debugw("transaction already processed",
			"idempotency_key", txn.IdempotencyKey,
			"transaction_id", txn.TransactionID,
		)
	}
	return n == 1, nil
}

func (r *subscriptionRepository) selectAll(ctx context.Context, query string, args ...interface{}) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, mapError(err, "subscription", nil)
	}
	return subs, nil
}

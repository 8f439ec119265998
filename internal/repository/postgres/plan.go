package postgres

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/cache"
	"github.com/flexprice/freemium/internal/domain/plan"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/types"
	"github.com/lib/pq"
)

const planColumns = `id, name, rate, currency, billing_period,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type planRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

// NewPlanRepository returns a plan catalog backed by postgres. Lookups by id
// go through cache.
func NewPlanRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) plan.Repository {
	return &planRepository{db: db, logger: logger, cache: cache}
}

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			id, name, rate, currency, billing_period,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :rate, :currency, :billing_period,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return mapError(err, "plan", map[string]any{"plan_id": p.ID})
	}
	return nil
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	if cached := r.GetCache(ctx, id); cached != nil {
		return cached, nil
	}

	c := tenantScope(types.GetTenantID(ctx), types.StatusPublished)
	c.add("id = ?", id)

	var p plan.Plan
	query := "SELECT " + planColumns + " FROM plans" + c.where()
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, c.args...); err != nil {
		return nil, mapError(err, "plan", map[string]any{"plan_id": id})
	}

	r.SetCache(ctx, &p)
	return &p, nil
}

func (r *planRepository) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	if filter == nil {
		filter = types.NewPlanFilter()
	}

	c := tenantScope(types.GetTenantID(ctx), filter.GetStatus())
	if len(filter.PlanIDs) > 0 {
		c.add("id = ANY(?)", pq.Array(filter.PlanIDs))
	}
	if filter.FreeOnly {
		c.add("rate = 0")
	}

	query := "SELECT " + planColumns + " FROM plans" + c.where() + " ORDER BY created_at, id"
	query += c.page(filter.QueryFilter)

	var plans []*plan.Plan
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &plans, query, c.args...); err != nil {
		return nil, mapError(err, "plan", nil)
	}
	return plans, nil
}

func (r *planRepository) Update(ctx context.Context, p *plan.Plan) error {
	query := `
		UPDATE plans SET
			name = :name,
			rate = :rate,
			currency = :currency,
			billing_period = :billing_period,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return mapError(err, "plan", map[string]any{"plan_id": p.ID})
	}
	r.DeleteCache(ctx, p.ID)
	return expectAffected(result, "plan", map[string]any{"plan_id": p.ID})
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE plans SET status = $1, updated_at = $2, updated_by = $3
		WHERE id = $4 AND tenant_id = $5`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		string(types.StatusDeleted),
		time.Now().UTC(),
		types.GetUserID(ctx),
		id,
		types.GetTenantID(ctx),
	)
	if err != nil {
		return mapError(err, "plan", map[string]any{"plan_id": id})
	}
	r.DeleteCache(ctx, id)
	return expectAffected(result, "plan", map[string]any{"plan_id": id})
}

func (r *planRepository) SetCache(ctx context.Context, p *plan.Plan) {
	key := cache.GenerateKey(cache.PrefixPlan, types.GetTenantID(ctx), p.ID)
	copied := *p
	r.cache.Set(ctx, key, &copied, 0)
}

func (r *planRepository) GetCache(ctx context.Context, id string) *plan.Plan {
	key := cache.GenerateKey(cache.PrefixPlan, types.GetTenantID(ctx), id)
	if value, found := r.cache.Get(ctx, key); found {
		if p, ok := value.(*plan.Plan); ok {
			copied := *p
			return &copied
		}
	}
	return nil
}

func (r *planRepository) DeleteCache(ctx context.Context, id string) {
	key := cache.GenerateKey(cache.PrefixPlan, types.GetTenantID(ctx), id)
	r.cache.Delete(ctx, key)
}

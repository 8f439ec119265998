package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flexprice/freemium/internal/cache"
	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/domain/plan"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var planColumnNames = []string{
	"id", "name", "rate", "currency", "billing_period",
	"tenant_id", "status", "created_at", "updated_at", "created_by", "updated_by",
}

type PlanRepositorySuite struct {
	suite.Suite
	ctx  context.Context
	mock sqlmock.Sqlmock
	repo plan.Repository
}

func TestPlanRepository(t *testing.T) {
	suite.Run(t, new(PlanRepositorySuite))
}

func (s *PlanRepositorySuite) SetupTest() {
	raw, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { raw.Close() })

	db := postgres.NewFromSQLX(sqlx.NewDb(raw, "postgres"), logger.NewNopLogger())
	s.ctx = types.SetTenantID(context.Background(), "tenant_1")
	s.mock = mock
	s.repo = NewPlanRepository(db, logger.NewNopLogger(), cache.NewInMemoryCache(config.GetDefaultConfig()))
}

func (s *PlanRepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *PlanRepositorySuite) basicRow() *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(planColumnNames).AddRow(
		"plan_basic", "Basic", "13.00", "USD", "MONTHLY",
		"tenant_1", "published", now, now, "system", "system",
	)
}

func (s *PlanRepositorySuite) TestGetIsCached() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE tenant_id = $1 AND status = $2 AND id = $3")).
		WithArgs("tenant_1", "published", "plan_basic").
		WillReturnRows(s.basicRow())

	p, err := s.repo.Get(s.ctx, "plan_basic")
	s.Require().NoError(err)
	s.True(p.Rate.Equal(decimal.NewFromInt(13)))
	s.Equal(types.BILLING_PERIOD_MONTHLY, p.BillingPeriod)

	// served from cache, no second query expected
	again, err := s.repo.Get(s.ctx, "plan_basic")
	s.Require().NoError(err)
	s.Equal(p.ID, again.ID)
}

func (s *PlanRepositorySuite) TestUpdateInvalidatesCache() {
	s.mock.ExpectQuery("FROM plans").WillReturnRows(s.basicRow())
	p, err := s.repo.Get(s.ctx, "plan_basic")
	s.Require().NoError(err)

	p.Rate = decimal.NewFromInt(15)
	s.mock.ExpectExec("UPDATE plans SET").WillReturnResult(sqlmock.NewResult(0, 1))
	s.Require().NoError(s.repo.Update(s.ctx, p))

	s.mock.ExpectQuery("FROM plans").WillReturnRows(s.basicRow())
	_, err = s.repo.Get(s.ctx, "plan_basic")
	s.NoError(err)
}

func (s *PlanRepositorySuite) TestGetNotFound() {
	s.mock.ExpectQuery("FROM plans").WillReturnRows(sqlmock.NewRows(planColumnNames))

	_, err := s.repo.Get(s.ctx, "plan_missing")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PlanRepositorySuite) TestListFreeOnly() {
	filter := types.NewPlanFilter()
	filter.FreeOnly = true

	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND status = $2 AND rate = 0 ORDER BY created_at, id")).
		WithArgs("tenant_1", "published").
		WillReturnRows(sqlmock.NewRows(planColumnNames))

	plans, err := s.repo.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Empty(plans)
}

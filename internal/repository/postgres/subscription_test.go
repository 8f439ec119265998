package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flexprice/freemium/internal/domain/subscription"
	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var subscriptionColumnNames = []string{
	"id", "plan_id", "subscriber_id", "subscriber_email", "payment_method",
	"started_on", "paid_through", "expire_on", "billing_key", "last_transaction_at",
	"tenant_id", "status", "created_at", "updated_at", "created_by", "updated_by",
}

type SubscriptionRepositorySuite struct {
	suite.Suite
	ctx  context.Context
	mock sqlmock.Sqlmock
	repo subscription.Repository
}

func TestSubscriptionRepository(t *testing.T) {
	suite.Run(t, new(SubscriptionRepositorySuite))
}

func (s *SubscriptionRepositorySuite) SetupTest() {
	raw, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { raw.Close() })

	db := postgres.NewFromSQLX(sqlx.NewDb(raw, "postgres"), logger.NewNopLogger())
	s.ctx = types.SetTenantID(context.Background(), "tenant_1")
	s.mock = mock
	s.repo = NewSubscriptionRepository(db, logger.NewNopLogger())
}

func (s *SubscriptionRepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *SubscriptionRepositorySuite) paidRow() *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(subscriptionColumnNames).AddRow(
		"subs_1", "plan_basic", "bob", "bob@example.com", []byte(`{"token":"pm_1","type":"CARD","last4":"4242"}`),
		date(2024, 1, 1), date(2024, 2, 1), nil, "bk_1", nil,
		"tenant_1", "published", now, now, "system", "system",
	)
}

func (s *SubscriptionRepositorySuite) TestGet() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE tenant_id = $1 AND status = $2 AND id = $3")).
		WithArgs("tenant_1", "published", "subs_1").
		WillReturnRows(s.paidRow())

	sub, err := s.repo.Get(s.ctx, "subs_1")
	s.Require().NoError(err)
	s.Equal("plan_basic", sub.PlanID)
	s.Equal("bk_1", sub.GetBillingKey())
	s.Require().NotNil(sub.PaymentMethod)
	s.Equal("pm_1", sub.PaymentMethod.Token)
	s.Require().NotNil(sub.PaidThrough)
	s.True(sub.PaidThrough.Equal(date(2024, 2, 1)))
	s.Nil(sub.ExpireOn)
}

func (s *SubscriptionRepositorySuite) TestGetNotFound() {
	s.mock.ExpectQuery("FROM subscriptions").
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames))

	_, err := s.repo.Get(s.ctx, "subs_missing")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionRepositorySuite) TestGetForUpdateLocksRow() {
	s.mock.ExpectQuery(regexp.QuoteMeta("AND id = $3 FOR UPDATE")).
		WithArgs("tenant_1", "published", "subs_1").
		WillReturnRows(s.paidRow())

	_, err := s.repo.GetForUpdate(s.ctx, "subs_1")
	s.NoError(err)
}

func (s *SubscriptionRepositorySuite) TestCreateDuplicate() {
	s.mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(&pq.Error{Code: "23505"})

	sub := &subscription.Subscription{ID: "subs_1", PlanID: "plan_free", SubscriberID: "bob", StartedOn: date(2024, 1, 1)}
	err := s.repo.Create(s.ctx, sub)
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionRepositorySuite) TestUpdateMissingRow() {
	s.mock.ExpectExec("UPDATE subscriptions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	sub := &subscription.Subscription{ID: "subs_1", PlanID: "plan_free", SubscriberID: "bob", StartedOn: date(2024, 1, 1)}
	err := s.repo.Update(s.ctx, sub)
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionRepositorySuite) TestListExpirable() {
	s.mock.ExpectQuery(regexp.QuoteMeta(
		"paid_through IS NOT NULL AND paid_through < $3 AND (expire_on IS NULL OR expire_on < paid_through)",
	)).
		WithArgs("tenant_1", "published", date(2024, 2, 2)).
		WillReturnRows(s.paidRow())

	subs, err := s.repo.ListExpirable(s.ctx, time.Date(2024, 2, 2, 15, 30, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Len(subs, 1)
}

func (s *SubscriptionRepositorySuite) TestListGraceElapsed() {
	s.mock.ExpectQuery(regexp.QuoteMeta("expire_on >= paid_through AND expire_on <= $3")).
		WithArgs("tenant_1", "published", date(2024, 2, 4)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumnNames))

	subs, err := s.repo.ListGraceElapsed(s.ctx, date(2024, 2, 4))
	s.Require().NoError(err)
	s.Empty(subs)
}

func (s *SubscriptionRepositorySuite) TestListWithFilter() {
	filter := types.NewSubscriptionFilter()
	filter.PlanID = "plan_basic"
	filter.PaidOnly = true
	filter.Limit = lo.ToPtr(10)

	s.mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE tenant_id = $1 AND status = $2 AND plan_id = $3 AND paid_through IS NOT NULL ORDER BY created_at, id LIMIT $4",
	)).
		WithArgs("tenant_1", "published", "plan_basic", 10).
		WillReturnRows(s.paidRow())

	subs, err := s.repo.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Len(subs, 1)
}

func (s *SubscriptionRepositorySuite) TestMaxLastTransactionAt() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(last_transaction_at) FROM subscriptions")).
		WithArgs("tenant_1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	at, err := s.repo.MaxLastTransactionAt(s.ctx)
	s.Require().NoError(err)
	s.Nil(at)

	checkpoint := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(last_transaction_at) FROM subscriptions")).
		WithArgs("tenant_1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(checkpoint))

	at, err = s.repo.MaxLastTransactionAt(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(at)
	s.True(at.Equal(checkpoint))
}

func (s *SubscriptionRepositorySuite) TestAdvanceCheckpointNeverMovesBack() {
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	s.mock.ExpectExec(regexp.QuoteMeta("SET last_transaction_at = GREATEST(last_transaction_at, $1)")).
		WithArgs(at, "subs_1", "tenant_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.AdvanceCheckpoint(s.ctx, "subs_1", at))
}

func (s *SubscriptionRepositorySuite) TestClaimTransaction() {
	txn := &subscription.ProcessedTransaction{
		IdempotencyKey: "gateway_txn_abc",
		TransactionID:  "ch_1",
		SubscriptionID: "subs_1",
		BillingKey:     "bk_1",
		Amount:         decimal.NewFromInt(13),
		Success:        true,
		OccurredAt:     date(2024, 2, 1),
		ProcessedAt:    date(2024, 2, 1),
		TenantID:       "tenant_1",
	}

	s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (idempotency_key) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := s.repo.ClaimTransaction(s.ctx, txn)
	s.Require().NoError(err)
	s.True(claimed)

	s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (idempotency_key) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = s.repo.ClaimTransaction(s.ctx, txn)
	s.Require().NoError(err)
	s.False(claimed)
}

func (s *SubscriptionRepositorySuite) TestDeleteReleasesBillingKey() {
	s.mock.ExpectExec(regexp.QuoteMeta("status = $1, billing_key = NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Delete(s.ctx, "subs_1"))
}

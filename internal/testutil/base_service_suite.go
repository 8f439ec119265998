package testutil

import (
	"context"
	"time"

	"github.com/flexprice/freemium/internal/config"
	"github.com/flexprice/freemium/internal/domain/plan"
	"github.com/flexprice/freemium/internal/domain/subscription"
	"github.com/flexprice/freemium/internal/integration/payment"
	"github.com/flexprice/freemium/internal/logger"
	"github.com/flexprice/freemium/internal/postgres"
	"github.com/flexprice/freemium/internal/types"
	"github.com/flexprice/freemium/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// ExpiredPlanID is the free plan subscriptions fall back to in tests
const ExpiredPlanID = "plan_expired"

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo         plan.Repository
	SubscriptionRepo subscription.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	gateway          *payment.TestGateway
	notifier         *RecordingDispatcher
	webhookPublisher *RecordingWebhookPublisher
	db               postgres.IClient
	logger           *logger.Logger
	config           *config.Configuration
	now              time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupConfig()
	s.setupStores()
	s.now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	s.setupExpiredPlan()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupConfig() {
	s.config = config.GetDefaultConfig()
	s.config.Billing.ExpiredPlanID = ExpiredPlanID
	s.config.Billing.DaysTrial = 30
	s.config.Billing.DaysGrace = 3
	s.config.Billing.AdminReportRecipients = nil
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PlanRepo:         NewInMemoryPlanStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.gateway = payment.NewTestGateway()
	s.notifier = NewRecordingDispatcher()
	s.webhookPublisher = NewRecordingWebhookPublisher()
}

func (s *BaseServiceTestSuite) setupExpiredPlan() {
	p := plan.New(s.ctx, "Expired", decimal.Zero, "USD")
	p.ID = ExpiredPlanID
	s.NoError(s.stores.PlanRepo.Create(s.ctx, p))
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.gateway.Reset()
	s.notifier.Clear()
	s.webhookPublisher.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetSubscriptionStore returns the in-memory subscription store with its ledger
func (s *BaseServiceTestSuite) GetSubscriptionStore() *InMemorySubscriptionStore {
	return s.stores.SubscriptionRepo.(*InMemorySubscriptionStore)
}

// GetGateway returns the scripted payment gateway
func (s *BaseServiceTestSuite) GetGateway() *payment.TestGateway {
	return s.gateway
}

// GetNotifier returns the recording notifier
func (s *BaseServiceTestSuite) GetNotifier() *RecordingDispatcher {
	return s.notifier
}

// GetWebhookPublisher returns the test webhook publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() *RecordingWebhookPublisher {
	return s.webhookPublisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// Clock is a time source that follows SetNow and AdvanceDays
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return func() time.Time { return s.now }
}

// SetNow moves the test clock
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// AdvanceDays moves the test clock forward by days
func (s *BaseServiceTestSuite) AdvanceDays(days int) {
	s.now = s.now.AddDate(0, 0, days)
}

// Today is the billing date of the test clock
func (s *BaseServiceTestSuite) Today() time.Time {
	return types.StartOfDay(s.now)
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// CreatePlan stores a monthly plan with the given rate
func (s *BaseServiceTestSuite) CreatePlan(name string, rate decimal.Decimal) *plan.Plan {
	p := plan.New(s.ctx, name, rate, "USD")
	s.Require().NoError(s.stores.PlanRepo.Create(s.ctx, p))
	return p
}

// TestCard is a payment method the test gateway accepts
func (s *BaseServiceTestSuite) TestCard() *types.PaymentMethod {
	return &types.PaymentMethod{
		Token:    "tok_visa",
		Type:     types.PaymentMethodTypeCard,
		Brand:    "visa",
		Last4:    "4242",
		ExpMonth: 12,
		ExpYear:  2030,
	}
}

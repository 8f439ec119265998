package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flexprice/freemium/internal/service"
	"github.com/flexprice/freemium/internal/temporal/activities"
	"github.com/flexprice/freemium/internal/temporal/models"
	"github.com/flexprice/freemium/internal/types"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

// fakeBillingService counts phase calls and fails the phases listed in failing
type fakeBillingService struct {
	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
	sent    *service.BillingReport
}

func newFakeBillingService() *fakeBillingService {
	return &fakeBillingService{calls: map[string]int{}, failing: map[string]bool{}}
}

func (f *fakeBillingService) called(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.failing[name] {
		return errors.New(name + " unavailable")
	}
	return nil
}

func (f *fakeBillingService) RunBilling(ctx context.Context) (*service.BillingReport, error) {
	return nil, errors.New("not used by the workflow")
}

func (f *fakeBillingService) NewReport(ctx context.Context) (context.Context, *service.BillingReport) {
	now := time.Date(2024, time.March, 15, 3, 0, 0, 0, time.UTC)
	return ctx, service.NewBillingReport("RUN-TEST01", types.GetTenantID(ctx), now, now)
}

func (f *fakeBillingService) ProcessNewTransactions(ctx context.Context, report *service.BillingReport) error {
	if err := f.called(models.ActivityProcessNewTransactions); err != nil {
		return err
	}
	report.PaymentsApplied += 2
	return nil
}

func (f *fakeBillingService) FindExpirable(ctx context.Context, report *service.BillingReport) error {
	if err := f.called(models.ActivityFindExpirable); err != nil {
		return err
	}
	report.GraceStarted++
	return nil
}

func (f *fakeBillingService) ExpireElapsed(ctx context.Context, report *service.BillingReport) error {
	if err := f.called(models.ActivityExpireElapsed); err != nil {
		return err
	}
	if types.GetBillingRunID(ctx) != report.RunID {
		return errors.New("run id missing from context")
	}
	report.Expired++
	return nil
}

func (f *fakeBillingService) SendReport(ctx context.Context, report *service.BillingReport) error {
	if err := f.called(models.ActivitySendReport); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *report
	f.sent = &copied
	return nil
}

type BillingCycleWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env     *testsuite.TestWorkflowEnvironment
	billing *fakeBillingService
}

func TestBillingCycleWorkflow(t *testing.T) {
	suite.Run(t, new(BillingCycleWorkflowSuite))
}

func (s *BillingCycleWorkflowSuite) SetupTest() {
	s.billing = newFakeBillingService()
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(BillingCycleWorkflow)
	s.env.RegisterActivity(activities.NewBillingActivities(s.billing))
}

func (s *BillingCycleWorkflowSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *BillingCycleWorkflowSuite) TestRunsEveryPhase() {
	s.env.ExecuteWorkflow(BillingCycleWorkflow, models.BillingCycleInput{TenantID: "tenant_1"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var report service.BillingReport
	s.Require().NoError(s.env.GetWorkflowResult(&report))
	s.Equal("RUN-TEST01", report.RunID)
	s.Equal("tenant_1", report.TenantID)
	s.Equal(2, report.PaymentsApplied)
	s.Equal(1, report.GraceStarted)
	s.Equal(1, report.Expired)
	s.Empty(report.Failures)
	s.False(report.FinishedAt.IsZero())

	s.Require().NotNil(s.billing.sent)
	s.Equal(1, s.billing.sent.Expired)
}

func (s *BillingCycleWorkflowSuite) TestFailedPhaseIsRetriedThenRecorded() {
	s.billing.failing[models.ActivityFindExpirable] = true

	s.env.ExecuteWorkflow(BillingCycleWorkflow, models.BillingCycleInput{})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var report service.BillingReport
	s.Require().NoError(s.env.GetWorkflowResult(&report))
	s.Equal(types.DefaultTenantID, report.TenantID)
	s.Equal(int(models.DefaultActivityOptions.MaximumAttempts), s.billing.calls[models.ActivityFindExpirable])
	s.Equal(1, report.Expired)
	s.Require().Len(report.FailuresIn(service.PhaseExpirable), 1)
	s.Equal(1, s.billing.calls[models.ActivitySendReport])
}

func (s *BillingCycleWorkflowSuite) TestReportFailureDoesNotFailWorkflow() {
	s.billing.failing[models.ActivitySendReport] = true

	s.env.ExecuteWorkflow(BillingCycleWorkflow, models.BillingCycleInput{TenantID: "tenant_1"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.Nil(s.billing.sent)
}

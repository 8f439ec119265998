package service

import (
	"github.com/flexprice/freemium/internal/idempotency"
	"github.com/flexprice/freemium/internal/testutil"
)

func testParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		PlanRepo:         stores.PlanRepo,
		SubRepo:          stores.SubscriptionRepo,
		Gateway:          s.GetGateway(),
		Notifier:         s.GetNotifier(),
		WebhookPublisher: s.GetWebhookPublisher(),
		IdempotencyGen:   idempotency.NewGenerator(),
		Now:              s.Clock(),
	}
}

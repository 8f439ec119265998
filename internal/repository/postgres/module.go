package postgres

import (
	"github.com/flexprice/freemium/internal/cache"
	"go.uber.org/fx"
)

// Module provides the sqlx repositories and the plan cache they share
func Module() fx.Option {
	return fx.Provide(
		fx.Annotate(cache.NewInMemoryCache, fx.As(new(cache.Cache))),
		NewPlanRepository,
		NewSubscriptionRepository,
	)
}

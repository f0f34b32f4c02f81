package di

import (
	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/rollouts"
)

// RolloutsService wraps the rollouts-state publisher.
type RolloutsService struct {
	Publisher *rollouts.Publisher
}

// NewRollouts creates the rollouts publisher over the shared worker pool.
func NewRollouts(i do.Injector) (*RolloutsService, error) {
	poolSvc := do.MustInvoke[*ConcurrencyService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	analytics := do.MustInvokeNamed[credentials.AnalyticsLogger](i, AnalyticsKey)

	return &RolloutsService{
		Publisher: rollouts.New(poolSvc.Pool, analytics, *logSvc.Logger),
	}, nil
}

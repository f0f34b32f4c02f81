package di

import (
	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/workerpool"
)

// ConcurrencyService wraps the shared worker pool for DI. Cache I/O,
// asynchronous metadata persists and listener dispatch all ride this
// pool.
type ConcurrencyService struct {
	Pool *workerpool.Pool
}

// NewConcurrencyService creates the shared worker pool.
func NewConcurrencyService(_ do.Injector) (*ConcurrencyService, error) {
	return &ConcurrencyService{Pool: workerpool.New(0)}, nil
}

// Shutdown implements do.Shutdowner, draining and stopping the pool.
func (s *ConcurrencyService) Shutdown() error {
	s.Pool.Stop()
	return nil
}

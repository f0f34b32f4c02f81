package di

import (
	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/cache"
	"github.com/rconfig/engine/internal/store"
)

// CacheService wraps the three per-slot container caches.
type CacheService struct {
	Activated *cache.Cache
	Fetched   *cache.Cache
	Defaults  *cache.Cache
}

// NewCaches creates the activated, fetched and defaults caches over their
// interned storage handles.
func NewCaches(i do.Injector) (*CacheService, error) {
	storageSvc := do.MustInvoke[*StorageService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	reg := storageSvc.Registry
	log := *logSvc.Logger

	return &CacheService{
		Activated: cache.New(reg.Storage(store.SlotActivated), log),
		Fetched:   cache.New(reg.Storage(store.SlotFetched), log),
		Defaults:  cache.New(reg.Storage(store.SlotDefaults), log),
	}, nil
}

// Shutdown implements do.Shutdowner, closing all three caches.
func (s *CacheService) Shutdown() error {
	_ = s.Activated.Close()
	_ = s.Fetched.Close()
	return s.Defaults.Close()
}

package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/config"
	"github.com/rconfig/engine/pkg/remoteconfig"
)

// EngineService wraps the assembled RemoteConfig facade.
type EngineService struct {
	Engine *remoteconfig.RemoteConfig
}

// NewEngine assembles the RemoteConfig facade from the wired components.
// The minimum fetch interval is read from the live config per call, so a
// hot-reloaded value takes effect without restarting.
func NewEngine(i do.Injector) (*EngineService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)
	metaSvc := do.MustInvoke[*MetadataService](i)
	fetchSvc := do.MustInvoke[*FetchService](i)
	realtimeSvc := do.MustInvoke[*RealtimeService](i)
	rolloutsSvc := do.MustInvoke[*RolloutsService](i)
	poolSvc := do.MustInvoke[*ConcurrencyService](i)

	log := logSvc.Logger
	engine := remoteconfig.New(remoteconfig.Params{
		Activated: cacheSvc.Activated,
		Fetched:   cacheSvc.Fetched,
		Defaults:  cacheSvc.Defaults,
		Fetcher:   fetchSvc.Handler,
		Realtime:  realtimeSvc.Controller,
		Meta:      metaSvc.Store,
		Rollouts:  rolloutsSvc.Publisher,
		Pool:      poolSvc.Pool,
		MinimumFetchInterval: func() time.Duration {
			return cfgSvc.Get().Fetch.GetMinimumFetchInterval()
		},
		Log: *log,
	})

	// The defaults resource loads once at startup and re-applies whenever
	// the engine config hot-reloads, so a changed defaults path or file
	// takes effect without restarting.
	applyDefaults := func(path string) {
		if path == "" {
			return
		}
		if err := engine.SetDefaultsFromFile(context.Background(), path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to load defaults resource")
		}
	}
	applyDefaults(cfgSvc.Get().Defaults.File)
	cfgSvc.OnReload(func(newCfg *config.Config) {
		applyDefaults(newCfg.Defaults.File)
	})

	return &EngineService{Engine: engine}, nil
}

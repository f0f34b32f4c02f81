package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/config"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// It holds a config.Runtime for lock-free reads, allowing in-flight
// operations to finish against the old config while new operations see
// the reloaded one.
type ConfigService struct {
	runtime *config.Runtime
	watcher *config.Watcher
	path    string
}

// Get returns the current configuration via atomic load (lock-free read).
// Components should call Get per operation so they observe the latest
// configuration after hot-reload.
func (c *ConfigService) Get() *config.Config {
	return c.runtime.Get()
}

// Path returns the config file path the service was loaded from.
func (c *ConfigService) Path() string {
	return c.path
}

// OnReload registers a callback invoked with every config the watcher
// reloads from disk. Watcher callbacks run in registration order, so a
// callback registered before StartWatching runs before the runtime
// pointer is swapped, and it also runs for a reloaded config that fails
// validation.
func (c *ConfigService) OnReload(cb func(*config.Config)) {
	if c.watcher == nil {
		return
	}
	c.watcher.OnReload(func(newCfg *config.Config) error {
		cb(newCfg)
		return nil
	})
}

// StartWatching begins watching the config file for changes, swapping the
// runtime pointer on each successful reload. Call after the container is
// fully initialized; cancel ctx to stop watching.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(func(newCfg *config.Config) error {
		if err := newCfg.Validate(); err != nil {
			log.Error().Err(err).Str("path", c.path).Msg("reloaded config invalid, keeping previous")
			return err
		}
		c.runtime.Store(newCfg)
		log.Info().Str("path", c.path).Msg("config hot-reloaded successfully")
		return nil
	})

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig loads the configuration from the config path and creates a
// watcher. The watcher is created but not started; call StartWatching
// after container init.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	svc := &ConfigService{
		runtime: config.NewRuntime(cfg),
		path:    path,
	}

	// Hot-reload is optional; a watcher failure only disables it.
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}

// Package di provides dependency injection using samber/do v2.
// It creates and configures the DI container with all engine services.
package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/credentials"
)

// ConfigPathKey is the named key for the config path string.
const ConfigPathKey = "config.path"

// InstallationKey is the named key for the host-supplied installation
// provider collaborator.
const InstallationKey = "credentials.installation"

// AnalyticsKey is the named key for the optional host-supplied analytics
// logger collaborator.
const AnalyticsKey = "credentials.analytics"

// Container wraps the do.Injector with engine-specific configuration.
type Container struct {
	injector *do.RootScope
}

// Options carries the host-side inputs the container cannot construct
// itself: the config file path and the identity/analytics collaborators.
type Options struct {
	ConfigPath   string
	Installation credentials.InstallationProvider
	// Analytics may be nil; personalization logging is then disabled.
	Analytics credentials.AnalyticsLogger
}

// NewContainer creates and configures the DI container. All service
// providers are registered during container creation; services are built
// lazily on first resolution.
func NewContainer(opts Options) (*Container, error) {
	if opts.Installation == nil {
		return nil, fmt.Errorf("di: installation provider is required")
	}

	injector := do.New()

	do.ProvideNamedValue(injector, ConfigPathKey, opts.ConfigPath)
	do.ProvideNamedValue(injector, InstallationKey, opts.Installation)
	do.ProvideNamedValue(injector, AnalyticsKey, opts.Analytics)

	RegisterSingletons(injector)

	return &Container{injector: injector}, nil
}

// Injector returns the underlying do.Injector for service resolution.
func (c *Container) Injector() *do.RootScope {
	return c.injector
}

// Invoke resolves a service from the container.
func Invoke[T any](c *Container) (T, error) {
	return do.Invoke[T](c.injector)
}

// MustInvoke resolves a service from the container or panics.
// Use this only during application startup where errors are fatal.
func MustInvoke[T any](c *Container) T {
	return do.MustInvoke[T](c.injector)
}

// Shutdown gracefully shuts down all services in reverse order of
// initialization. Services implementing do.Shutdowner have their
// Shutdown method called.
func (c *Container) Shutdown() error {
	report := c.injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("shutdown failed: %s", report.Error())
	}
	return nil
}

// ShutdownWithContext gracefully shuts down with context for timeout control.
func (c *Container) ShutdownWithContext(ctx context.Context) error {
	done := make(chan *do.ShutdownReport, 1)
	go func() {
		done <- c.injector.ShutdownWithContext(ctx)
	}()

	select {
	case report := <-done:
		if report != nil && !report.Succeed {
			return fmt.Errorf("shutdown failed: %s", report.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// HealthCheck verifies the configuration service can be resolved, which
// transitively validates the config file itself.
func (c *Container) HealthCheck() error {
	if _, err := do.Invoke[*ConfigService](c.injector); err != nil {
		return fmt.Errorf("config service unhealthy: %w", err)
	}
	return nil
}

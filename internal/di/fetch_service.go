package di

import (
	"runtime"
	"time"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/backoff"
	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/fetch"
	"github.com/rconfig/engine/internal/version"
	"github.com/rconfig/engine/internal/wire"
)

// FetchService wraps the fetch handler and its circuit breaker.
type FetchService struct {
	Handler *fetch.Handler
	Circuit *backoff.Circuit
}

// NewFetchHandler creates the fetch handler bound to the configured
// endpoint.
func NewFetchHandler(i do.Injector) (*FetchService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	httpSvc := do.MustInvoke[*HTTPClientService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)
	metaSvc := do.MustInvoke[*MetadataService](i)
	installation := do.MustInvokeNamed[credentials.InstallationProvider](i, InstallationKey)
	analytics := do.MustInvokeNamed[credentials.AnalyticsLogger](i, AnalyticsKey)

	cfg := cfgSvc.Get()
	circuit := backoff.NewCircuit("fetch", backoff.CircuitConfig{
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		HalfOpenProbes:   1,
	}, logSvc.Logger)

	endpoint := fetch.Endpoint{
		URL:    wire.FetchURL(cfg.Fetch.BaseURL, cfg.Project.ProjectNumber, cfg.Project.Namespace),
		APIKey: cfg.Project.APIKey,
		AppInstanceInfo: wire.FetchRequestInfo{
			AppID:           cfg.Project.AppID,
			PackageName:     cfg.Project.PackageName,
			AndroidCertSHA1: cfg.Project.AndroidCertSHA1,
			PlatformVersion: runtime.GOOS + "/" + runtime.GOARCH,
			TimeZone:        time.Now().Location().String(),
			SDKVersion:      version.String(),
		},
	}

	handler := fetch.New(
		endpoint,
		httpSvc.Client,
		installation,
		analytics,
		cacheSvc.Fetched,
		metaSvc.Store,
		circuit,
		cfg.Fetch.GetTimeout(),
		*logSvc.Logger,
	)

	return &FetchService{Handler: handler, Circuit: circuit}, nil
}

package di

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/backoff"
	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/realtime"
	"github.com/rconfig/engine/internal/version"
	"github.com/rconfig/engine/internal/wire"
)

// RealtimeService wraps the realtime stream controller. Controller is nil
// when realtime is disabled by configuration.
type RealtimeService struct {
	Controller *realtime.Controller
	Circuit    *backoff.Circuit
}

// NewRealtime creates the realtime stream controller when enabled.
func NewRealtime(i do.Injector) (*RealtimeService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	cfg := cfgSvc.Get()
	if !cfg.Realtime.Enabled {
		return &RealtimeService{}, nil
	}

	logSvc := do.MustInvoke[*LoggerService](i)
	httpSvc := do.MustInvoke[*HTTPClientService](i)
	metaSvc := do.MustInvoke[*MetadataService](i)
	fetchSvc := do.MustInvoke[*FetchService](i)
	installation := do.MustInvokeNamed[credentials.InstallationProvider](i, InstallationKey)

	circuit := backoff.NewCircuit("realtime", backoff.CircuitConfig{
		FailureThreshold: 5,
		OpenDuration:     time.Minute,
		HalfOpenProbes:   1,
	}, logSvc.Logger)

	base := cfg.Realtime.BaseURL
	if base == "" {
		base = cfg.Fetch.BaseURL
	}
	// LastKnownVersionNumber is filled in per connect by the controller
	// from the live metadata store.
	endpoint := realtime.Endpoint{
		URL:    wire.RealtimeURL(base, cfg.Project.ProjectNumber, cfg.Project.Namespace),
		APIKey: cfg.Project.APIKey,
		Info: wire.RealtimeConnectInfo{
			Project:    cfg.Project.ProjectNumber,
			Namespace:  cfg.Project.Namespace,
			AppID:      cfg.Project.AppID,
			SDKVersion: version.String(),
		},
	}

	controller := realtime.New(
		endpoint,
		httpSvc.Client,
		installation,
		metaSvc.Store,
		fetchSvc.Handler,
		circuit,
		*logSvc.Logger,
	)

	return &RealtimeService{Controller: controller, Circuit: circuit}, nil
}

// Shutdown implements do.Shutdowner, stopping the stream task.
func (s *RealtimeService) Shutdown() error {
	if s.Controller != nil {
		s.Controller.Stop()
	}
	return nil
}

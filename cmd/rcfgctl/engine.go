package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/rconfig/engine/internal/di"
	"github.com/rconfig/engine/pkg/remoteconfig"
)

// Environment variables supplying the installation identity. A real host
// application wires its installations subsystem in here; the CLI keeps it
// to two variables.
const (
	envInstallationID    = "RCFGCTL_INSTALLATION_ID"
	envInstallationToken = "RCFGCTL_INSTALLATION_TOKEN"
)

// envInstallation satisfies credentials.InstallationProvider from
// environment variables.
type envInstallation struct{}

func (envInstallation) InstallationID(context.Context) (string, error) {
	id := os.Getenv(envInstallationID)
	if id == "" {
		return "", fmt.Errorf("%s is not set", envInstallationID)
	}
	return id, nil
}

func (envInstallation) Token(context.Context) (*oauth2.Token, error) {
	token := os.Getenv(envInstallationToken)
	if token == "" {
		return nil, fmt.Errorf("%s is not set", envInstallationToken)
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// newEngine builds the DI container and resolves the engine facade.
// Callers must Shutdown the returned container when done.
func newEngine() (*di.Container, *remoteconfig.RemoteConfig, error) {
	container, err := di.NewContainer(di.Options{
		ConfigPath:   configPath(),
		Installation: envInstallation{},
	})
	if err != nil {
		return nil, nil, err
	}

	engineSvc, err := di.Invoke[*di.EngineService](container)
	if err != nil {
		_ = container.Shutdown()
		return nil, nil, err
	}

	return container, engineSvc.Engine, nil
}

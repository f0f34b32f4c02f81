package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rconfig/engine/internal/ro"
	"github.com/rconfig/engine/pkg/remoteconfig"
)

var watchAutoActivate bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream realtime config updates until interrupted",
	Long: `Watch registers a config-update listener, which starts the engine's
realtime stream, and prints each update as it arrives. Press Ctrl-C to
stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAutoActivate, "activate", false,
		"activate each update as it arrives")
	rootCmd.AddCommand(watchCmd)
}

type printingListener struct {
	ctx    context.Context
	engine *remoteconfig.RemoteConfig
}

func (l *printingListener) OnUpdate(update remoteconfig.ConfigUpdate) {
	fmt.Printf("update: %s\n", strings.Join(update.UpdatedKeys, ", "))
	if watchAutoActivate {
		if _, err := l.engine.Activate(l.ctx); err != nil {
			fmt.Fprintf(os.Stderr, "activate failed: %v\n", err)
		}
	}
}

func (l *printingListener) OnError(err error) {
	fmt.Fprintf(os.Stderr, "stream error: %v\n", err)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	container, engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	registration := engine.AddOnConfigUpdateListener(&printingListener{ctx: ctx, engine: engine})
	if registration == nil {
		return fmt.Errorf("realtime is disabled in the config; enable realtime.enabled to watch")
	}
	defer registration.Remove()

	fmt.Println("watching for config updates, Ctrl-C to stop")

	sig, err := ro.WaitForShutdown(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("received %v, shutting down\n", sig)
	return nil
}

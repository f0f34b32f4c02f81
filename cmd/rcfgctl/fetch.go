package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rconfig/engine/internal/fetch"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the latest parameter values from the backend",
	Long: `Fetch consults the backend if the configured minimum fetch interval has
elapsed. Fetched values are staged; run "rcfgctl activate" to make them
visible to lookups.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false,
		"ignore the minimum fetch interval (still subject to backoff)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	container, engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	ctx := cmd.Context()
	var resp fetch.Response
	if fetchForce {
		resp, err = engine.FetchWithInterval(ctx, 0)
	} else {
		resp, err = engine.Fetch(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("status: %s\n", resp.Status)
	fmt.Printf("fetch time: %s\n", resp.FetchTime.Format(time.RFC3339))
	if resp.Container != nil {
		fmt.Printf("parameters: %d\n", len(resp.Container.Configs()))
		fmt.Printf("template version: %d\n", resp.Container.TemplateVersion())
	}
	if resp.ETag != "" {
		fmt.Printf("etag: %s\n", resp.ETag)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Make the most recently fetched values visible to lookups",
	RunE:  runActivate,
}

func init() {
	rootCmd.AddCommand(activateCmd)
}

func runActivate(cmd *cobra.Command, _ []string) error {
	container, engine, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	activated, err := engine.Activate(cmd.Context())
	if err != nil {
		return err
	}
	if activated {
		fmt.Println("activated new configuration")
	} else {
		fmt.Println("nothing to activate")
	}
	return nil
}

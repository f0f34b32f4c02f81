package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rconfig/engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without constructing the engine.
Checks syntax, required fields, and custom-signal limits.`,
	RunE: runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("✗ Config validation failed: %s\n", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Config validation failed: %s\n", err)
		return err
	}

	fmt.Printf("✓ Config valid: %s\n", path)
	return nil
}

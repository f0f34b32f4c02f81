package main

import (
	"context"
	"os"
	"path/filepath"

	"charm.land/fang/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rconfig/engine/internal/version"
)

const defaultConfigFile = "config.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rcfgctl",
	Short: "Inspect and drive a remote-config engine instance",
	Long: `rcfgctl embeds the remote-config engine against a local state directory,
letting you fetch, activate, and inspect parameter values, and watch the
realtime update stream, without a host application.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to config file (default: ./config.yaml, then ~/.config/rcfgctl/config.yaml)")
}

func execute(ctx context.Context) error {
	opts := []fang.Option{fang.WithVersion(version.String())}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		opts = append(opts, fang.WithColorSchemeFunc(fang.AnsiColorScheme))
	}
	return fang.Execute(ctx, rootCmd, opts...)
}

// findConfigFile searches for config.yaml in default locations.
// Priority:
//  1. Current directory (./config.yaml)
//  2. User config directory (~/.config/rcfgctl/config.yaml)
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "rcfgctl", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile // Default, will error if not found
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return findConfigFile()
}

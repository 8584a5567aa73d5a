package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetwear/internal/config"
	"fleetwear/internal/logging"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "fleetwear",
	Short:         "Fleet wear and maintenance-interval service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, nil
}

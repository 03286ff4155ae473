package main

import (
	"fmt"
	"os"

	"github.com/caevv/buildtime/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate buildtime configuration file",
	Long: `Validate the syntax and semantics of a buildtime configuration file.

It checks for:
  - Valid YAML syntax
  - A supported store driver
  - Non-negative retention and lookback days
  - Valid logging format and level

Example:
  buildtime validate --config ./buildtime.yaml`,
	RunE: validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	logger.Info("validating configuration", "path", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", configPath,
		"store_driver", cfg.Store.Driver,
		"store_dir", cfg.Store.Dir,
		"lookback_days", cfg.History.LookbackDays)

	fmt.Fprintf(os.Stdout, "\n✓ Configuration is valid: %s\n", configPath)
	fmt.Fprintf(os.Stdout, "  Store: %s (%s)\n", cfg.Store.Driver, cfg.Store.Dir)
	fmt.Fprintf(os.Stdout, "  Lookback: %d days\n", cfg.History.LookbackDays)
	fmt.Fprintf(os.Stdout, "  Logging: %s, %s -> %s\n", cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)

	return nil
}

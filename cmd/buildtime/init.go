package main

import (
	"fmt"
	"os"

	"github.com/caevv/buildtime/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default settings to the --config path.

Example:
  buildtime init --config ./buildtime.yaml --driver bbolt`,
	RunE: initConfig,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	initCmd.Flags().String("driver", "json", "Store driver to configure (json or bbolt)")
	initCmd.Flags().String("dir", "", "Data directory (default: per-user BuildTimeTracker folder)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := config.NewDefaultConfig()
	cfg.Store.Driver, _ = cmd.Flags().GetString("driver")
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Store.Dir = dir
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return err
	}

	logger.Info("configuration written", "path", configPath, "store_driver", cfg.Store.Driver)
	fmt.Fprintf(os.Stdout, "✓ Wrote %s\n", configPath)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caevv/buildtime/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global logger
	logger = slog.Default()

	// sessionID tags every log record of one invocation.
	sessionID = uuid.NewString()
)

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger = slog.New(logHandler)
	slog.SetDefault(logger)

	os.Exit(execute())
}

// execute runs the root command and returns the process exit status.
func execute() int {
	defer closeLogOutput()

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	logger.Error("command failed", "error", err)
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "buildtime",
	Short: "Track how long your builds take",
	Long: `buildtime records the outcome and duration of every build of a project
and keeps a per-day history of them.

Features:
  - Wraps any build command and times it
  - Per-day counts of successful, failed and cancelled builds
  - Total and average build time per day
  - JSON file or BoltDB storage
  - Interactive history browser`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project name (default: name of the working directory)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})
			logger = slog.New(logHandler)
			slog.SetDefault(logger)
			logger.Debug("debug logging enabled", "session_id", sessionID)
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}

// exitError carries the exit status of a wrapped build back to main.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("build exited with status %d", e.code)
}

// setupSignalHandler creates a context that cancels on SIGINT or SIGTERM
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received interrupt, cancelling build", "signal", sig.String())
		cancel()

		// Force exit if second signal received
		sig = <-sigChan
		logger.Warn("received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}

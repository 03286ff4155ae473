package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caevv/buildtime/internal/buildtimer"
	"github.com/caevv/buildtime/internal/config"
	"github.com/caevv/buildtime/internal/logging"
	"github.com/caevv/buildtime/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// loadConfig reads the --config file and rebuilds the global logger from
// its logging section. --debug overrides the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	}

	cfgLogger, closer, err := logging.NewFromConfig(cfg.Logging.Format, level, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	useLogger(cfgLogger, closer)

	return cfg, nil
}

// logOutput is the output behind the global logger, closed when the logger
// is replaced or the command exits.
var logOutput io.Closer

// useLogger installs l as the global logger and releases the previous
// logger's output.
func useLogger(l *slog.Logger, output io.Closer) {
	closeLogOutput()
	logger = l
	logOutput = output
	slog.SetDefault(l)
}

func closeLogOutput() {
	if logOutput == nil {
		return
	}
	if err := logOutput.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to close log output:", err)
	}
	logOutput = nil
}

// resolveProject returns --project, or the base name of the working
// directory when the flag is empty.
func resolveProject(cmd *cobra.Command) (string, error) {
	project, _ := cmd.Flags().GetString("project")
	project = strings.TrimSpace(project)
	if project != "" {
		return project, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return filepath.Base(wd), nil
}

// openHistory builds the configured backend and wraps it in a HistoryStore.
// The store is not initialized yet.
func openHistory(cfg *config.Config, project string) (*store.HistoryStore, error) {
	backend, err := store.NewBackend(cfg.Store.Driver, cfg.Store.Dir, afero.NewOsFs())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Debug("store initialized",
		"driver", cfg.Store.Driver,
		"location", backend.Location(project))

	return store.NewHistoryStore(backend,
		store.WithLogger(logger),
		store.WithRetentionDays(cfg.History.RetentionDays),
	), nil
}

// session bundles what every build-recording command needs.
type session struct {
	cfg     *config.Config
	project string
	store   *store.HistoryStore
	timer   *buildtimer.Timer
}

// newSession loads config, resolves the project and opens its history,
// falling back to an empty history if the stored one is unreadable.
func newSession(cmd *cobra.Command, out io.Writer) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	project, err := resolveProject(cmd)
	if err != nil {
		return nil, err
	}
	logger = logging.ForProject(logger, project, sessionID)

	hs, err := openHistory(cfg, project)
	if err != nil {
		return nil, err
	}

	timer := buildtimer.New(hs, newConsoleEmitter(out),
		buildtimer.WithLogger(logger),
		buildtimer.WithLookbackDays(cfg.History.LookbackDays))

	if err := timer.Open(project); err != nil {
		hs.Close()
		return nil, err
	}

	return &session{cfg: cfg, project: project, store: hs, timer: timer}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}
}

package main

import (
	"fmt"

	"github.com/caevv/buildtime/internal/logging"
	"github.com/caevv/buildtime/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse build history in a terminal UI",
	Long: `Open an interactive browser over a project's build history.

The history is re-read from storage every few seconds, so builds recorded
by other buildtime processes show up while it is open.

Navigation:
  ↑/↓ or k/j  - Navigate day list
  enter       - Show the builds of the selected day
  esc         - Go back to day list
  g/G         - Jump to top/bottom
  r           - Reload history
  q           - Quit

Example:
  buildtime tui --project api`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Logs on the terminal would corrupt the UI; only file output is kept.
	if cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout" {
		tuiLogger, closer, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, "discard")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		useLogger(tuiLogger, closer)
	}

	project, err := resolveProject(cmd)
	if err != nil {
		return err
	}
	logger = logging.ForProject(logger, project, sessionID)

	hs, err := openHistory(cfg, project)
	if err != nil {
		return err
	}
	defer func() {
		if err := hs.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	if err := hs.Initialize(project); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	model := tui.New(hs, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run and time a build command",
	Long: `Run a build command, time it and record the outcome.

The command inherits this process's standard streams. Exit status 0 is
recorded as a successful build, an interrupt (SIGINT/SIGTERM) as a cancelled
build, anything else as a failed build. buildtime exits with the status of
the wrapped command.

Example:
  buildtime run -- go build ./...
  buildtime run --project api -- make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := setupSignalHandler()

	b := newBuildRunner(s.timer, logger)
	exitCode, err := b.Run(ctx, args)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return &exitError{code: exitCode}
	}
	return nil
}

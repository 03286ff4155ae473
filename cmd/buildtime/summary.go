package main

import (
	"os"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the most recent day's build summary",
	Long: `Print the summary of the most recent day that has builds, as shown at
the start of a session.

Example:
  buildtime summary --project api`,
	RunE: showSummary,
}

func showSummary(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.timer.SessionStarted()
}

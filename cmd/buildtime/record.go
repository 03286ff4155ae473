package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a build that was timed elsewhere",
	Long: `Add a finished build to today's history without running it.

Without --duration the build is recorded as untimed: it counts towards the
day's totals by outcome but not towards total or average build time.

Example:
  buildtime record --outcome succeeded --duration 3m12s
  buildtime record --project api --outcome cancelled`,
	RunE: recordBuild,
}

func init() {
	addRecordFlags(recordCmd)
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("outcome", "o", "", "Build outcome: succeeded, failed or cancelled")
	cmd.Flags().Duration("duration", 0, "How long the build took")
	cmd.MarkFlagRequired("outcome")
}

func recordBuild(cmd *cobra.Command, args []string) error {
	event, err := eventFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	s, err := newSession(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.timer.Record(event)
}

// eventFromFlags builds the event described by --outcome and --duration.
func eventFromFlags(cmd *cobra.Command, now time.Time) (history.Event, error) {
	name, _ := cmd.Flags().GetString("outcome")
	outcome, ok := history.ParseOutcome(name)
	if !ok {
		return history.Event{}, fmt.Errorf("invalid outcome %q (must be succeeded, failed or cancelled)", name)
	}

	if !cmd.Flags().Changed("duration") {
		return history.NewUntimedEvent(now, outcome), nil
	}

	d, _ := cmd.Flags().GetDuration("duration")
	if d < 0 {
		return history.Event{}, fmt.Errorf("--duration must be non-negative")
	}
	return history.NewTimedEvent(now, outcome, d), nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/report"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show per-day build history",
	Long: `Print one row per day with build counts by outcome and timing figures,
newest day first.

Example:
  buildtime history --days 7`,
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().IntP("days", "d", 0, "Only show the last N days (0 shows everything)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	if days < 0 {
		return fmt.Errorf("--days must be non-negative")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	project, err := resolveProject(cmd)
	if err != nil {
		return err
	}

	hs, err := openHistory(cfg, project)
	if err != nil {
		return err
	}
	defer hs.Close()

	// Read-only: an unreadable record is reported, not replaced.
	if err := hs.Initialize(project); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	buckets, err := hs.Buckets()
	if err != nil {
		return err
	}

	renderHistoryTable(os.Stdout, project, filterDays(buckets, days, time.Now()))
	return nil
}

// filterDays drops empty buckets and, when days > 0, buckets older than the
// last days calendar days. buckets must be sorted newest first.
func filterDays(buckets []*history.Bucket, days int, now time.Time) []*history.Bucket {
	out := make([]*history.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Count() == 0 {
			continue
		}
		if days > 0 && history.DaysBetween(b.Date, now) >= days {
			break
		}
		out = append(out, b)
	}
	return out
}

func renderHistoryTable(w io.Writer, project string, buckets []*history.Bucket) {
	if len(buckets) == 0 {
		fmt.Fprintln(w, report.NoHistory)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Build history: " + project)
	t.AppendHeader(table.Row{"Date", "Builds", "Succeeded", "Failed", "Cancelled", "Total", "Average"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	var total report.Summary
	for _, b := range buckets {
		s := report.Summarize(b)

		totalCell, avgCell := "-", "-"
		if s.Timed {
			totalCell = report.Clock(s.Total)
			avgCell = report.HumanDuration(s.Average)
		}
		t.AppendRow(table.Row{
			s.Date.Format("Mon 2006-01-02"),
			s.Count,
			s.Succeeded,
			s.Failed,
			s.Cancelled,
			totalCell,
			avgCell,
		})

		total.Count += s.Count
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.Cancelled += s.Cancelled
		total.Total += s.Total
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d days", len(buckets)),
		total.Count,
		total.Succeeded,
		total.Failed,
		total.Cancelled,
		report.Clock(total.Total),
		"",
	})
	t.Render()
}

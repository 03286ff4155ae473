// Package report turns daily build buckets into human-readable summary lines.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/store"
	"github.com/dustin/go-humanize"
)

// Summary holds the aggregate figures of one day.
type Summary struct {
	Date      time.Time
	Count     int
	Succeeded int
	Failed    int
	Cancelled int
	Total     time.Duration
	Average   time.Duration
	// Timed is false when no build that day carried a duration; Total and
	// Average are zero in that case.
	Timed bool
}

// Summarize computes the aggregates of b.
func Summarize(b *history.Bucket) Summary {
	s := Summary{
		Date:      b.Date,
		Count:     b.Count(),
		Succeeded: b.CountByOutcome(history.OutcomeSucceeded),
		Failed:    b.CountByOutcome(history.OutcomeFailed),
		Cancelled: b.CountByOutcome(history.OutcomeCancelled),
		Total:     b.TotalDuration(),
	}
	s.Average, s.Timed = b.AverageDuration()
	return s
}

// durationMagnitudes drive HumanDuration. Formats carry no label so the
// result reads as a plain span ("3 minutes").
var durationMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "less than a second", DivBy: time.Second},
	{D: 2 * time.Second, Format: "1 second", DivBy: 1},
	{D: time.Minute, Format: "%d seconds", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute", DivBy: 1},
	{D: time.Hour, Format: "%d minutes", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour", DivBy: 1},
	{D: humanize.Day, Format: "%d hours", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day", DivBy: 1},
	{D: humanize.LongTime, Format: "%d days", DivBy: humanize.Day},
}

// HumanDuration renders d as a coarse phrase such as "3 minutes".
func HumanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	var epoch time.Time
	return humanize.CustomRelTime(epoch, epoch.Add(d), "", "", durationMagnitudes)
}

// Clock renders d as zero-padded HH:MM:SS. Hours are not wrapped at 24.
func Clock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// Figures renders the shared tail of every summary line: counts by outcome
// and the timing aggregates.
func Figures(s Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s (%d successful, %d failed, %d cancelled)",
		s.Count, plural(s.Count, "build", "builds"), s.Succeeded, s.Failed, s.Cancelled)

	if !s.Timed {
		sb.WriteString(" with no timing data")
		return sb.String()
	}

	fmt.Fprintf(&sb, " taking a total of %s (%s) with an average of %s (%s) per build",
		HumanDuration(s.Total), Clock(s.Total),
		HumanDuration(s.Average), Clock(s.Average))
	return sb.String()
}

// BuildLine renders the status line emitted when a build finishes: the
// outcome with the elapsed time, followed by today's summary.
func BuildLine(outcome history.Outcome, elapsed time.Duration, timed bool, now time.Time, today Summary) string {
	var sb strings.Builder
	sb.WriteString(now.Format("15:04"))
	sb.WriteString("> ")

	switch outcome {
	case history.OutcomeSucceeded:
		sb.WriteString("Build completed successfully")
	case history.OutcomeCancelled:
		sb.WriteString("Build was cancelled")
	default:
		sb.WriteString("Build failed")
	}

	if timed {
		sb.WriteString(" after ")
		sb.WriteString(HumanDuration(elapsed))
	} else {
		sb.WriteString(" (build time unavailable)")
	}

	sb.WriteString(". Today's build summary: ")
	sb.WriteString(Figures(today))
	return sb.String()
}

// NoHistory is emitted when there is no recent day to summarise.
const NoHistory = "No previous history available."

// DayLine renders the session-start line for the most recent day with data.
func DayLine(l store.Lookup) string {
	if !l.Found || l.Bucket == nil || l.Bucket.Count() == 0 {
		return NoHistory
	}
	return DayHeading(l.DaysAgo, l.Bucket.Date) + ": " + Figures(Summarize(l.Bucket))
}

// DayHeading names a day's summary relative to today: "Today's build
// summary", "Yesterday's build summary", or "Build summary for Monday, January 2".
func DayHeading(daysAgo int, date time.Time) string {
	switch daysAgo {
	case 0:
		return "Today's build summary"
	case 1:
		return "Yesterday's build summary"
	default:
		return "Build summary for " + date.Format("Monday, January 2")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

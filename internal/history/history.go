// Package history defines the build history data model: timed build events
// grouped into daily buckets under a named project record.
package history

import (
	"sort"
	"time"
)

// Outcome is the terminal classification of a build.
// The integer values are part of the persisted format.
type Outcome int

const (
	OutcomeUnknown   Outcome = 0
	OutcomeSucceeded Outcome = 1
	OutcomeFailed    Outcome = 2
	OutcomeCancelled Outcome = 3
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Valid reports whether o may be stored.
func (o Outcome) Valid() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed || o == OutcomeCancelled
}

// ParseOutcome converts a name ("succeeded", "failed", "cancelled") to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "succeeded", "success", "ok":
		return OutcomeSucceeded, true
	case "failed", "failure", "error":
		return OutcomeFailed, true
	case "cancelled", "canceled":
		return OutcomeCancelled, true
	}
	return OutcomeUnknown, false
}

// Event is one completed build observation.
type Event struct {
	// Timestamp is the instant the build finished.
	Timestamp time.Time

	// Outcome is never OutcomeUnknown once stored.
	Outcome Outcome

	// Duration is only meaningful when Timed is true.
	Duration time.Duration

	// Timed is false when no start signal was observed for the build.
	Timed bool
}

// NewTimedEvent returns an event carrying a measured duration.
func NewTimedEvent(at time.Time, outcome Outcome, d time.Duration) Event {
	return Event{Timestamp: at, Outcome: outcome, Duration: d, Timed: true}
}

// NewUntimedEvent returns an event without a duration.
func NewUntimedEvent(at time.Time, outcome Outcome) Event {
	return Event{Timestamp: at, Outcome: outcome}
}

// Bucket holds all build events recorded on one calendar day.
type Bucket struct {
	Date   time.Time
	Events []Event
}

// NewBucket returns an empty bucket for the day containing t.
func NewBucket(t time.Time) *Bucket {
	return &Bucket{Date: DayOf(t), Events: []Event{}}
}

// Count returns the number of events in the bucket.
func (b *Bucket) Count() int {
	return len(b.Events)
}

// CountByOutcome returns the number of events with the given outcome.
func (b *Bucket) CountByOutcome(o Outcome) int {
	n := 0
	for _, e := range b.Events {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// TimedCount returns the number of events that carry a duration.
func (b *Bucket) TimedCount() int {
	n := 0
	for _, e := range b.Events {
		if e.Timed {
			n++
		}
	}
	return n
}

// TotalDuration sums the durations of timed events.
func (b *Bucket) TotalDuration() time.Duration {
	var total time.Duration
	for _, e := range b.Events {
		if e.Timed {
			total += e.Duration
		}
	}
	return total
}

// AverageDuration returns the mean duration over timed events.
// ok is false when no event in the bucket carries a duration.
func (b *Bucket) AverageDuration() (avg time.Duration, ok bool) {
	n := b.TimedCount()
	if n == 0 {
		return 0, false
	}
	return b.TotalDuration() / time.Duration(n), true
}

// Clone returns a deep copy of the bucket.
func (b *Bucket) Clone() *Bucket {
	events := make([]Event, len(b.Events))
	copy(events, b.Events)
	return &Bucket{Date: b.Date, Events: events}
}

// Project is the full history record of one project.
type Project struct {
	Name          string
	RetentionDays int
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Buckets       []*Bucket
}

// NewProject returns an empty history created at now.
func NewProject(name string, now time.Time) *Project {
	return &Project{
		Name:          name,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Buckets:       []*Bucket{},
	}
}

// Bucket returns the bucket for the day containing t, or nil.
func (p *Project) Bucket(t time.Time) *Bucket {
	day := DayOf(t)
	for _, b := range p.Buckets {
		if SameDay(b.Date, day) {
			return b
		}
	}
	return nil
}

// Latest returns the bucket with the greatest date, or nil when empty.
func (p *Project) Latest() *Bucket {
	var latest *Bucket
	for _, b := range p.Buckets {
		if latest == nil || b.Date.After(latest.Date) {
			latest = b
		}
	}
	return latest
}

// Sorted returns the buckets ordered newest first. The slice is new but the
// buckets are shared with p.
func (p *Project) Sorted() []*Bucket {
	out := make([]*Bucket, len(p.Buckets))
	copy(out, p.Buckets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := *p
	c.Buckets = make([]*Bucket, len(p.Buckets))
	for i, b := range p.Buckets {
		c.Buckets[i] = b.Clone()
	}
	return &c
}

// DayOf truncates t to local midnight in t's location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date, compared in
// a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the number of calendar days from earlier to later.
// Civil dates are compared, so DST transitions do not skew the count.
func DaysBetween(earlier, later time.Time) int {
	ey, em, ed := earlier.In(later.Location()).Date()
	ly, lm, ld := later.Date()
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	l := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	return int(l.Sub(e).Hours() / 24)
}

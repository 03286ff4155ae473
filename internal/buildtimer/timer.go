// Package buildtimer coordinates the build lifecycle: it times a build
// between the start and finish signals, records the outcome in the project
// history and emits a summary line.
package buildtimer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/report"
	"github.com/caevv/buildtime/internal/store"
)

// Emitter receives the human-readable lines produced by a Timer.
type Emitter interface {
	EmitSummaryLine(text string)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(text string)

// EmitSummaryLine calls f(text).
func (f EmitterFunc) EmitSummaryLine(text string) { f(text) }

// State is the timing state of a Timer.
type State int

const (
	StateIdle State = iota
	StateTiming
)

func (s State) String() string {
	if s == StateTiming {
		return "timing"
	}
	return "idle"
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock overrides the time source used to measure builds.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the logger for warnings about timing and storage.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithLookbackDays bounds how far back SessionStarted looks for history.
func WithLookbackDays(days int) Option {
	return func(t *Timer) {
		if days > 0 {
			t.lookbackDays = days
		}
	}
}

// Timer moves between Idle and Timing as build signals arrive.
type Timer struct {
	store        *store.HistoryStore
	emitter      Emitter
	logger       *slog.Logger
	now          func() time.Time
	lookbackDays int

	mu        sync.Mutex
	state     State
	startedAt time.Time
}

// New creates an idle Timer recording into hs and reporting to emitter.
func New(hs *store.HistoryStore, emitter Emitter, opts ...Option) *Timer {
	t := &Timer{
		store:        hs,
		emitter:      emitter,
		logger:       slog.Default(),
		now:          time.Now,
		lookbackDays: store.DefaultLookbackDays,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.emitter == nil {
		t.emitter = EmitterFunc(func(string) {})
	}
	return t
}

// Open initializes the history for project. When the stored record cannot
// be read the timer continues with an empty history instead of failing.
func (t *Timer) Open(project string) error {
	err := t.store.Initialize(project)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrStorageUnavailable) {
		return err
	}

	t.logger.Warn("could not read build history, starting with an empty one",
		"project", project,
		"location", t.store.Location(),
		"error", err)

	if err := t.store.Reset(project); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	return nil
}

// State reports whether a build is currently being timed.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NotifyBuildStarted starts timing a build. A second start while timing
// restarts the measurement.
func (t *Timer) NotifyBuildStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTiming {
		t.logger.Debug("build start received while timing, restarting measurement")
	}
	t.state = StateTiming
	t.startedAt = t.now()
}

// NotifyBuildFinished records a finished build and emits a summary line.
// The event carries a duration only when a start signal was seen. A failed
// save is logged and retried on the next build; it is not returned.
func (t *Timer) NotifyBuildFinished(succeeded, cancelled bool) (history.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	finishedAt := t.now()
	outcome := OutcomeOf(succeeded, cancelled)

	var event history.Event
	if t.state == StateTiming {
		elapsed := finishedAt.Sub(t.startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		event = history.NewTimedEvent(finishedAt, outcome, elapsed)
	} else {
		event = history.NewUntimedEvent(finishedAt, outcome)
		t.logger.Warn("build time unavailable, this build won't be added to the cumulative build time",
			"outcome", outcome.String())
	}
	t.state = StateIdle
	t.startedAt = time.Time{}

	return event, t.recordLocked(event)
}

// Record stores a build measured outside the timer, such as one reported
// after the fact, and emits its summary line. The timing state is untouched.
func (t *Timer) Record(event history.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordLocked(event)
}

func (t *Timer) recordLocked(event history.Event) error {
	if err := t.store.Append(event); err != nil {
		return fmt.Errorf("record build: %w", err)
	}

	if err := t.store.Save(); err != nil {
		t.logger.Error("failed to save build history",
			"project", t.store.ProjectName(),
			"location", t.store.Location(),
			"error", err)
	}

	today, err := t.store.TodaysBucket()
	if err != nil {
		return fmt.Errorf("read today's builds: %w", err)
	}

	t.emitter.EmitSummaryLine(report.BuildLine(event.Outcome, event.Duration, event.Timed, event.Timestamp, report.Summarize(today)))
	return nil
}

// SessionStarted emits the summary of the most recent day with builds.
func (t *Timer) SessionStarted() error {
	lookup, err := t.store.MostRecentWithin(t.lookbackDays)
	if err != nil {
		return fmt.Errorf("find recent history: %w", err)
	}
	t.emitter.EmitSummaryLine(report.DayLine(lookup))
	return nil
}

// OutcomeOf maps the host's finish flags to an Outcome. Success wins over
// cancellation.
func OutcomeOf(succeeded, cancelled bool) history.Outcome {
	switch {
	case succeeded:
		return history.OutcomeSucceeded
	case cancelled:
		return history.OutcomeCancelled
	default:
		return history.OutcomeFailed
	}
}

package buildtimer_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caevv/buildtime/internal/buildtimer"
	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/report"
	"github.com/caevv/buildtime/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// recorder collects emitted lines.
type recorder struct{ lines []string }

func (r *recorder) EmitSummaryLine(text string) { r.lines = append(r.lines, text) }

func (r *recorder) last() string {
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

type fixture struct {
	fs    afero.Fs
	clock *fakeClock
	out   *recorder
	logs  *bytes.Buffer
	store *store.HistoryStore
	timer *buildtimer.Timer
}

func newFixture(t *testing.T, fs afero.Fs) *fixture {
	t.Helper()

	f := &fixture{
		fs:    fs,
		clock: &fakeClock{t: time.Date(2024, 6, 3, 9, 30, 0, 0, time.Local)},
		out:   &recorder{},
		logs:  &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f.store = store.NewHistoryStore(store.NewFileBackend(fs, "/data"),
		store.WithClock(f.clock.Now),
		store.WithLogger(logger))
	f.timer = buildtimer.New(f.store, f.out,
		buildtimer.WithClock(f.clock.Now),
		buildtimer.WithLogger(logger))
	return f
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		succeeded, cancelled bool
		want                 history.Outcome
	}{
		{true, false, history.OutcomeSucceeded},
		{true, true, history.OutcomeSucceeded},
		{false, true, history.OutcomeCancelled},
		{false, false, history.OutcomeFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, buildtimer.OutcomeOf(tt.succeeded, tt.cancelled))
	}
}

func TestTimer_TimedBuild(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())
	require.NoError(t, f.timer.Open("app"))

	f.timer.NotifyBuildStarted()
	assert.Equal(t, buildtimer.StateTiming, f.timer.State())

	f.clock.Advance(3 * time.Minute)
	ev, err := f.timer.NotifyBuildFinished(true, false)
	require.NoError(t, err)

	assert.Equal(t, buildtimer.StateIdle, f.timer.State())
	assert.Equal(t, history.OutcomeSucceeded, ev.Outcome)
	assert.True(t, ev.Timed)
	assert.Equal(t, 3*time.Minute, ev.Duration)

	require.Len(t, f.out.lines, 1)
	assert.True(t, strings.HasPrefix(f.out.last(), "09:33> Build completed successfully after 3 minutes."), f.out.last())
	assert.Contains(t, f.out.last(), "1 build (1 successful, 0 failed, 0 cancelled)")

	exists, err := afero.Exists(f.fs, "/data/app.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTimer_FinishWithoutStart(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())
	require.NoError(t, f.timer.Open("app"))

	f.timer.NotifyBuildStarted()
	f.clock.Advance(2 * time.Second)
	_, err := f.timer.NotifyBuildFinished(true, false)
	require.NoError(t, err)

	ev, err := f.timer.NotifyBuildFinished(false, true)
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeCancelled, ev.Outcome)
	assert.False(t, ev.Timed)

	assert.Contains(t, f.out.last(), "Build was cancelled (build time unavailable).")
	assert.Contains(t, f.logs.String(), "build time unavailable")

	today, err := f.store.TodaysBucket()
	require.NoError(t, err)
	s := report.Summarize(today)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1, s.Cancelled)
	assert.Equal(t, 2*time.Second, s.Total)
	assert.Equal(t, 2*time.Second, s.Average)
}

func TestTimer_RestartWhileTiming(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())
	require.NoError(t, f.timer.Open("app"))

	f.timer.NotifyBuildStarted()
	f.clock.Advance(time.Minute)
	f.timer.NotifyBuildStarted()
	f.clock.Advance(10 * time.Second)

	ev, err := f.timer.NotifyBuildFinished(false, false)
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeFailed, ev.Outcome)
	assert.Equal(t, 10*time.Second, ev.Duration)
	assert.Contains(t, f.out.last(), "Build failed after 10 seconds.")
}

func TestTimer_SaveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, afero.NewReadOnlyFs(afero.NewMemMapFs()))
	require.NoError(t, f.timer.Open("app"))

	f.timer.NotifyBuildStarted()
	f.clock.Advance(time.Second)
	_, err := f.timer.NotifyBuildFinished(true, false)
	require.NoError(t, err)

	assert.Len(t, f.out.lines, 1)
	assert.Contains(t, f.logs.String(), "failed to save build history")

	today, err := f.store.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count())
}

func TestTimer_OpenCorruptHistory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/app.json", []byte("{broken"), 0o600))

	f := newFixture(t, fs)
	require.NoError(t, f.timer.Open("app"))
	assert.True(t, f.store.Initialized())
	assert.Contains(t, f.logs.String(), "could not read build history")

	_, err := f.timer.NotifyBuildFinished(true, false)
	require.NoError(t, err)

	matches, err := afero.Glob(fs, "/data/app.json.corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestTimer_OpenInvalidProject(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())
	assert.ErrorIs(t, f.timer.Open(""), store.ErrInvalidProject)
}

func TestTimer_NotOpened(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())

	_, err := f.timer.NotifyBuildFinished(true, false)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	assert.ErrorIs(t, f.timer.SessionStarted(), store.ErrNotInitialized)
	assert.Empty(t, f.out.lines)
}

func TestTimer_SessionStarted(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("no history", func(t *testing.T) {
		f := newFixture(t, fs)
		require.NoError(t, f.timer.Open("app"))
		require.NoError(t, f.timer.SessionStarted())
		assert.Equal(t, report.NoHistory, f.out.last())
	})

	t.Run("yesterday", func(t *testing.T) {
		f := newFixture(t, fs)
		require.NoError(t, f.timer.Open("app"))
		f.timer.NotifyBuildStarted()
		f.clock.Advance(5 * time.Second)
		_, err := f.timer.NotifyBuildFinished(true, false)
		require.NoError(t, err)

		next := newFixture(t, fs)
		next.clock.t = f.clock.t.AddDate(0, 0, 1)
		require.NoError(t, next.timer.Open("app"))
		require.NoError(t, next.timer.SessionStarted())
		assert.True(t, strings.HasPrefix(next.out.last(), "Yesterday's build summary: 1 build"), next.out.last())
	})

	t.Run("beyond lookback", func(t *testing.T) {
		f := newFixture(t, fs)
		f.clock.t = f.clock.t.AddDate(0, 0, 30)
		timer := buildtimer.New(f.store, f.out,
			buildtimer.WithClock(f.clock.Now),
			buildtimer.WithLookbackDays(7))
		require.NoError(t, timer.Open("app"))
		require.NoError(t, timer.SessionStarted())
		assert.Equal(t, report.NoHistory, f.out.last())
	})
}

func TestTimer_Record(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs())
	require.NoError(t, f.timer.Open("app"))

	f.timer.NotifyBuildStarted()
	require.NoError(t, f.timer.Record(history.NewTimedEvent(f.clock.Now(), history.OutcomeFailed, 45*time.Second)))

	assert.Equal(t, buildtimer.StateTiming, f.timer.State())
	assert.Contains(t, f.out.last(), "Build failed after 45 seconds.")

	err := f.timer.Record(history.NewUntimedEvent(f.clock.Now(), history.OutcomeUnknown))
	assert.ErrorIs(t, err, store.ErrInvalidEvent)
	assert.Len(t, f.out.lines, 1)
}

package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newStore(t *testing.T, fs afero.Fs, clock *fakeClock) *store.HistoryStore {
	t.Helper()
	return store.NewHistoryStore(store.NewFileBackend(fs, "/data"), store.WithClock(clock.Now))
}

func TestHistoryStore_InitializeFresh(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}
	s := newStore(t, afero.NewMemMapFs(), clock)

	require.NoError(t, s.Initialize("app"))
	assert.True(t, s.Initialized())

	p, err := s.Project()
	require.NoError(t, err)
	assert.Equal(t, "app", p.Name)
	assert.Empty(t, p.Buckets)
	assert.True(t, p.CreatedAt.Equal(clock.t))
}

func TestHistoryStore_NotInitialized(t *testing.T) {
	s := store.NewHistoryStore(store.NewFileBackend(afero.NewMemMapFs(), "/data"))

	_, err := s.TodaysBucket()
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	_, err = s.MostRecentBucket()
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	err = s.Append(history.NewUntimedEvent(time.Now(), history.OutcomeSucceeded))
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	assert.ErrorIs(t, s.Save(), store.ErrNotInitialized)
	assert.ErrorIs(t, s.Refresh(), store.ErrNotInitialized)

	_, err = s.Buckets()
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestHistoryStore_InitializeCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/app.json", []byte("garbage"), 0o600))

	s := newStore(t, fs, &fakeClock{t: time.Now()})

	err := s.Initialize("app")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.False(t, s.Initialized())

	_, err = s.TodaysBucket()
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestHistoryStore_InvalidProjectName(t *testing.T) {
	s := newStore(t, afero.NewMemMapFs(), &fakeClock{t: time.Now()})

	for _, name := range []string{"", "  ", "../escape", `a\b`, ".."} {
		err := s.Initialize(name)
		assert.ErrorIs(t, err, store.ErrInvalidProject, name)
	}
}

func TestHistoryStore_TodaysBucketIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))

	first, err := s.TodaysBucket()
	require.NoError(t, err)
	clock.t = clock.t.Add(3 * time.Hour)
	second, err := s.TodaysBucket()
	require.NoError(t, err)

	assert.True(t, first.Date.Equal(second.Date))
	assert.Equal(t, first.Events, second.Events)

	buckets, err := s.Buckets()
	require.NoError(t, err)
	assert.Len(t, buckets, 1)
}

func TestHistoryStore_AppendSingleEvent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))

	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, s.Append(history.NewTimedEvent(clock.t, history.OutcomeSucceeded, 1000*time.Millisecond)))

	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count())
	assert.Equal(t, time.Second, today.TotalDuration())
	avg, ok := today.AverageDuration()
	assert.True(t, ok)
	assert.Equal(t, time.Second, avg)
	assert.Equal(t, 1, today.CountByOutcome(history.OutcomeSucceeded))

	p, err := s.Project()
	require.NoError(t, err)
	assert.True(t, p.LastUpdatedAt.Equal(clock.t))
}

func TestHistoryStore_AppendAggregatesOverDay(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))

	durations := []time.Duration{3 * time.Second, 0, 9 * time.Second, 0, 6 * time.Second}
	var sum time.Duration
	var timed int
	for i, d := range durations {
		clock.t = clock.t.Add(time.Hour)
		e := history.NewTimedEvent(clock.t, history.OutcomeSucceeded, d)
		if i%2 == 1 {
			e = history.NewUntimedEvent(clock.t, history.OutcomeFailed)
		} else {
			sum += d
			timed++
		}
		require.NoError(t, s.Append(e))
	}

	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, len(durations), today.Count())
	assert.Equal(t, sum, today.TotalDuration())
	avg, ok := today.AverageDuration()
	require.True(t, ok)
	assert.Equal(t, sum/time.Duration(timed), avg)
}

func TestHistoryStore_AppendRejectsInvalidEvents(t *testing.T) {
	s := newStore(t, afero.NewMemMapFs(), &fakeClock{t: time.Now()})
	require.NoError(t, s.Initialize("app"))

	err := s.Append(history.Event{Timestamp: time.Now()})
	assert.ErrorIs(t, err, store.ErrInvalidEvent)

	err = s.Append(history.NewTimedEvent(time.Now(), history.OutcomeSucceeded, -time.Second))
	assert.ErrorIs(t, err, store.ErrInvalidEvent)
}

func TestHistoryStore_AppendRollsOverDays(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 23, 30, 0, 0, time.Local)}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))

	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))
	clock.t = clock.t.Add(time.Hour)
	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))

	buckets, err := s.Buckets()
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, 2, buckets[0].Date.Day())
	assert.Equal(t, 1, buckets[1].Date.Day())
}

func TestHistoryStore_MostRecentBucket(t *testing.T) {
	today := time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)
	clock := &fakeClock{t: today}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))

	l, err := s.MostRecentBucket()
	require.NoError(t, err)
	assert.False(t, l.Found)
	assert.Nil(t, l.Bucket)

	for _, offset := range []int{-5, -1, 0} {
		clock.t = today.AddDate(0, 0, offset)
		require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))
	}
	clock.t = today

	l, err = s.MostRecentBucket()
	require.NoError(t, err)
	require.True(t, l.Found)
	assert.Equal(t, 0, l.DaysAgo)
	assert.True(t, l.Bucket.Date.Equal(history.DayOf(today)))
}

func TestHistoryStore_MostRecentDaysAgo(t *testing.T) {
	today := time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)
	clock := &fakeClock{t: today.AddDate(0, 0, -3)}
	s := newStore(t, afero.NewMemMapFs(), clock)
	require.NoError(t, s.Initialize("app"))
	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeFailed)))

	clock.t = today
	l, err := s.MostRecentBucket()
	require.NoError(t, err)
	require.True(t, l.Found)
	assert.Equal(t, 3, l.DaysAgo)

	l, err = s.MostRecentWithin(3)
	require.NoError(t, err)
	assert.False(t, l.Found, "bucket exactly at the bound is outside the window")

	l, err = s.MostRecentWithin(4)
	require.NoError(t, err)
	assert.True(t, l.Found)
}

func TestHistoryStore_SaveAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}

	s1 := newStore(t, fs, clock)
	require.NoError(t, s1.Initialize("app"))
	require.NoError(t, s1.Append(history.NewTimedEvent(clock.t, history.OutcomeSucceeded, 2*time.Second)))
	require.NoError(t, s1.Append(history.NewUntimedEvent(clock.t, history.OutcomeCancelled)))
	require.NoError(t, s1.Save())

	s2 := newStore(t, fs, clock)
	require.NoError(t, s2.Initialize("app"))

	today, err := s2.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 2, today.Count())
	assert.Equal(t, 2*time.Second, today.TotalDuration())
	assert.Equal(t, 1, today.CountByOutcome(history.OutcomeCancelled))
}

func TestHistoryStore_RefreshDiscardsUnsaved(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}
	s := newStore(t, fs, clock)
	require.NoError(t, s.Initialize("app"))

	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))
	require.NoError(t, s.Save())
	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeFailed)))

	require.NoError(t, s.Refresh())

	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count())
	assert.Equal(t, 0, today.CountByOutcome(history.OutcomeFailed))
}

// failingBackend loads nothing and refuses to save.
type failingBackend struct {
	store.Backend
	saves int
}

func (b *failingBackend) Load(string) (*history.Project, error) { return nil, store.ErrRecordNotFound }
func (b *failingBackend) Save(string, *history.Project) error {
	b.saves++
	return errors.New("disk full")
}
func (b *failingBackend) Location(p string) string { return "/dev/full/" + p }

func TestHistoryStore_SaveFailureKeepsState(t *testing.T) {
	backend := &failingBackend{}
	s := store.NewHistoryStore(backend)
	require.NoError(t, s.Initialize("app"))
	require.NoError(t, s.Append(history.NewUntimedEvent(time.Now(), history.OutcomeSucceeded)))

	err := s.Save()
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Equal(t, 1, backend.saves)

	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count())
}

func TestHistoryStore_ResetQuarantinesCorruptRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/app.json", []byte("garbage"), 0o600))
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)}
	s := newStore(t, fs, clock)

	require.ErrorIs(t, s.Initialize("app"), store.ErrStorageUnavailable)
	require.NoError(t, s.Reset("app"))
	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))
	require.NoError(t, s.Save())

	matches, err := afero.Glob(fs, "/data/app.json.corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	require.NoError(t, s.Initialize("app"))
	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count())
}

func TestHistoryStore_ConcurrentAppends(t *testing.T) {
	s := newStore(t, afero.NewMemMapFs(), &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)})
	require.NoError(t, s.Initialize("app"))

	done := make(chan error)
	for i := 0; i < 10; i++ {
		go func() {
			done <- s.Append(history.NewUntimedEvent(time.Now(), history.OutcomeSucceeded))
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	today, err := s.TodaysBucket()
	require.NoError(t, err)
	assert.Equal(t, 10, today.Count())
}

func TestHistoryStore_SaveUsesOpenedProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := &fakeClock{t: time.Date(2024, 6, 3, 10, 0, 0, 0, time.Local)}

	other := history.NewProject("other", clock.t)
	may := history.NewBucket(time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local))
	may.Events = []history.Event{history.NewTimedEvent(may.Date, history.OutcomeSucceeded, time.Minute)}
	other.Buckets = []*history.Bucket{may}
	require.NoError(t, store.NewFileBackend(fs, "/data").Save("other", other))

	// app.json is a copy of another project's record.
	copied, err := afero.ReadFile(fs, "/data/other.json")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/data/app.json", copied, 0o600))

	s := newStore(t, fs, clock)
	require.NoError(t, s.Initialize("app"))
	p, err := s.Project()
	require.NoError(t, err)
	assert.Equal(t, "app", p.Name)

	require.NoError(t, s.Append(history.NewTimedEvent(clock.t, history.OutcomeFailed, time.Second)))
	require.NoError(t, s.Save())

	untouched, err := store.NewFileBackend(fs, "/data").Load("other")
	require.NoError(t, err)
	require.Len(t, untouched.Buckets, 1)
	assert.Equal(t, 1, untouched.Buckets[0].Count())

	saved, err := store.NewFileBackend(fs, "/data").Load("app")
	require.NoError(t, err)
	assert.Equal(t, "app", saved.Name)
	assert.Len(t, saved.Buckets, 2)
}

func TestHistoryStore_StoredNameCannotEscapeDataDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := &fakeClock{t: time.Date(2024, 6, 3, 10, 0, 0, 0, time.Local)}

	doc := `{"projectName":"../escaped","retentionDays":0,"lastUpdatedAt":"2024-06-01T10:00:00Z","createdAt":"2024-06-01T10:00:00Z","buckets":[]}`
	require.NoError(t, afero.WriteFile(fs, "/data/evil.json", []byte(doc), 0o600))

	s := newStore(t, fs, clock)
	require.NoError(t, s.Initialize("evil"))
	require.NoError(t, s.Append(history.NewUntimedEvent(clock.t, history.OutcomeSucceeded)))
	require.NoError(t, s.Save())

	escaped, err := afero.Exists(fs, "/escaped.json")
	require.NoError(t, err)
	assert.False(t, escaped)

	saved, err := afero.ReadFile(fs, "/data/evil.json")
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"projectName": "evil"`)
}

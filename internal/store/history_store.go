package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/caevv/buildtime/internal/history"
)

// DefaultLookbackDays bounds MostRecentWithin when no limit is configured.
const DefaultLookbackDays = 100

// Lookup is the result of a most-recent-day query.
type Lookup struct {
	// Bucket is a copy of the stored bucket; nil when Found is false.
	Bucket *history.Bucket

	// DaysAgo counts calendar days between the bucket's date and today
	// (0 = today, 1 = yesterday).
	DaysAgo int

	// Found is false when there is no bucket to report.
	Found bool
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithClock overrides the time source used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *HistoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *HistoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetentionDays sets the retention value written into new records.
// Retention is recorded only; buckets are never pruned.
func WithRetentionDays(days int) Option {
	return func(s *HistoryStore) {
		s.retentionDays = days
	}
}

// HistoryStore owns the in-memory history of one project for a session:
// Initialize, any number of Appends, and Save.
type HistoryStore struct {
	backend       Backend
	now           func() time.Time
	logger        *slog.Logger
	retentionDays int

	mu          sync.RWMutex
	project     string
	record      *history.Project
	initialized bool
	// quarantine is set by Reset; the stored record is moved aside before the
	// next Save replaces it.
	quarantine bool
}

// NewHistoryStore creates an uninitialized store over backend.
func NewHistoryStore(backend Backend, opts ...Option) *HistoryStore {
	s := &HistoryStore{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the record for project. A missing record yields a fresh,
// empty history. An unreadable record leaves the store uninitialized and
// returns an error wrapping ErrStorageUnavailable.
func (s *HistoryStore) Initialize(project string) error {
	if err := ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %q", err, project)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initializeLocked(project)
}

func (s *HistoryStore) initializeLocked(project string) error {
	s.project = project
	s.quarantine = false

	record, err := s.backend.Load(project)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		s.record = s.freshRecord(project)
		s.logger.Debug("no stored history, starting fresh",
			"project", project,
			"location", s.backend.Location(project))
	case err != nil:
		s.record = nil
		s.initialized = false
		return fmt.Errorf("%w: load %s: %w", ErrStorageUnavailable, project, err)
	default:
		if record.Name != "" && record.Name != project {
			s.logger.Warn("stored history names another project, adopting it for this one",
				"project", project,
				"stored_name", record.Name,
				"location", s.backend.Location(project))
		}
		// The record is always keyed by the name it was loaded under.
		record.Name = project
		s.record = record
		s.logger.Debug("history loaded",
			"project", project,
			"buckets", len(record.Buckets),
			"location", s.backend.Location(project))
	}

	s.initialized = true
	return nil
}

// Reset initializes the store with a fresh, empty history without reading
// storage. Any stored record is moved aside before the next Save.
func (s *HistoryStore) Reset(project string) error {
	if err := ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %q", err, project)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.project = project
	s.record = s.freshRecord(project)
	s.initialized = true
	s.quarantine = true
	return nil
}

// Refresh reloads the record for the current project, discarding unsaved
// in-memory changes.
func (s *HistoryStore) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	return s.initializeLocked(s.project)
}

// Initialized reports whether the store holds a loaded record.
func (s *HistoryStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// ProjectName returns the name passed to the last Initialize or Reset.
func (s *HistoryStore) ProjectName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// Location describes where the current project's record is persisted.
func (s *HistoryStore) Location() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Location(s.project)
}

// TodaysBucket returns today's bucket, inserting an empty one into the
// in-memory history if none exists yet. The returned bucket is a copy.
func (s *HistoryStore) TodaysBucket() (*history.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.todayLocked().Clone(), nil
}

func (s *HistoryStore) todayLocked() *history.Bucket {
	now := s.now()
	if b := s.record.Bucket(now); b != nil {
		return b
	}
	b := history.NewBucket(now)
	s.record.Buckets = append(s.record.Buckets, b)
	return b
}

// MostRecentBucket returns the bucket with the latest date. Found is false
// when the history has no buckets.
func (s *HistoryStore) MostRecentBucket() (Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Lookup{}, ErrNotInitialized
	}

	latest := s.record.Latest()
	if latest == nil {
		return Lookup{}, nil
	}

	daysAgo := history.DaysBetween(latest.Date, s.now())
	if daysAgo < 0 {
		// Dated in the future; treat as today.
		daysAgo = 0
	}
	return Lookup{Bucket: latest.Clone(), DaysAgo: daysAgo, Found: true}, nil
}

// MostRecentWithin is MostRecentBucket restricted to the last maxDays
// calendar days, today included. maxDays <= 0 uses DefaultLookbackDays.
func (s *HistoryStore) MostRecentWithin(maxDays int) (Lookup, error) {
	if maxDays <= 0 {
		maxDays = DefaultLookbackDays
	}

	l, err := s.MostRecentBucket()
	if err != nil || !l.Found {
		return l, err
	}
	if l.DaysAgo >= maxDays {
		return Lookup{}, nil
	}
	return l, nil
}

// Append adds e to today's bucket and bumps the record's update time.
// Nothing is persisted until Save.
func (s *HistoryStore) Append(e history.Event) error {
	if !e.Outcome.Valid() {
		return fmt.Errorf("%w: outcome %s", ErrInvalidEvent, e.Outcome)
	}
	if e.Timed && e.Duration < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidEvent, e.Duration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	b := s.todayLocked()
	b.Events = append(b.Events, e)
	s.record.LastUpdatedAt = s.now()
	return nil
}

// Save persists the whole history. On failure the in-memory state is kept
// and the returned error wraps ErrStorageUnavailable.
func (s *HistoryStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if s.quarantine {
		if err := s.backend.Quarantine(s.project); err != nil {
			return fmt.Errorf("%w: quarantine %s: %w", ErrStorageUnavailable, s.project, err)
		}
		s.logger.Warn("previous history record moved aside",
			"project", s.project,
			"location", s.backend.Location(s.project))
		s.quarantine = false
	}

	if err := s.backend.Save(s.project, s.record); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStorageUnavailable, s.project, err)
	}

	s.logger.Debug("history saved",
		"project", s.project,
		"buckets", len(s.record.Buckets),
		"location", s.backend.Location(s.project))
	return nil
}

// Project returns a deep copy of the in-memory history.
func (s *HistoryStore) Project() (*history.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.record.Clone(), nil
}

// Buckets returns copies of all buckets, newest first.
func (s *HistoryStore) Buckets() ([]*history.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	sorted := s.record.Sorted()
	out := make([]*history.Bucket, len(sorted))
	for i, b := range sorted {
		out[i] = b.Clone()
	}
	return out, nil
}

// Close releases the backend.
func (s *HistoryStore) Close() error {
	return s.backend.Close()
}

func (s *HistoryStore) freshRecord(project string) *history.Project {
	p := history.NewProject(project, s.now())
	p.RetentionDays = s.retentionDays
	return p
}

package tui

import (
	"log/slog"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/caevv/buildtime/internal/report"
	"github.com/caevv/buildtime/internal/store"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// refreshInterval is how often the history is re-read from storage.
const refreshInterval = 5 * time.Second

// Model holds the state for the history browser.
type Model struct {
	store   *store.HistoryStore
	project string
	logger  *slog.Logger
	now     func() time.Time

	// UI state
	viewMode     ViewMode
	days         []DayState
	selectedDay  int
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	errorMessage string

	// Totals across all loaded days
	totalBuilds int
	succeeded   int
	failed      int
	cancelled   int
	totalTime   time.Duration
}

// DayState is one row of the day list.
type DayState struct {
	Bucket  *history.Bucket
	Summary report.Summary
	DaysAgo int
}

// New creates a history browser over an initialized store.
func New(st *store.HistoryStore, logger *slog.Logger) Model {
	m := Model{
		store:   st,
		project: st.ProjectName(),
		logger:  logger,
		now:     time.Now,
	}
	m.loadDays()
	return m
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// tickMsg is sent on a regular interval to reload the history.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData re-reads the record from storage, then rebuilds the day list.
// A failed read keeps the previously loaded days on screen.
func (m *Model) refreshData() {
	if err := m.store.Initialize(m.project); err != nil {
		m.logger.Warn("failed to reload history", "project", m.project, "error", err)
		m.errorMessage = err.Error()
		return
	}
	m.errorMessage = ""
	m.loadDays()
}

// loadDays rebuilds the day list and totals from the in-memory history.
func (m *Model) loadDays() {
	buckets, err := m.store.Buckets()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}

	now := m.now()
	m.days = make([]DayState, 0, len(buckets))
	m.totalBuilds, m.succeeded, m.failed, m.cancelled = 0, 0, 0, 0
	m.totalTime = 0

	for _, b := range buckets {
		if b.Count() == 0 {
			continue
		}
		s := report.Summarize(b)
		daysAgo := history.DaysBetween(b.Date, now)
		if daysAgo < 0 {
			daysAgo = 0
		}
		m.days = append(m.days, DayState{Bucket: b, Summary: s, DaysAgo: daysAgo})

		m.totalBuilds += s.Count
		m.succeeded += s.Succeeded
		m.failed += s.Failed
		m.cancelled += s.Cancelled
		m.totalTime += s.Total
	}

	if m.selectedDay >= len(m.days) {
		m.selectedDay = max(len(m.days)-1, 0)
	}
	if len(m.days) == 0 && m.viewMode == ViewModeDetail {
		m.viewMode = ViewModeList
	}
	m.lastUpdate = now
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}

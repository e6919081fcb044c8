package usage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestGovernor(t *testing.T, daily, weekly int) (*Governor, *fakeClock, string) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 11, 18, 10, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "usage.json")
	g := New(Options{Path: path, MaxDailyCalls: daily, MaxWeeklyCalls: weekly, Now: clk.Now})
	return g, clk, path
}

func TestDailyLimitReached(t *testing.T) {
	g, _, _ := newTestGovernor(t, 3, 100)
	for i := 0; i < 3; i++ {
		ok, _ := g.CanMakeCall()
		require.True(t, ok, "call %d", i)
		require.True(t, g.RecordCall())
	}
	ok, reason := g.CanMakeCall()
	assert.False(t, ok)
	assert.Equal(t, "Daily limit reached (3 calls). Resets tomorrow.", reason)

	var qe *QuotaExceededError
	require.True(t, errors.As(g.Check(), &qe))
	assert.Equal(t, reason, qe.Error())
}

func TestCallsOnAnotherDayDoNotCount(t *testing.T) {
	g, clk, _ := newTestGovernor(t, 2, 100)
	g.RecordCall()
	g.RecordCall()
	ok, _ := g.CanMakeCall()
	require.False(t, ok)

	clk.t = clk.t.AddDate(0, 0, 1)
	ok, _ = g.CanMakeCall()
	assert.True(t, ok)
	s := g.Stats()
	assert.Equal(t, 0, s.DailyCalls)
	assert.Equal(t, 2, s.WeeklyCalls, "same ISO week")
}

func TestWeeklyLimitReached(t *testing.T) {
	g, clk, _ := newTestGovernor(t, 10, 3)
	for i := 0; i < 3; i++ {
		g.RecordCall()
		clk.t = clk.t.AddDate(0, 0, 1)
	}
	ok, reason := g.CanMakeCall()
	assert.False(t, ok)
	assert.Equal(t, "Weekly limit reached (3 calls). Resets next week.", reason)

	// 2024-11-25 is the Monday of the next ISO week
	clk.t = time.Date(2024, 11, 25, 9, 0, 0, 0, time.UTC)
	ok, _ = g.CanMakeCall()
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	g, _, _ := newTestGovernor(t, 10, 50)
	for i := 0; i < 4; i++ {
		g.RecordCall()
	}
	s := g.Stats()
	assert.Equal(t, 4, s.DailyCalls)
	assert.Equal(t, 6, s.DailyRemaining)
	assert.Equal(t, 46, s.WeeklyRemaining)
	assert.InDelta(t, 0.004, s.EstimatedCostWeek, 1e-12)
	assert.InDelta(t, 0.016, s.EstimatedCostMonth, 1e-12)
	assert.InDelta(t, 40.0, s.DailyPercent(), 1e-9)
}

func TestLedgerPersistsAcrossInstances(t *testing.T) {
	g, clk, path := newTestGovernor(t, 10, 50)
	g.RecordCall()
	g.RecordCall()

	other := New(Options{Path: path, Now: clk.Now})
	assert.Equal(t, 2, other.Stats().DailyCalls)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"2024-11-18": 2`)
	assert.Contains(t, string(b), `"2024-W47": 2`)
}

func TestCorruptLedgerResetsToEmpty(t *testing.T) {
	g, _, path := newTestGovernor(t, 10, 50)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	ok, _ := g.CanMakeCall()
	assert.True(t, ok)
	assert.True(t, g.RecordCall())
	assert.Equal(t, 1, g.Stats().DailyCalls)
}

func TestUnwritableLedgerFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	clk := &fakeClock{t: time.Date(2024, 11, 18, 10, 0, 0, 0, time.UTC)}
	// the parent "directory" is a regular file, so writes fail
	g := New(Options{Path: filepath.Join(blocker, "usage.json"), MaxDailyCalls: 1, Now: clk.Now})

	assert.False(t, g.RecordCall())
	ok, _ := g.CanMakeCall()
	assert.False(t, ok, "in-memory count still enforces the limit")
}

func TestResets(t *testing.T) {
	g, _, _ := newTestGovernor(t, 10, 50)
	g.RecordCall()
	g.ResetDaily()
	s := g.Stats()
	assert.Equal(t, 0, s.DailyCalls)
	assert.Equal(t, 1, s.WeeklyCalls)
	g.ResetWeekly()
	assert.Equal(t, 0, g.Stats().WeeklyCalls)
}

func TestWeekKeyIsISO(t *testing.T) {
	assert.Equal(t, "2024-W47", WeekKey(time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-W01", WeekKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-11-18", DayKey(time.Date(2024, 11, 18, 23, 59, 0, 0, time.UTC)))
}

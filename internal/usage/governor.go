package usage

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// Defaults applied when a limit is not configured.
const (
	DefaultMaxDailyCalls  = 1000
	DefaultMaxWeeklyCalls = 5000
	// DefaultCostPerCall is the estimated USD cost of one answered question.
	DefaultCostPerCall = 0.001
	// WeeksPerMonth projects weekly cost to a monthly estimate.
	WeeksPerMonth = 4
)

// Ledger is the persisted call-count document.
type Ledger struct {
	Daily  map[string]int `json:"daily"`
	Weekly map[string]int `json:"weekly"`
}

func emptyLedger() *Ledger {
	return &Ledger{Daily: map[string]int{}, Weekly: map[string]int{}}
}

// QuotaExceededError is returned when a question is refused by the governor.
type QuotaExceededError struct {
	Reason string
}

func (e *QuotaExceededError) Error() string { return e.Reason }

// Stats is a point-in-time view of usage against the limits.
type Stats struct {
	DailyCalls         int     `json:"daily_calls"`
	WeeklyCalls        int     `json:"weekly_calls"`
	DailyRemaining     int     `json:"daily_remaining"`
	WeeklyRemaining    int     `json:"weekly_remaining"`
	DailyLimit         int     `json:"daily_limit"`
	WeeklyLimit        int     `json:"weekly_limit"`
	EstimatedCostWeek  float64 `json:"estimated_cost_week"`
	EstimatedCostMonth float64 `json:"estimated_cost_month"`
}

// DailyPercent is today's usage as a percentage of the daily limit.
func (s Stats) DailyPercent() float64 {
	if s.DailyLimit <= 0 {
		return 0
	}
	return float64(s.DailyCalls) / float64(s.DailyLimit) * 100
}

// Options configures a Governor.
type Options struct {
	Path           string
	MaxDailyCalls  int
	MaxWeeklyCalls int
	CostPerCall    float64
	// Now overrides the clock; defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// Governor enforces daily and weekly call quotas backed by a JSON ledger.
// Counts only grow, except through ResetDaily and ResetWeekly. The ledger is
// re-read on every operation so separate processes observe each other's
// calls; the mutex serializes read-modify-write within one process.
// Without a path, or once a write has failed, counts are kept in memory.
type Governor struct {
	mu   sync.Mutex
	opts Options
	log  *zap.Logger
	mem  *Ledger
}

// New returns a Governor; zero limits fall back to the defaults.
func New(opts Options) *Governor {
	if opts.MaxDailyCalls <= 0 {
		opts.MaxDailyCalls = DefaultMaxDailyCalls
	}
	if opts.MaxWeeklyCalls <= 0 {
		opts.MaxWeeklyCalls = DefaultMaxWeeklyCalls
	}
	if opts.CostPerCall <= 0 {
		opts.CostPerCall = DefaultCostPerCall
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Governor{opts: opts, log: log.Named("usage")}
}

// DayKey is the ledger key for t's calendar day.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }

// WeekKey is the ledger key for t's ISO week, e.g. "2024-W47".
func WeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// CanMakeCall reports whether another call fits in today's and this week's
// quota. When it does not, reason says which limit was hit.
func (g *Governor) CanMakeCall() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.load()
	now := g.opts.Now()
	if l.Daily[DayKey(now)] >= g.opts.MaxDailyCalls {
		return false, fmt.Sprintf("Daily limit reached (%d calls). Resets tomorrow.", g.opts.MaxDailyCalls)
	}
	if l.Weekly[WeekKey(now)] >= g.opts.MaxWeeklyCalls {
		return false, fmt.Sprintf("Weekly limit reached (%d calls). Resets next week.", g.opts.MaxWeeklyCalls)
	}
	return true, "OK"
}

// Check is CanMakeCall as an error.
func (g *Governor) Check() error {
	if ok, reason := g.CanMakeCall(); !ok {
		return &QuotaExceededError{Reason: reason}
	}
	return nil
}

// RecordCall counts one call against today and this week. It reports whether
// the ledger was persisted.
func (g *Governor) RecordCall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.load()
	now := g.opts.Now()
	l.Daily[DayKey(now)]++
	l.Weekly[WeekKey(now)]++
	return g.save(l)
}

// Stats returns current counts, remaining quota and projected cost.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.load()
	now := g.opts.Now()
	s := Stats{
		DailyCalls:  l.Daily[DayKey(now)],
		WeeklyCalls: l.Weekly[WeekKey(now)],
		DailyLimit:  g.opts.MaxDailyCalls,
		WeeklyLimit: g.opts.MaxWeeklyCalls,
	}
	s.DailyRemaining = max(0, s.DailyLimit-s.DailyCalls)
	s.WeeklyRemaining = max(0, s.WeeklyLimit-s.WeeklyCalls)
	s.EstimatedCostWeek = float64(s.WeeklyCalls) * g.opts.CostPerCall
	s.EstimatedCostMonth = s.EstimatedCostWeek * WeeksPerMonth
	return s
}

// ResetDaily clears today's count.
func (g *Governor) ResetDaily() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.load()
	delete(l.Daily, DayKey(g.opts.Now()))
	return g.save(l)
}

// ResetWeekly clears this week's count.
func (g *Governor) ResetWeekly() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.load()
	delete(l.Weekly, WeekKey(g.opts.Now()))
	return g.save(l)
}

// load reads the ledger; a missing or corrupt file yields an empty one.
func (g *Governor) load() *Ledger {
	if g.opts.Path == "" || g.mem != nil {
		if g.mem == nil {
			g.mem = emptyLedger()
		}
		return g.mem
	}
	l := emptyLedger()
	if _, err := utils.ReadJSONFile(g.opts.Path, l); err != nil {
		g.log.Warn("usage ledger unreadable, starting empty", zap.String("path", g.opts.Path), zap.Error(err))
		return emptyLedger()
	}
	if l.Daily == nil {
		l.Daily = map[string]int{}
	}
	if l.Weekly == nil {
		l.Weekly = map[string]int{}
	}
	return l
}

func (g *Governor) save(l *Ledger) bool {
	if g.opts.Path == "" || g.mem != nil {
		g.mem = l
		return false
	}
	if err := utils.WriteJSONFile(g.opts.Path, l); err != nil {
		g.log.Warn("usage ledger not saved, keeping counts in memory", zap.String("path", g.opts.Path), zap.Error(err))
		g.mem = l
		return false
	}
	return true
}

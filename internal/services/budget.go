package services

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"
)

// BudgetConfig tunes the credit governor. Zero values take defaults.
type BudgetConfig struct {
	DailyCredits    int // base daily allotment before remote adjustment
	MinDailyCredits int // dynamic allotment clamp, lower bound
	MaxDailyCredits int // dynamic allotment clamp, upper bound

	OperatingStartHour int // inclusive, local time
	OperatingEndHour   int // exclusive, local time

	MinScanInterval time.Duration
	MaxScanInterval time.Duration

	// EstCreditsPerCycle is how many credits an average scan cycle
	// burns; used to spread the remaining budget over remaining hours.
	EstCreditsPerCycle int
}

func (c *BudgetConfig) applyDefaults() {
	if c.DailyCredits <= 0 {
		c.DailyCredits = 500
	}
	if c.MinDailyCredits <= 0 {
		c.MinDailyCredits = 100
	}
	if c.MaxDailyCredits <= 0 {
		c.MaxDailyCredits = 1000
	}
	if c.OperatingEndHour <= c.OperatingStartHour {
		c.OperatingStartHour = 8
		c.OperatingEndHour = 23
	}
	if c.MinScanInterval <= 0 {
		c.MinScanInterval = 5 * time.Minute
	}
	if c.MaxScanInterval <= 0 {
		c.MaxScanInterval = 60 * time.Minute
	}
	if c.EstCreditsPerCycle <= 0 {
		c.EstCreditsPerCycle = 12
	}
}

// BudgetStatus is a point-in-time snapshot of credit consumption.
type BudgetStatus struct {
	CreditsUsedToday int       `json:"credits_used_today"`
	CallsToday       int       `json:"calls_today"`
	DailyAllotment   int       `json:"daily_allotment"`
	Remaining        int       `json:"remaining"`
	Exhausted        bool      `json:"exhausted"`
	WithinHours      bool      `json:"within_hours"`
	ResetsAt         time.Time `json:"resets_at"`
}

// BudgetGovernor tracks per-day credit consumption against a dynamic
// allotment and computes the adaptive scan interval. All mutation goes
// through the mutex: two listings in the same cycle must not jointly
// exceed the budget through a check-then-spend race.
type BudgetGovernor struct {
	cfg BudgetConfig

	mu               sync.Mutex
	creditsUsedToday int
	callsToday       int
	lastReset        time.Time
	dailyAllotment   int
	remoteUsage      *CatalogUsage

	now func() time.Time // test hook
}

// NewBudgetGovernor creates a governor with the given config.
func NewBudgetGovernor(cfg BudgetConfig) *BudgetGovernor {
	cfg.applyDefaults()
	return &BudgetGovernor{
		cfg:            cfg,
		dailyAllotment: cfg.DailyCredits,
		now:            time.Now,
	}
}

// resetIfNeeded zeroes the daily counters at local midnight.
// Caller must hold mu.
func (g *BudgetGovernor) resetIfNeeded() {
	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if g.lastReset.Before(today) {
		if !g.lastReset.IsZero() {
			log.Printf("Budget: daily reset (previous day: %d credits over %d calls)", g.creditsUsedToday, g.callsToday)
		}
		g.creditsUsedToday = 0
		g.callsToday = 0
		g.lastReset = today
		g.recomputeAllotment()
	}
}

// recomputeAllotment derives today's allotment from the remote billing
// period: remaining balance spread over remaining days, clamped to the
// configured band so one day's cadence cannot binge the whole balance.
// Caller must hold mu.
func (g *BudgetGovernor) recomputeAllotment() {
	if g.remoteUsage == nil {
		g.dailyAllotment = g.cfg.DailyCredits
		return
	}
	daysLeft := int(math.Ceil(g.remoteUsage.PeriodEnd.Sub(g.now()).Hours() / 24))
	if daysLeft < 1 {
		daysLeft = 1
	}
	allotment := g.remoteUsage.PeriodRemaining / daysLeft
	if allotment < g.cfg.MinDailyCredits {
		allotment = g.cfg.MinDailyCredits
	}
	if allotment > g.cfg.MaxDailyCredits {
		allotment = g.cfg.MaxDailyCredits
	}
	g.dailyAllotment = allotment
	log.Printf("Budget: daily allotment recomputed to %d credits (%d remaining over %d days)",
		allotment, g.remoteUsage.PeriodRemaining, daysLeft)
}

// UpdateRemoteUsage caches the provider's usage snapshot and recomputes
// the dynamic allotment immediately.
func (g *BudgetGovernor) UpdateRemoteUsage(usage *CatalogUsage) {
	if usage == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remoteUsage = usage
	g.recomputeAllotment()
}

// CanMakeCall reports whether a credit-consuming call may proceed.
// False when the daily allotment is spent or outside operating hours.
func (g *BudgetGovernor) CanMakeCall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNeeded()
	if !g.withinOperatingHours() {
		return false
	}
	return g.creditsUsedToday < g.dailyAllotment
}

// RecordUsage adds consumed credits to today's counters.
func (g *BudgetGovernor) RecordUsage(credits int) {
	if credits <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNeeded()
	g.creditsUsedToday += credits
	g.callsToday++
}

// withinOperatingHours reports whether now is inside the configured
// window. Caller must hold mu.
func (g *BudgetGovernor) withinOperatingHours() bool {
	h := g.now().Hour()
	return h >= g.cfg.OperatingStartHour && h < g.cfg.OperatingEndHour
}

// NextScanInterval spreads the remaining budget over the remaining
// operating hours today, clamped to the configured min/max and jittered
// a little so the cadence is not a detectable constant.
func (g *BudgetGovernor) NextScanInterval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNeeded()

	remaining := g.dailyAllotment - g.creditsUsedToday
	if remaining <= 0 || !g.withinOperatingHours() {
		return g.jitter(g.cfg.MaxScanInterval)
	}

	now := g.now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), g.cfg.OperatingEndHour, 0, 0, 0, now.Location())
	hoursLeft := endOfDay.Sub(now).Hours()
	if hoursLeft <= 0 {
		return g.jitter(g.cfg.MaxScanInterval)
	}

	cyclesLeft := float64(remaining) / float64(g.cfg.EstCreditsPerCycle)
	if cyclesLeft < 1 {
		cyclesLeft = 1
	}
	interval := time.Duration(hoursLeft / cyclesLeft * float64(time.Hour))
	if interval < g.cfg.MinScanInterval {
		interval = g.cfg.MinScanInterval
	}
	if interval > g.cfg.MaxScanInterval {
		interval = g.cfg.MaxScanInterval
	}
	return g.jitter(interval)
}

// jitter applies +/-10% random noise.
func (g *BudgetGovernor) jitter(d time.Duration) time.Duration {
	f := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(d) * f)
}

// Status returns a snapshot for the control API and the gate.
func (g *BudgetGovernor) Status() BudgetStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNeeded()

	now := g.now()
	remaining := g.dailyAllotment - g.creditsUsedToday
	if remaining < 0 {
		remaining = 0
	}
	return BudgetStatus{
		CreditsUsedToday: g.creditsUsedToday,
		CallsToday:       g.callsToday,
		DailyAllotment:   g.dailyAllotment,
		Remaining:        remaining,
		Exhausted:        remaining == 0,
		WithinHours:      g.withinOperatingHours(),
		ResetsAt:         time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1),
	}
}

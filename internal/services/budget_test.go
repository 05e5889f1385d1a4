package services

import (
	"testing"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

func listingWithSeller(id string, score int, positive float64) *models.Listing {
	return &models.Listing{
		ExternalID:     "listing-" + id,
		SellerID:       id,
		SellerScore:    score,
		SellerPositive: positive,
	}
}

func governorAt(t *testing.T, hour int, cfg BudgetConfig) (*BudgetGovernor, *time.Time) {
	t.Helper()
	g := NewBudgetGovernor(cfg)
	clock := time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }
	return g, &clock
}

func TestBudgetDailyReset(t *testing.T) {
	g, clock := governorAt(t, 12, BudgetConfig{DailyCredits: 10})

	g.RecordUsage(10)
	if g.CanMakeCall() {
		t.Error("Allotment spent; CanMakeCall should be false")
	}

	// Cross midnight: counters reset, calls allowed again.
	*clock = clock.AddDate(0, 0, 1)
	if !g.CanMakeCall() {
		t.Error("CanMakeCall should be true after the midnight reset")
	}
	status := g.Status()
	if status.CreditsUsedToday != 0 || status.CallsToday != 0 {
		t.Errorf("Counters should be zero after reset, got %d credits / %d calls",
			status.CreditsUsedToday, status.CallsToday)
	}
}

func TestBudgetOperatingHours(t *testing.T) {
	g, _ := governorAt(t, 3, BudgetConfig{DailyCredits: 100})
	if g.CanMakeCall() {
		t.Error("Calls outside operating hours must be refused")
	}

	g2, _ := governorAt(t, 12, BudgetConfig{DailyCredits: 100})
	if !g2.CanMakeCall() {
		t.Error("Calls inside operating hours with budget should pass")
	}
}

func TestDynamicAllotmentFromRemoteUsage(t *testing.T) {
	g, clock := governorAt(t, 12, BudgetConfig{
		DailyCredits:    500,
		MinDailyCredits: 100,
		MaxDailyCredits: 1000,
	})

	// 3000 credits over 10 days -> 300/day.
	g.UpdateRemoteUsage(&CatalogUsage{
		PeriodRemaining: 3000,
		PeriodEnd:       clock.AddDate(0, 0, 10),
	})
	if got := g.Status().DailyAllotment; got != 300 {
		t.Errorf("Expected allotment 300, got %d", got)
	}

	// Nearly empty period clamps at the floor.
	g.UpdateRemoteUsage(&CatalogUsage{
		PeriodRemaining: 50,
		PeriodEnd:       clock.AddDate(0, 0, 10),
	})
	if got := g.Status().DailyAllotment; got != 100 {
		t.Errorf("Expected floor clamp to 100, got %d", got)
	}

	// A fat balance on the last day clamps at the ceiling.
	g.UpdateRemoteUsage(&CatalogUsage{
		PeriodRemaining: 5000,
		PeriodEnd:       clock.Add(12 * time.Hour),
	})
	if got := g.Status().DailyAllotment; got != 1000 {
		t.Errorf("Expected ceiling clamp to 1000, got %d", got)
	}
}

func TestNextScanIntervalBounds(t *testing.T) {
	cfg := BudgetConfig{
		DailyCredits:    500,
		MinScanInterval: 5 * time.Minute,
		MaxScanInterval: 60 * time.Minute,
	}

	// Huge remaining budget: interval floors at min, +/-10% jitter.
	g, _ := governorAt(t, 8, cfg)
	interval := g.NextScanInterval()
	if interval < time.Duration(float64(cfg.MinScanInterval)*0.9) ||
		interval > time.Duration(float64(cfg.MaxScanInterval)*1.1) {
		t.Errorf("Interval %s outside configured bounds", interval)
	}

	// Spent budget: back off to the max interval.
	g2, _ := governorAt(t, 12, cfg)
	g2.RecordUsage(500)
	interval = g2.NextScanInterval()
	if interval < time.Duration(float64(cfg.MaxScanInterval)*0.9) {
		t.Errorf("Exhausted budget should back off to max interval, got %s", interval)
	}
}

func TestBudgetStatusExhausted(t *testing.T) {
	g, _ := governorAt(t, 12, BudgetConfig{DailyCredits: 5})
	g.RecordUsage(5)

	status := g.Status()
	if !status.Exhausted {
		t.Error("Status should report exhausted")
	}
	if status.Remaining != 0 {
		t.Errorf("Remaining should be 0, got %d", status.Remaining)
	}
}

func TestEnrichmentGate(t *testing.T) {
	gate := NewEnrichmentGate()
	ok := BudgetStatus{Exhausted: false}
	spent := BudgetStatus{Exhausted: true}

	tests := []struct {
		name       string
		profitPct  float64
		confidence float64
		budget     BudgetStatus
		want       bool
	}{
		{"promising", 45, 0.8, ok, true},
		{"at thresholds", 30, 0.45, ok, true},
		{"thin profit", 20, 0.9, ok, false},
		{"weak confidence", 80, 0.3, ok, false},
		{"budget exhausted", 80, 0.9, spent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.Approve(tt.profitPct, tt.confidence, tt.budget); got != tt.want {
				t.Errorf("Approve(%.0f, %.2f) = %v, want %v", tt.profitPct, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestJunkPenaltyMonotonic(t *testing.T) {
	scorer := NewJunkPenaltyScorer()

	clean := scorer.Penalty("Charizard 4/102 Base Set holo", nil)
	if clean != 0 {
		t.Errorf("Clean title should carry no penalty, got %.2f", clean)
	}

	one := scorer.Penalty("Charizard replica card", nil)
	two := scorer.Penalty("Charizard replica, no returns", nil)
	if one <= 0 {
		t.Error("Pattern hit should add a penalty")
	}
	if two <= one {
		t.Errorf("More hits must not lower the penalty: %.2f vs %.2f", two, one)
	}
}

func TestJunkPenaltySellerReputation(t *testing.T) {
	scorer := NewJunkPenaltyScorer()
	title := "Charizard 4/102 Base Set"

	newSeller := scorer.Penalty(title, listingWithSeller("s1", 3, 99))
	if newSeller <= 0 {
		t.Error("Near-zero feedback count should add a penalty")
	}

	badFeedback := scorer.Penalty(title, listingWithSeller("s2", 500, 90))
	if badFeedback <= 0 {
		t.Error("Sub-95%% positive feedback should add a penalty")
	}

	scorer.ReportSeller("s3")
	scorer.ReportSeller("s3")
	reported := scorer.Penalty(title, listingWithSeller("s3", 500, 99))
	if !approxEq(reported, 0.2) {
		t.Errorf("Two seller reports should add 0.2, got %.2f", reported)
	}
}

func TestJunkPenaltyCap(t *testing.T) {
	scorer := NewJunkPenaltyScorer()
	for i := 0; i < 10; i++ {
		scorer.ReportSeller("spam")
	}
	penalty := scorer.Penalty("replica untested no returns read description", listingWithSeller("spam", 1, 50))
	if penalty > 0.6 {
		t.Errorf("Penalty must cap at 0.6, got %.2f", penalty)
	}
}

func TestReportPatternLearnsAndReinforces(t *testing.T) {
	scorer := NewJunkPenaltyScorer()
	title := "Charizard gold plated card"

	if scorer.Penalty(title, nil) != 0 {
		t.Fatal("Pattern should not exist yet")
	}

	scorer.ReportPattern(`\bgold plated\b`, 0.2)
	if !approxEq(scorer.Penalty(title, nil), 0.2) {
		t.Error("Learned pattern should apply")
	}

	// Re-reporting at a lower weight never weakens the rule.
	scorer.ReportPattern(`\bgold plated\b`, 0.1)
	if !approxEq(scorer.Penalty(title, nil), 0.2) {
		t.Error("Lower re-report must not reduce the weight")
	}

	scorer.ReportPattern(`\bgold plated\b`, 0.3)
	if !approxEq(scorer.Penalty(title, nil), 0.3) {
		t.Error("Higher re-report should raise the weight")
	}
}

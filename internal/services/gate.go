package services

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// Enrichment gate thresholds. Phase-1 results below either line never
// spend a detail fetch; clearly excellent results are still confirmed
// rather than trusted blindly.
const (
	gateMinProfitPercent = 30.0
	gateMinConfidence    = 0.45
)

// EnrichmentGate decides whether a cheap Phase-1 result justifies one
// costly detail fetch. Pure decision, no state.
type EnrichmentGate struct {
	MinProfitPercent float64
	MinConfidence    float64
}

// NewEnrichmentGate creates a gate with the default thresholds.
func NewEnrichmentGate() *EnrichmentGate {
	return &EnrichmentGate{
		MinProfitPercent: gateMinProfitPercent,
		MinConfidence:    gateMinConfidence,
	}
}

// Approve reports whether Phase-1 signals are promising enough to be
// worth confirming. An exhausted budget vetoes regardless.
func (g *EnrichmentGate) Approve(profitPercent, confidence float64, budget BudgetStatus) bool {
	if budget.Exhausted {
		return false
	}
	return profitPercent >= g.MinProfitPercent && confidence >= g.MinConfidence
}

// penaltyRule is a previously-reported problem pattern with a learned
// weight.
type penaltyRule struct {
	re     *regexp.Regexp
	weight float64
}

// JunkPenaltyScorer subtracts a learned penalty from composite
// confidence before the final gate, so borderline junk that slipped
// past the extractor's patterns can still be suppressed without
// hand-written rules.
type JunkPenaltyScorer struct {
	mu            sync.RWMutex
	rules         []penaltyRule
	sellerReports map[string]int // seller id -> problem report count
}

// NewJunkPenaltyScorer seeds the scorer with the problem patterns
// reported so far.
func NewJunkPenaltyScorer() *JunkPenaltyScorer {
	s := &JunkPenaltyScorer{sellerReports: make(map[string]int)}
	// Seed patterns distilled from reported bad deals: phrasing that
	// correlates with resellers, fakes and damaged stock but is too
	// soft for a hard junk rejection.
	for pattern, weight := range map[string]float64{
		`\bread description\b`:    0.10,
		`\bas pictured\b`:         0.05,
		`\bno returns?\b`:         0.08,
		`\buntested\b`:            0.10,
		`\bstock (photo|image)\b`: 0.12,
		`\breplica\b`:             0.25,
		`\bstyle\b`:               0.08,
	} {
		s.rules = append(s.rules, penaltyRule{re: regexp.MustCompile(pattern), weight: weight})
	}
	return s
}

// ReportPattern learns (or reinforces) a problem pattern at the given
// weight. Invalid regexps are ignored.
func (s *JunkPenaltyScorer) ReportPattern(pattern string, weight float64) {
	re, err := regexp.Compile(pattern)
	if err != nil || weight <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].re.String() == pattern {
			if weight > s.rules[i].weight {
				s.rules[i].weight = weight
			}
			return
		}
	}
	s.rules = append(s.rules, penaltyRule{re: re, weight: weight})
}

// ReportSeller records a problem report against a seller.
func (s *JunkPenaltyScorer) ReportSeller(sellerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellerReports[sellerID]++
}

// Penalty returns the confidence deduction for a cleaned title and the
// listing's seller history. Monotonically non-decreasing in the number
// of pattern hits and reports; capped so one noisy rule cannot zero a
// solid match on its own.
func (s *JunkPenaltyScorer) Penalty(title string, listing *models.Listing) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(title)
	penalty := 0.0
	for _, rule := range s.rules {
		if rule.re.MatchString(lower) {
			penalty += rule.weight
		}
	}

	if listing != nil {
		// Low-reputation sellers compound the text penalty.
		if listing.SellerScore > 0 && listing.SellerScore < 10 {
			penalty += 0.05
		}
		if listing.SellerPositive > 0 && listing.SellerPositive < 95 {
			penalty += 0.08
		}
		if reports := s.sellerReports[listing.SellerID]; listing.SellerID != "" && reports > 0 {
			penalty += 0.1 * float64(reports)
		}
	}

	if penalty > 0.6 {
		penalty = 0.6
	}
	return penalty
}

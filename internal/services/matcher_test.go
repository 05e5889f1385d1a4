package services

import (
	"context"
	"testing"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// stubCatalog is the shared in-memory CatalogClient for tests.
type stubCatalog struct {
	candidates []models.CatalogCandidate
	prices     *models.CatalogPrices
	velocity   float64
	usage      *CatalogUsage

	findErr  error
	priceErr error

	findCalls     int
	priceCalls    int
	velocityCalls int
}

func (s *stubCatalog) FindCandidates(ctx context.Context, signals *models.ExtractedSignals) ([]models.CatalogCandidate, error) {
	s.findCalls++
	return s.candidates, s.findErr
}

func (s *stubCatalog) GetPrices(ctx context.Context, candidateID string) (*models.CatalogPrices, error) {
	s.priceCalls++
	return s.prices, s.priceErr
}

func (s *stubCatalog) GetSaleVelocity(ctx context.Context, candidateID string) (float64, error) {
	s.velocityCalls++
	return s.velocity, nil
}

func (s *stubCatalog) Usage(ctx context.Context) (*CatalogUsage, error) {
	return s.usage, nil
}

func baseSetCharizard() models.CatalogCandidate {
	return models.CatalogCandidate{
		ID:            "base1-4",
		Name:          "Charizard",
		Number:        "4",
		Denominator:   "102",
		ExpansionID:   "base1",
		ExpansionName: "Base Set",
		ReleasedAt:    time.Date(1999, 1, 9, 0, 0, 0, 0, time.UTC),
		Printings:     []models.PrintingType{models.PrintingNormal, models.PrintingHolo},
	}
}

func TestMatchFullAgreement(t *testing.T) {
	catalog := &stubCatalog{candidates: []models.CatalogCandidate{baseSetCharizard()}}
	matcher := NewCatalogMatcher(catalog)

	sig := &models.ExtractedSignals{
		CardName:       "Charizard",
		CardNumber:     "4",
		Denominator:    "102",
		ExpansionGuess: "Base Set",
		Variants:       models.VariantFlags{Holo: true},
	}

	result, err := matcher.Match(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.Confidence < 0.99 {
		t.Errorf("Full agreement should score ~1.0, got %.3f", result.Confidence)
	}
	if result.Printing != models.PrintingHolo {
		t.Errorf("Expected Holofoil printing, got %s", result.Printing)
	}
	if result.Strategy != models.StrategyNumberExpansion {
		t.Errorf("Expected number_expansion strategy, got %s", result.Strategy)
	}
}

func TestMatchNumberWithLeadingZeros(t *testing.T) {
	cand := baseSetCharizard()
	cand.Number = "04"
	catalog := &stubCatalog{candidates: []models.CatalogCandidate{cand}}
	matcher := NewCatalogMatcher(catalog)

	sig := &models.ExtractedSignals{CardName: "Charizard", CardNumber: "4"}
	result, err := matcher.Match(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Breakdown.NumberMatch != 1 {
		t.Error("Numbers differing only in leading zeros must match")
	}
}

func TestMatchNeutralScoresForAbsentSignals(t *testing.T) {
	catalog := &stubCatalog{candidates: []models.CatalogCandidate{baseSetCharizard()}}
	matcher := NewCatalogMatcher(catalog)

	// No denominator and no expansion guess: both dimensions score
	// neutral 0.5 rather than zero.
	sig := &models.ExtractedSignals{CardName: "Charizard", CardNumber: "4"}
	result, _ := matcher.Match(context.Background(), sig)
	if result.Breakdown.DenominatorMatch != 0.5 {
		t.Errorf("Absent denominator should be neutral 0.5, got %.2f", result.Breakdown.DenominatorMatch)
	}
	if result.Breakdown.ExpansionMatch != 0.5 {
		t.Errorf("Absent expansion should be neutral 0.5, got %.2f", result.Breakdown.ExpansionMatch)
	}
}

func TestMatchDenominatorMismatchScoresZero(t *testing.T) {
	catalog := &stubCatalog{candidates: []models.CatalogCandidate{baseSetCharizard()}}
	matcher := NewCatalogMatcher(catalog)

	sig := &models.ExtractedSignals{
		CardName:    "Charizard",
		CardNumber:  "4",
		Denominator: "110",
	}
	result, _ := matcher.Match(context.Background(), sig)
	if result.Breakdown.DenominatorMatch != 0 {
		t.Errorf("Conflicting denominator must score 0, got %.2f", result.Breakdown.DenominatorMatch)
	}
}

func TestMatchWarningPenalty(t *testing.T) {
	catalog := &stubCatalog{candidates: []models.CatalogCandidate{baseSetCharizard()}}
	matcher := NewCatalogMatcher(catalog)

	clean := &models.ExtractedSignals{
		CardName:       "Charizard",
		CardNumber:     "4",
		Denominator:    "102",
		ExpansionGuess: "Base Set",
		Variants:       models.VariantFlags{Holo: true},
	}
	noisy := &models.ExtractedSignals{
		CardName:       "Charizard",
		CardNumber:     "4",
		Denominator:    "102",
		ExpansionGuess: "Base Set",
		Variants:       models.VariantFlags{Holo: true},
		Warnings:       []string{"w1", "w2"},
	}

	cleanResult, _ := matcher.Match(context.Background(), clean)
	noisyResult, _ := matcher.Match(context.Background(), noisy)

	want := cleanResult.Confidence - 2*normalizationPenaltyPerWarning
	if diff := noisyResult.Confidence - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("Expected confidence %.3f with 2 warnings, got %.3f", want, noisyResult.Confidence)
	}

	// The penalty is capped: many warnings cannot zero a solid match.
	flooded := &models.ExtractedSignals{
		CardName:       "Charizard",
		CardNumber:     "4",
		Denominator:    "102",
		ExpansionGuess: "Base Set",
		Variants:       models.VariantFlags{Holo: true},
		Warnings:       []string{"w1", "w2", "w3", "w4", "w5", "w6"},
	}
	floodedResult, _ := matcher.Match(context.Background(), flooded)
	if floodedResult.Breakdown.NormalizationPenalty != normalizationPenaltyCap {
		t.Errorf("Penalty should cap at %.2f, got %.2f",
			normalizationPenaltyCap, floodedResult.Breakdown.NormalizationPenalty)
	}
}

func TestMatchTieBreakPrefersNewerRelease(t *testing.T) {
	older := baseSetCharizard()
	newer := baseSetCharizard()
	newer.ID = "base2-4"
	newer.ReleasedAt = older.ReleasedAt.AddDate(1, 0, 0)

	catalog := &stubCatalog{candidates: []models.CatalogCandidate{older, newer}}
	matcher := NewCatalogMatcher(catalog)

	sig := &models.ExtractedSignals{
		CardName:       "Charizard",
		CardNumber:     "4",
		Denominator:    "102",
		ExpansionGuess: "Base Set",
		Variants:       models.VariantFlags{Holo: true},
	}
	result, _ := matcher.Match(context.Background(), sig)
	if result.Candidate.ID != "base2-4" {
		t.Errorf("Tie should break to the newer release, got %s", result.Candidate.ID)
	}
}

func TestMatchNoCandidates(t *testing.T) {
	matcher := NewCatalogMatcher(&stubCatalog{})
	result, err := matcher.Match(context.Background(), &models.ExtractedSignals{CardName: "Charizard"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("No candidates should yield a nil result")
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Charizard", "Charizard", 1.0, 1.0},
		{"charizard", "Charizard", 1.0, 1.0},
		{"Charizrd", "Charizard", 0.8, 0.99},
		{"Pikachu", "Charizard", 0.0, 0.4},
		{"", "Charizard", 0.0, 0.0},
	}

	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("nameSimilarity(%q, %q) = %.3f, want within [%.2f, %.2f]",
				tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"charizard", "charizrd", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

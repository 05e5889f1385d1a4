package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// MatchConfidenceThreshold is the minimum composite confidence a match
// must clear (after any learned junk penalty) to produce a deal.
const MatchConfidenceThreshold = 0.65

// Composite confidence weights. Six independent dimensions; no single
// dimension can force acceptance on its own.
const (
	weightNameSimilarity = 0.30
	weightNumberMatch    = 0.25
	weightDenominator    = 0.15
	weightExpansion      = 0.15
	weightVariant        = 0.15

	// Each extraction warning marks noisy input the normalizer had to
	// fight through; confidence pays for it.
	normalizationPenaltyPerWarning = 0.05
	normalizationPenaltyCap        = 0.15
)

// CatalogMatcher scores extracted signals against catalog candidates.
type CatalogMatcher struct {
	catalog CatalogClient
}

// NewCatalogMatcher creates a matcher over the given catalog provider.
func NewCatalogMatcher(catalog CatalogClient) *CatalogMatcher {
	return &CatalogMatcher{catalog: catalog}
}

// Match returns the best catalog match for the signals, or nil when no
// candidate scores at all. The caller applies the confidence gate; a
// returned result below threshold is still not usable downstream.
func (m *CatalogMatcher) Match(ctx context.Context, sig *models.ExtractedSignals) (*models.MatchResult, error) {
	candidates, err := m.catalog.FindCandidates(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("catalog candidate lookup: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// A reliable number lets us score the cheap, selective strategy;
	// otherwise fall back to name similarity across the catalog.
	strategy := models.StrategyNameSimilarity
	if sig.CardNumber != "" {
		strategy = models.StrategyNumberExpansion
	}

	var best *models.MatchResult
	for i := range candidates {
		result := m.score(sig, &candidates[i], strategy)
		if best == nil || better(result, best) {
			best = result
		}
	}
	return best, nil
}

// better implements the tie-break rules: composite first, then name
// similarity, then the most recent catalog entry.
func better(a, b *models.MatchResult) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Breakdown.NameSimilarity != b.Breakdown.NameSimilarity {
		return a.Breakdown.NameSimilarity > b.Breakdown.NameSimilarity
	}
	return a.Candidate.ReleasedAt.After(b.Candidate.ReleasedAt)
}

// score computes the six-dimension composite for one candidate.
func (m *CatalogMatcher) score(sig *models.ExtractedSignals, cand *models.CatalogCandidate, strategy models.MatchStrategy) *models.MatchResult {
	bd := models.ConfidenceBreakdown{}

	bd.NameSimilarity = nameSimilarity(sig.CardName, cand.Name)

	if sig.CardNumber != "" && numbersEqual(sig.CardNumber, cand.Number) {
		bd.NumberMatch = 1
	}

	// The printed total must agree with the candidate's known printed
	// total; identically-numbered cards across sets differ here.
	if sig.Denominator != "" && cand.Denominator != "" {
		if trimLeadingZeros(sig.Denominator) == trimLeadingZeros(cand.Denominator) {
			bd.DenominatorMatch = 1
		}
	} else if sig.Denominator == "" {
		// Neutral when the title never printed a total.
		bd.DenominatorMatch = 0.5
	}

	if sig.ExpansionGuess != "" &&
		strings.EqualFold(sig.ExpansionGuess, cand.ExpansionName) {
		bd.ExpansionMatch = 1
	} else if sig.ExpansionGuess == "" {
		bd.ExpansionMatch = 0.5
	}

	printing := printingFor(sig)
	if cand.HasPrinting(printing) {
		bd.VariantMatch = 1
	} else if !sig.Variants.Any() {
		bd.VariantMatch = 0.5
	}

	bd.NormalizationPenalty = float64(len(sig.Warnings)) * normalizationPenaltyPerWarning
	if bd.NormalizationPenalty > normalizationPenaltyCap {
		bd.NormalizationPenalty = normalizationPenaltyCap
	}

	confidence := weightNameSimilarity*bd.NameSimilarity +
		weightNumberMatch*bd.NumberMatch +
		weightDenominator*bd.DenominatorMatch +
		weightExpansion*bd.ExpansionMatch +
		weightVariant*bd.VariantMatch -
		bd.NormalizationPenalty
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.MatchResult{
		Candidate:  *cand,
		Printing:   printing,
		Confidence: confidence,
		Breakdown:  bd,
		Strategy:   strategy,
	}
}

// printingFor maps extracted variant flags to a catalog printing type.
func printingFor(sig *models.ExtractedSignals) models.PrintingType {
	switch {
	case sig.FirstEdition:
		return models.Printing1stEdition
	case sig.Variants.ReverseHolo:
		return models.PrintingReverseHolo
	case sig.Variants.Holo || sig.Variants.Rainbow || sig.Variants.Secret ||
		sig.Variants.FullArt || sig.Variants.AltArt:
		return models.PrintingHolo
	default:
		return models.PrintingNormal
	}
}

// numbersEqual compares card numbers ignoring leading zeros.
func numbersEqual(a, b string) bool {
	return trimLeadingZeros(strings.ToUpper(a)) == trimLeadingZeros(strings.ToUpper(b))
}

// nameSimilarity is a Levenshtein ratio in [0,1]. Empty extracted names
// score zero: a match cannot lean on a name we never saw.
func nameSimilarity(extracted, candidate string) float64 {
	if extracted == "" || candidate == "" {
		return 0
	}
	a := strings.ToLower(extracted)
	b := strings.ToLower(candidate)
	if a == b {
		return 1
	}
	dist := levenshteinDistance(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	sim := 1 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}

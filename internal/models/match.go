package models

// MatchStrategy records which path produced a match.
type MatchStrategy string

const (
	StrategyNumberExpansion MatchStrategy = "number_expansion"
	StrategyNameSimilarity  MatchStrategy = "name_similarity"
)

// ConfidenceBreakdown exposes the independent per-dimension scores that
// blend into the composite confidence. All dimensions are in [0,1];
// NormalizationPenalty is subtracted from the weighted blend.
type ConfidenceBreakdown struct {
	NameSimilarity       float64 `json:"name_similarity"`
	NumberMatch          float64 `json:"number_match"`
	DenominatorMatch     float64 `json:"denominator_match"`
	ExpansionMatch       float64 `json:"expansion_match"`
	VariantMatch         float64 `json:"variant_match"`
	NormalizationPenalty float64 `json:"normalization_penalty"`
}

// MatchResult is the best catalog match for a set of extracted signals.
// Confidence must clear the matcher threshold, after any learned junk
// penalty, to be usable downstream.
type MatchResult struct {
	Candidate  CatalogCandidate    `json:"candidate"`
	Printing   PrintingType        `json:"printing"`
	Confidence float64             `json:"confidence"` // composite, [0,1]
	Breakdown  ConfidenceBreakdown `json:"breakdown"`
	Strategy   MatchStrategy       `json:"strategy"`
}

package models

// CardLanguage represents the printed language of a card.
type CardLanguage string

const (
	LanguageEnglish  CardLanguage = "English"
	LanguageJapanese CardLanguage = "Japanese"
	LanguageGerman   CardLanguage = "German"
	LanguageFrench   CardLanguage = "French"
	LanguageItalian  CardLanguage = "Italian"
)

// RejectReason classifies listings discarded before any catalog lookup.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectBulkLot          RejectReason = "bulk_lot"
	RejectMysteryPack      RejectReason = "mystery_pack"
	RejectCustomProxy      RejectReason = "custom_proxy"
	RejectBinderCollection RejectReason = "binder_collection"
)

// ScoreTier buckets the extraction score for quick filtering.
type ScoreTier string

const (
	ScoreLow    ScoreTier = "LOW"
	ScoreMedium ScoreTier = "MEDIUM"
	ScoreHigh   ScoreTier = "HIGH"
)

// VariantFlags records finish/art variants detected in a title.
// A title may set several simultaneously.
type VariantFlags struct {
	Holo        bool `json:"holo"`
	ReverseHolo bool `json:"reverse_holo"`
	FullArt     bool `json:"full_art"`
	AltArt      bool `json:"alt_art"`
	Rainbow     bool `json:"rainbow"`
	Secret      bool `json:"secret"`
	Promo       bool `json:"promo"`
}

// Any reports whether at least one variant flag is set.
func (v VariantFlags) Any() bool {
	return v.Holo || v.ReverseHolo || v.FullArt || v.AltArt || v.Rainbow || v.Secret || v.Promo
}

// ExtractedSignals is the structured result of parsing a listing title
// (and, in phase two, the enriched item detail). Produced fresh each
// phase; never mutated in place.
type ExtractedSignals struct {
	CardName       string             `json:"card_name"`
	CardNumber     string             `json:"card_number"`     // e.g. "4" from "4/102"
	Denominator    string             `json:"denominator"`     // printed total, verbatim, e.g. "102"
	ExpansionGuess string             `json:"expansion_guess"` // e.g. "Base Set"
	Variants       VariantFlags       `json:"variants"`
	FirstEdition   bool               `json:"first_edition"`
	Shadowless     bool               `json:"shadowless"`
	Language       CardLanguage       `json:"language"`
	Grading        *GradingInfo       `json:"grading,omitempty"`
	Condition      *ResolvedCondition `json:"condition,omitempty"`
	Score          int                `json:"score"` // 0-100, independent of catalog matching
	Tier           ScoreTier          `json:"tier"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// IsGraded reports whether grading was detected. Graded signals never
// carry an ungraded condition.
func (s *ExtractedSignals) IsGraded() bool {
	return s.Grading != nil
}

package models

import "strings"

// Condition is the ungraded condition scale used for pricing.
// Graded listings carry GradingInfo instead and have no Condition.
type Condition string

const (
	ConditionNM Condition = "NM" // Near Mint
	ConditionLP Condition = "LP" // Lightly Played
	ConditionMP Condition = "MP" // Moderately Played
	ConditionHP Condition = "HP" // Heavily Played
)

// AllConditions returns the ungraded condition scale, best first.
func AllConditions() []Condition {
	return []Condition{ConditionNM, ConditionLP, ConditionMP, ConditionHP}
}

// ConditionSource records which input produced a resolved condition.
// Downstream pricing and audit need to know how much to trust it.
type ConditionSource string

const (
	SourceBlockedKeyword ConditionSource = "blocked_keyword"
	SourceDescriptorCode ConditionSource = "descriptor_code"
	SourceItemSpecifics  ConditionSource = "item_specifics"
	SourceTitleKeyword   ConditionSource = "title_keyword"
	SourceDefault        ConditionSource = "default"
)

// ResolvedCondition is the output of the condition resolver.
// Blocked marks damaged/creased items that must be discarded, not priced.
type ResolvedCondition struct {
	Condition Condition       `json:"condition"`
	Blocked   bool            `json:"blocked"`
	Source    ConditionSource `json:"source"`
}

// GradingCompany identifies a card grading service.
type GradingCompany string

const (
	GradingPSA GradingCompany = "PSA"
	GradingCGC GradingCompany = "CGC"
	GradingBGS GradingCompany = "BGS"
	GradingSGC GradingCompany = "SGC"
	GradingACE GradingCompany = "ACE"
)

// ParseGradingCompany maps a raw token to a known grading company.
// Returns "" for unrecognized tokens.
func ParseGradingCompany(token string) GradingCompany {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "PSA":
		return GradingPSA
	case "CGC":
		return GradingCGC
	case "BGS", "BECKETT":
		return GradingBGS
	case "SGC":
		return GradingSGC
	case "ACE":
		return GradingACE
	default:
		return ""
	}
}

// GradingInfo describes a professionally graded card.
// A graded listing never receives an ungraded Condition.
type GradingInfo struct {
	Company  GradingCompany `json:"company"`
	Grade    float64        `json:"grade"`
	Modifier string         `json:"modifier,omitempty"` // e.g. "BLACK LABEL"
}

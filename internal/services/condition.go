package services

import (
	"strings"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// blockedKeywords mark damage that makes a listing unsellable at catalog
// prices. A hit vetoes the listing outright regardless of other signals.
var blockedKeywords = []string{
	"damaged", "damage", "creased", "crease", "bent", "torn", "ripped",
	"water damage", "ink", "writing on", "heavily whitened", "poor condition",
	"for parts", "spine split",
}

// descriptorConditions maps marketplace condition-descriptor codes
// (present only after enrichment) to conditions. These are the most
// authoritative ungraded condition source available.
var descriptorConditions = map[string]models.Condition{
	"400010": models.ConditionNM, // Near Mint or Better
	"400011": models.ConditionLP, // Lightly Played (Excellent)
	"400012": models.ConditionMP, // Moderately Played (Very Good)
	"400013": models.ConditionHP, // Heavily Played (Poor)
}

// itemSpecificsConditionKeys are the detail fields that may carry a
// seller-declared condition.
var itemSpecificsConditionKeys = []string{"Card Condition", "Condition", "Grade"}

// ResolveCondition determines the ungraded condition of a listing.
// Priority order: blocked-keyword veto, structured descriptor codes,
// item-specifics text, title keywords, then a conservative LP default.
// Each result records which source produced it.
func ResolveCondition(title string, detail *models.ListingDetail) models.ResolvedCondition {
	if blocked, src := scanBlockedKeywords(title); blocked {
		return models.ResolvedCondition{Condition: models.ConditionHP, Blocked: true, Source: src}
	}

	if detail != nil {
		for _, code := range detail.ConditionDescriptors {
			if cond, ok := descriptorConditions[code]; ok {
				return models.ResolvedCondition{Condition: cond, Source: models.SourceDescriptorCode}
			}
		}
		for _, key := range itemSpecificsConditionKeys {
			if raw, ok := detail.ItemSpecifics[key]; ok {
				if cond, ok := conditionFromText(raw); ok {
					return models.ResolvedCondition{Condition: cond, Source: models.SourceItemSpecifics}
				}
			}
		}
	}

	if cond, ok := conditionFromText(title); ok {
		return models.ResolvedCondition{Condition: cond, Source: models.SourceTitleKeyword}
	}

	// No signal: assume LP, never NM. Overestimating condition
	// overestimates profit.
	return models.ResolvedCondition{Condition: models.ConditionLP, Source: models.SourceDefault}
}

// scanBlockedKeywords reports whether the text names disqualifying damage.
func scanBlockedKeywords(text string) (bool, models.ConditionSource) {
	lower := strings.ToLower(text)
	for _, kw := range blockedKeywords {
		if strings.Contains(lower, kw) {
			return true, models.SourceBlockedKeyword
		}
	}
	return false, ""
}

// conditionFromText maps free-text condition phrases to the condition
// scale. Longer phrases are checked before their abbreviations.
func conditionFromText(text string) (models.Condition, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "NEAR MINT"), strings.Contains(upper, "MINT"),
		containsToken(upper, "NM"), containsToken(upper, "NM/M"):
		return models.ConditionNM, true
	case strings.Contains(upper, "LIGHTLY PLAYED"), strings.Contains(upper, "LIGHT PLAY"),
		strings.Contains(upper, "EXCELLENT"), containsToken(upper, "LP"):
		return models.ConditionLP, true
	case strings.Contains(upper, "MODERATELY PLAYED"), strings.Contains(upper, "VERY GOOD"),
		containsToken(upper, "MP"):
		return models.ConditionMP, true
	case strings.Contains(upper, "HEAVILY PLAYED"), strings.Contains(upper, "WELL PLAYED"),
		strings.Contains(upper, "PLAYED"):
		// Bare "HP" is not usable here: on a card title it is almost
		// always a hit-points value like "HP 170".
		return models.ConditionHP, true
	}
	return "", false
}

// containsToken matches tok as a whole word so "LP" does not hit "ALPS"
// and "HP" does not hit "HP 170".
func containsToken(upper, tok string) bool {
	fields := strings.FieldsFunc(upper, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '/'
	})
	for _, f := range fields {
		if f == tok {
			return true
		}
	}
	return false
}

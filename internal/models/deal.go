package models

import (
	"time"
)

// Tier is the risk/value classification of a deal.
type Tier string

const (
	TierGrail    Tier = "GRAIL"
	TierHit      Tier = "HIT"
	TierFlip     Tier = "FLIP"
	TierStandard Tier = "STANDARD"
)

// demotionOrder maps each tier to the next one down.
var demotionOrder = map[Tier]Tier{
	TierGrail:    TierHit,
	TierHit:      TierFlip,
	TierFlip:     TierStandard,
	TierStandard: TierStandard,
}

// Demote returns the next tier down. STANDARD demotes to itself.
func (t Tier) Demote() Tier {
	if next, ok := demotionOrder[t]; ok {
		return next
	}
	return TierStandard
}

// ConfidenceTier buckets match confidence for display and alerting.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Deal is the persisted decision that a listing is worth buying.
// Exactly one deal may exist per external listing id; the unique index
// is the storage-level guard behind the in-memory deduplicator.
type Deal struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ListingID string `json:"listing_id" gorm:"not null;uniqueIndex"`

	Title      string       `json:"title"`
	URL        string       `json:"url"`
	CardID     string       `json:"card_id" gorm:"index"`
	CardName   string       `json:"card_name"`
	SetName    string       `json:"set_name"`
	CardNumber string       `json:"card_number"`
	Printing   PrintingType `json:"printing"`
	Condition  Condition    `json:"condition,omitempty"`
	GradeLabel string       `json:"grade_label,omitempty"` // e.g. "PSA 10"

	Confidence     float64        `json:"confidence"`
	ConfidenceTier ConfidenceTier `json:"confidence_tier"`
	TotalCostGBP   float64        `json:"total_cost_gbp"`
	MarketValueGBP float64        `json:"market_value_gbp"`
	ProfitGBP      float64        `json:"profit_gbp"`
	ProfitPercent  float64        `json:"profit_percent"`
	Tier           Tier           `json:"tier" gorm:"index"`
	LiquidityScore float64        `json:"liquidity_score"`
	LiquidityGrade LiquidityGrade `json:"liquidity_grade"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfidenceTierFor buckets a composite confidence value.
func ConfidenceTierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= 0.85:
		return ConfidenceHigh
	case confidence >= 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

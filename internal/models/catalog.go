package models

import "time"

// PrintingType represents catalog printing variants.
type PrintingType string

const (
	PrintingNormal      PrintingType = "Normal"
	PrintingHolo        PrintingType = "Holofoil"
	PrintingReverseHolo PrintingType = "Reverse Holofoil"
	Printing1stEdition  PrintingType = "1st Edition"
	PrintingUnlimited   PrintingType = "Unlimited"
)

// PriceRow holds the low and market prices for one condition of one
// printing variant, in the catalog's native currency (USD).
type PriceRow struct {
	Low    float64 `json:"low"`
	Market float64 `json:"market"`
}

// GradedPriceRow holds the market price for a specific grading
// company and grade.
type GradedPriceRow struct {
	Company GradingCompany `json:"company"`
	Grade   float64        `json:"grade"`
	Market  float64        `json:"market"`
}

// CatalogVariant is one printing variant of a catalog card with its
// per-condition price table.
type CatalogVariant struct {
	Printing PrintingType           `json:"printing"`
	Prices   map[Condition]PriceRow `json:"prices"`
}

// CatalogPrices is the full price set for one catalog candidate.
type CatalogPrices struct {
	CandidateID string           `json:"candidate_id"`
	Variants    []CatalogVariant `json:"variants"`
	Graded      []GradedPriceRow `json:"graded,omitempty"`
	UnitsSold   int              `json:"units_sold"`
	PriceTrend  float64          `json:"price_trend"` // fractional 30-day change, e.g. 0.12
	FetchedAt   time.Time        `json:"fetched_at"`
}

// CatalogCandidate is a read-only reference card from the price catalog.
type CatalogCandidate struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Number        string         `json:"number"`
	Denominator   string         `json:"denominator"` // printed set total, "" if unknown
	ExpansionID   string         `json:"expansion_id"`
	ExpansionName string         `json:"expansion_name"`
	ReleasedAt    time.Time      `json:"released_at"`
	Printings     []PrintingType `json:"printings"`
}

// HasPrinting reports whether the candidate exists in the given printing.
func (c *CatalogCandidate) HasPrinting(p PrintingType) bool {
	for _, printing := range c.Printings {
		if printing == p {
			return true
		}
	}
	return false
}

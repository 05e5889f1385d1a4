package services

import (
	"math"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// Marketplace fee model: a flat per-order component plus percentage
// bands that step down as the subtotal grows.
const (
	feeFlatGBP = 0.30

	feeBand1Limit = 300.0  // first £300
	feeBand1Rate  = 0.128  // 12.8%
	feeBand2Limit = 1000.0 // £300 - £1000
	feeBand2Rate  = 0.09   // 9%
	feeBand3Rate  = 0.03   // above £1000
)

// PricingEngine converts marketplace prices to the target currency,
// applies the fee model and computes profit. Stateless; every result is
// deterministic given its inputs.
type PricingEngine struct{}

// NewPricingEngine creates a pricing engine.
func NewPricingEngine() *PricingEngine {
	return &PricingEngine{}
}

// MarketplaceFee computes the tiered fee on a subtotal in GBP.
func MarketplaceFee(subtotalGBP float64) float64 {
	fee := feeFlatGBP
	remaining := subtotalGBP

	band1 := math.Min(remaining, feeBand1Limit)
	fee += band1 * feeBand1Rate
	remaining -= band1

	if remaining > 0 {
		band2 := math.Min(remaining, feeBand2Limit-feeBand1Limit)
		fee += band2 * feeBand2Rate
		remaining -= band2
	}
	if remaining > 0 {
		fee += remaining * feeBand3Rate
	}
	return roundGBP(fee)
}

// Compute prices a listing against its matched variant's price table.
// rate converts the listing's source currency to GBP and is supplied by
// the caller, never invented here. Returns nil when no usable price row
// exists: absence of data is not zero profit.
func (e *PricingEngine) Compute(listing *models.Listing, sig *models.ExtractedSignals, match *models.MatchResult, prices *models.CatalogPrices, rate float64) *models.ProfitCalculation {
	if prices == nil || rate <= 0 {
		return nil
	}

	marketUSD, cond, gradedRow := selectPriceRow(sig, match, prices)
	if marketUSD <= 0 {
		return nil
	}

	priceGBP := roundGBP(listing.Price * rate)
	shippingGBP := roundGBP(listing.ShippingCost * rate)
	feeGBP := MarketplaceFee(priceGBP + shippingGBP)
	totalCost := roundGBP(priceGBP + shippingGBP + feeGBP)
	if totalCost <= 0 {
		return nil
	}

	marketGBP := roundGBP(marketUSD * rate)
	profit := roundGBP(marketGBP - totalCost)

	return &models.ProfitCalculation{
		PriceGBP:       priceGBP,
		ShippingGBP:    shippingGBP,
		FeeGBP:         feeGBP,
		TotalCostGBP:   totalCost,
		MarketValueGBP: marketGBP,
		ProfitGBP:      profit,
		ProfitPercent:  profit / totalCost * 100,
		ExchangeRate:   rate,
		Condition:      cond,
		GradedRow:      gradedRow,
	}
}

// selectPriceRow picks the market value for the resolved condition, or
// for graded listings the matching graded row by company and grade,
// falling back to the nearest grade when the exact row is absent.
func selectPriceRow(sig *models.ExtractedSignals, match *models.MatchResult, prices *models.CatalogPrices) (float64, models.Condition, bool) {
	if sig.IsGraded() {
		if v := nearestGradedRow(sig.Grading, prices.Graded); v > 0 {
			return v, "", true
		}
		return 0, "", false
	}

	cond := models.ConditionLP
	if sig.Condition != nil {
		cond = sig.Condition.Condition
	}

	for _, variant := range prices.Variants {
		if variant.Printing != match.Printing {
			continue
		}
		if row, ok := variant.Prices[cond]; ok && row.Market > 0 {
			return row.Market, cond, false
		}
		return 0, "", false
	}
	return 0, "", false
}

// nearestGradedRow returns the market value of the same-company row
// with the closest grade. Exact matches win; ties prefer the lower
// grade (the conservative estimate).
func nearestGradedRow(g *models.GradingInfo, rows []models.GradedPriceRow) float64 {
	bestValue := 0.0
	bestDelta := math.MaxFloat64
	bestGrade := 0.0
	for _, row := range rows {
		if row.Company != g.Company || row.Market <= 0 {
			continue
		}
		delta := math.Abs(row.Grade - g.Grade)
		if delta < bestDelta || (delta == bestDelta && row.Grade < bestGrade) {
			bestDelta = delta
			bestValue = row.Market
			bestGrade = row.Grade
		}
	}
	return bestValue
}

// roundGBP rounds to whole pence.
func roundGBP(v float64) float64 {
	return math.Round(v*100) / 100
}

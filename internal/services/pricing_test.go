package services

import (
	"testing"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

func approxEq(a, b float64) bool {
	diff := a - b
	return diff < 0.005 && diff > -0.005
}

func TestMarketplaceFee(t *testing.T) {
	tests := []struct {
		subtotal float64
		want     float64
	}{
		// Flat 0.30 plus 12.8% of the first band.
		{100, 13.10},
		{300, 38.70},
		// 12.8% of 300 plus 9% of the next 200.
		{500, 56.70},
		// All three bands: 38.40 + 63.00 + 3% of 500.
		{1500, 116.70},
		{0, 0.30},
	}

	for _, tt := range tests {
		if got := MarketplaceFee(tt.subtotal); !approxEq(got, tt.want) {
			t.Errorf("MarketplaceFee(%.2f) = %.2f, want %.2f", tt.subtotal, got, tt.want)
		}
	}
}

func rawMatchWithPrices(marketUSD float64) (*models.ExtractedSignals, *models.MatchResult, *models.CatalogPrices) {
	sig := &models.ExtractedSignals{
		CardName:  "Charizard",
		Condition: &models.ResolvedCondition{Condition: models.ConditionLP, Source: models.SourceDefault},
	}
	match := &models.MatchResult{
		Candidate: baseSetCharizard(),
		Printing:  models.PrintingHolo,
	}
	prices := &models.CatalogPrices{
		CandidateID: "base1-4",
		Variants: []models.CatalogVariant{
			{
				Printing: models.PrintingHolo,
				Prices: map[models.Condition]models.PriceRow{
					models.ConditionLP: {Low: marketUSD * 0.8, Market: marketUSD},
				},
			},
		},
	}
	return sig, match, prices
}

func TestComputeProfit(t *testing.T) {
	engine := NewPricingEngine()
	listing := &models.Listing{Price: 100, Currency: "USD", ShippingCost: 10}
	sig, match, prices := rawMatchWithPrices(500)

	calc := engine.Compute(listing, sig, match, prices, 0.8)
	if calc == nil {
		t.Fatal("expected a calculation")
	}

	// 100 USD * 0.8 = 80 GBP, shipping 8 GBP, fee on 88 = 0.30 + 11.26.
	if calc.PriceGBP != 80 {
		t.Errorf("PriceGBP = %.2f, want 80.00", calc.PriceGBP)
	}
	if calc.ShippingGBP != 8 {
		t.Errorf("ShippingGBP = %.2f, want 8.00", calc.ShippingGBP)
	}
	wantFee := 0.30 + roundGBP(88*0.128)
	if !approxEq(calc.FeeGBP, wantFee) {
		t.Errorf("FeeGBP = %.2f, want %.2f", calc.FeeGBP, wantFee)
	}
	wantTotal := roundGBP(80 + 8 + wantFee)
	if !approxEq(calc.TotalCostGBP, wantTotal) {
		t.Errorf("TotalCostGBP = %.2f, want %.2f", calc.TotalCostGBP, wantTotal)
	}
	if calc.MarketValueGBP != 400 {
		t.Errorf("MarketValueGBP = %.2f, want 400.00", calc.MarketValueGBP)
	}
	if !approxEq(calc.ProfitGBP, roundGBP(400-wantTotal)) {
		t.Errorf("ProfitGBP = %.2f, want %.2f", calc.ProfitGBP, roundGBP(400-wantTotal))
	}
	if calc.Condition != models.ConditionLP {
		t.Errorf("Condition = %s, want LP", calc.Condition)
	}
	if calc.GradedRow {
		t.Error("Raw listing must not use a graded row")
	}
}

func TestComputeReturnsNilWithoutData(t *testing.T) {
	engine := NewPricingEngine()
	listing := &models.Listing{Price: 100, Currency: "USD"}
	sig, match, prices := rawMatchWithPrices(500)

	if engine.Compute(listing, sig, match, nil, 0.8) != nil {
		t.Error("nil prices must yield nil, not zero profit")
	}
	if engine.Compute(listing, sig, match, prices, 0) != nil {
		t.Error("zero rate must yield nil")
	}

	// A price table with no row for the resolved condition is also
	// absence of data.
	empty := &models.CatalogPrices{
		Variants: []models.CatalogVariant{
			{Printing: models.PrintingHolo, Prices: map[models.Condition]models.PriceRow{}},
		},
	}
	if engine.Compute(listing, sig, match, empty, 0.8) != nil {
		t.Error("missing condition row must yield nil")
	}
}

func TestComputeGradedUsesNearestGrade(t *testing.T) {
	engine := NewPricingEngine()
	listing := &models.Listing{Price: 200, Currency: "USD"}
	sig := &models.ExtractedSignals{
		CardName: "Charizard",
		Grading:  &models.GradingInfo{Company: models.GradingPSA, Grade: 9},
	}
	match := &models.MatchResult{Candidate: baseSetCharizard(), Printing: models.PrintingHolo}
	prices := &models.CatalogPrices{
		Graded: []models.GradedPriceRow{
			{Company: models.GradingPSA, Grade: 10, Market: 2000},
			{Company: models.GradingPSA, Grade: 8, Market: 600},
			{Company: models.GradingCGC, Grade: 9, Market: 700},
		},
	}

	calc := engine.Compute(listing, sig, match, prices, 0.8)
	if calc == nil {
		t.Fatal("expected a calculation")
	}
	if !calc.GradedRow {
		t.Error("Graded listing should price from a graded row")
	}
	// PSA 9 is absent; PSA 8 and PSA 10 tie on distance and the lower
	// grade wins. The CGC 9 row is never considered.
	if !approxEq(calc.MarketValueGBP, roundGBP(600*0.8)) {
		t.Errorf("MarketValueGBP = %.2f, want %.2f", calc.MarketValueGBP, roundGBP(600*0.8))
	}
}

func TestComputeGradedNoSameCompanyRow(t *testing.T) {
	engine := NewPricingEngine()
	listing := &models.Listing{Price: 200, Currency: "USD"}
	sig := &models.ExtractedSignals{
		Grading: &models.GradingInfo{Company: models.GradingBGS, Grade: 9.5},
	}
	match := &models.MatchResult{Candidate: baseSetCharizard(), Printing: models.PrintingHolo}
	prices := &models.CatalogPrices{
		Graded: []models.GradedPriceRow{
			{Company: models.GradingPSA, Grade: 10, Market: 2000},
		},
	}

	if engine.Compute(listing, sig, match, prices, 0.8) != nil {
		t.Error("No same-company graded row must yield nil")
	}
}

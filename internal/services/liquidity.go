package services

import (
	"context"
	"log"
	"math"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// Tier thresholds: base tier from profit percent and composite
// confidence. Liquidity can demote the base tier, never promote it.
const (
	grailMinProfit = 100.0
	grailMinConf   = 0.85
	hitMinProfit   = 60.0
	hitMinConf     = 0.75
	flipMinProfit  = 40.0

	// velocityProfitThreshold gates the costly sale-velocity lookup:
	// the same cheap-then-confirm economization as the enrichment gate,
	// applied to a different resource.
	velocityProfitThreshold = 75.0
)

// Liquidity blend weights.
const (
	liqWeightTrend        = 0.20
	liqWeightCompleteness = 0.25
	liqWeightSpread       = 0.20
	liqWeightSupply       = 0.20
	liqWeightUnitsSold    = 0.15
)

// TierClassifier combines profit, confidence and supply signals into a
// risk tier plus a liquidity grade.
type TierClassifier struct {
	catalog CatalogClient
	budget  *BudgetGovernor
}

// NewTierClassifier creates a classifier. budget may be nil in tests;
// the velocity lookup is then ungoverned.
func NewTierClassifier(catalog CatalogClient, budget *BudgetGovernor) *TierClassifier {
	return &TierClassifier{catalog: catalog, budget: budget}
}

// Classify computes the tier and liquidity signal for a confirmed match.
// concurrentSupply is how many listings in this scan batch matched the
// same catalog card; high supply suppresses liquidity.
func (c *TierClassifier) Classify(ctx context.Context, match *models.MatchResult, profit *models.ProfitCalculation, prices *models.CatalogPrices, concurrentSupply int) (models.Tier, models.LiquiditySignal) {
	base := baseTier(profit.ProfitPercent, match.Confidence)
	liq := c.liquidity(ctx, match, profit, prices, concurrentSupply)

	tier := base
	if liq.Grade == models.LiquidityD {
		tier = tier.Demote()
	}
	return tier, liq
}

// baseTier maps profit percent and confidence onto the tier ladder.
func baseTier(profitPercent, confidence float64) models.Tier {
	switch {
	case profitPercent >= grailMinProfit && confidence >= grailMinConf:
		return models.TierGrail
	case profitPercent >= hitMinProfit && confidence >= hitMinConf:
		return models.TierHit
	case profitPercent >= flipMinProfit && confidence >= MatchConfidenceThreshold:
		return models.TierFlip
	default:
		return models.TierStandard
	}
}

// liquidity blends the named sub-signals into a [0,1] score and grade.
func (c *TierClassifier) liquidity(ctx context.Context, match *models.MatchResult, profit *models.ProfitCalculation, prices *models.CatalogPrices, concurrentSupply int) models.LiquiditySignal {
	sig := models.LiquiditySignal{ConcurrentSupply: concurrentSupply}

	// Price trend magnitude: a moving price means an active market.
	trend := 0.0
	if prices != nil {
		trend = math.Min(math.Abs(prices.PriceTrend)*4, 1)
		sig.UnitsSold = prices.UnitsSold
	}
	sig.PriceTrend = trend

	sig.Completeness = priceCompleteness(prices)

	// Spread proxy: a very large apparent profit with nothing else
	// confirming it is suspicious, not better.
	sig.SpreadProxy = 1 / (1 + profit.ProfitPercent/100)

	supplyScore := 1.0
	if concurrentSupply > 1 {
		supplyScore = 1 / float64(concurrentSupply)
	}

	unitsScore := 0.0
	if sig.UnitsSold > 0 {
		unitsScore = math.Min(float64(sig.UnitsSold)/50, 1)
	}

	sig.Score = liqWeightTrend*trend +
		liqWeightCompleteness*sig.Completeness +
		liqWeightSpread*sig.SpreadProxy +
		liqWeightSupply*supplyScore +
		liqWeightUnitsSold*unitsScore

	// Sale velocity is a costly lookup; only spent on high-profit
	// candidates, and only when the budget allows it.
	if profit.ProfitPercent >= velocityProfitThreshold && c.catalog != nil {
		if c.budget == nil || c.budget.CanMakeCall() {
			if velocity, err := c.catalog.GetSaleVelocity(ctx, match.Candidate.ID); err == nil {
				if c.budget != nil {
					c.budget.RecordUsage(1)
				}
				sig.SaleVelocity = velocity
				sig.VelocityChecked = true
				// Blend in multiplicatively: dead sale history caps
				// the score, brisk history can only restore it.
				velScore := math.Min(velocity/5, 1)
				sig.Score = sig.Score*0.7 + velScore*0.3
			} else {
				log.Printf("Liquidity: velocity lookup failed for %s: %v", match.Candidate.ID, err)
			}
		}
	}

	if sig.Score > 1 {
		sig.Score = 1
	}
	sig.Grade = gradeFor(sig.Score)
	return sig
}

// priceCompleteness measures how much of the candidate's condition
// table actually has data.
func priceCompleteness(prices *models.CatalogPrices) float64 {
	if prices == nil || len(prices.Variants) == 0 {
		return 0
	}
	filled, total := 0, 0
	for _, v := range prices.Variants {
		for _, cond := range models.AllConditions() {
			total++
			if row, ok := v.Prices[cond]; ok && row.Market > 0 {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

func gradeFor(score float64) models.LiquidityGrade {
	switch {
	case score >= 0.75:
		return models.LiquidityA
	case score >= 0.55:
		return models.LiquidityB
	case score >= 0.35:
		return models.LiquidityC
	default:
		return models.LiquidityD
	}
}

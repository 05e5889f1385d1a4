package models

// LiquidityGrade summarizes how easily a matched card is expected to
// resell, best first.
type LiquidityGrade string

const (
	LiquidityA LiquidityGrade = "A"
	LiquidityB LiquidityGrade = "B"
	LiquidityC LiquidityGrade = "C"
	LiquidityD LiquidityGrade = "D"
)

// LiquiditySignal is the composite liquidity score with its named
// sub-signals. Score is in [0,1].
type LiquiditySignal struct {
	Score            float64        `json:"score"`
	Grade            LiquidityGrade `json:"grade"`
	PriceTrend       float64        `json:"price_trend"`       // trend magnitude contribution
	Completeness     float64        `json:"completeness"`      // catalog price data coverage
	SpreadProxy      float64        `json:"spread_proxy"`      // inverse of apparent profit
	ConcurrentSupply int            `json:"concurrent_supply"` // same card in this scan batch
	UnitsSold        int            `json:"units_sold"`
	SaleVelocity     float64        `json:"sale_velocity,omitempty"` // sales/week, costly lookup
	VelocityChecked  bool           `json:"velocity_checked"`
}

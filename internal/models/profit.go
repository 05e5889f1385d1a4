package models

// ProfitCalculation is the currency- and fee-adjusted economics of one
// listing against its matched catalog price. Deterministic given its
// inputs; all monetary fields are in the target currency (GBP).
type ProfitCalculation struct {
	PriceGBP       float64   `json:"price_gbp"`
	ShippingGBP    float64   `json:"shipping_gbp"`
	FeeGBP         float64   `json:"fee_gbp"`
	TotalCostGBP   float64   `json:"total_cost_gbp"` // price + shipping + fee
	MarketValueGBP float64   `json:"market_value_gbp"`
	ProfitGBP      float64   `json:"profit_gbp"`
	ProfitPercent  float64   `json:"profit_percent"` // profit / total cost * 100
	ExchangeRate   float64   `json:"exchange_rate"`  // source currency -> GBP
	Condition      Condition `json:"condition,omitempty"`
	GradedRow      bool      `json:"graded_row"` // priced from a graded-price row
}

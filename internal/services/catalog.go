package services

import (
	"context"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// CatalogUsage is the provider's remote view of credit consumption for
// the current billing period. The budget governor uses it to recompute
// the dynamic daily allotment.
type CatalogUsage struct {
	PeriodRemaining int       `json:"period_remaining"` // credits left this billing period
	PeriodEnd       time.Time `json:"period_end"`
}

// CatalogClient is the reference catalog and price provider. Consumed,
// not built here; every call costs credits tracked by the budget
// governor.
type CatalogClient interface {
	// FindCandidates returns catalog cards plausibly matching the
	// extracted signals, scoped to the signals' expansion when known.
	FindCandidates(ctx context.Context, signals *models.ExtractedSignals) ([]models.CatalogCandidate, error)

	// GetPrices returns the per-condition and per-grade price rows for
	// one candidate.
	GetPrices(ctx context.Context, candidateID string) (*models.CatalogPrices, error)

	// GetSaleVelocity returns historical sales per week. This is a
	// costly call spent only on high-profit candidates.
	GetSaleVelocity(ctx context.Context, candidateID string) (float64, error)

	// Usage returns the remote credit consumption snapshot.
	Usage(ctx context.Context) (*CatalogUsage, error)
}

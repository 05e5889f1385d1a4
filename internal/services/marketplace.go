package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// MarketplaceClient is the listing search side. Consumed, not built
// here. GetDetail returning (nil, nil) signals that the client itself
// is out of budget or rate-limited.
type MarketplaceClient interface {
	Search(ctx context.Context, query string, limit int) ([]models.Listing, error)
	GetDetail(ctx context.Context, listingID string) (*models.ListingDetail, error)
}

// RateLimitedMarketplace enforces a requests-per-second ceiling on top
// of any wrapped client. This is a different constraint from the credit
// budget (requests/second vs calls/day) and both must hold.
type RateLimitedMarketplace struct {
	inner   MarketplaceClient
	limiter *rate.Limiter
}

// NewRateLimitedMarketplace wraps a client with a token bucket of rps
// requests per second and the given burst.
func NewRateLimitedMarketplace(inner MarketplaceClient, rps float64, burst int) *RateLimitedMarketplace {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedMarketplace{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Search refuses immediately with ErrRateLimited when no token is
// available; the scan cycle treats that as a soft failure and backs off
// to the next cycle rather than queueing work.
func (c *RateLimitedMarketplace) Search(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}
	listings, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("marketplace search %q: %w", query, err)
	}
	return listings, nil
}

// GetDetail waits for a token (a single detail fetch is worth a short
// wait) and then delegates. A nil detail with nil error means the inner
// client is out of budget.
func (c *RateLimitedMarketplace) GetDetail(ctx context.Context, listingID string) (*models.ListingDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.GetDetail(ctx, listingID)
}

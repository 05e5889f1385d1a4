package services

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gradyfinch/tcg-sniper/internal/metrics"
	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// Volatility-tiered TTLs for catalog price lookups. Graded and vintage
// prices barely move day to day; brand-new sets move fast and must be
// refreshed more often.
const (
	cacheTTLGradedVintage = 72 * time.Hour
	cacheTTLStable        = 36 * time.Hour
	cacheTTLRecent        = 12 * time.Hour

	// Sets younger than this are "recent" for cache purposes.
	recentSetAge = 180 * 24 * time.Hour
	// Sets older than this are vintage.
	vintageSetAge = 15 * 365 * 24 * time.Hour

	priceCacheSize = 2048
)

// PriceCacheTier names the TTL bucket a lookup landed in.
type PriceCacheTier string

const (
	CacheTierGradedVintage PriceCacheTier = "graded_vintage"
	CacheTierStable        PriceCacheTier = "stable"
	CacheTierRecent        PriceCacheTier = "recent"
)

// TieredPriceCache caches catalog price lookups with a TTL chosen by
// the price volatility of the card being looked up.
type TieredPriceCache struct {
	catalog CatalogClient

	gradedVintage *expirable.LRU[string, *models.CatalogPrices]
	stable        *expirable.LRU[string, *models.CatalogPrices]
	recent        *expirable.LRU[string, *models.CatalogPrices]

	now func() time.Time // test hook
}

// NewTieredPriceCache wraps a catalog client with the tiered cache.
func NewTieredPriceCache(catalog CatalogClient) *TieredPriceCache {
	return &TieredPriceCache{
		catalog:       catalog,
		gradedVintage: expirable.NewLRU[string, *models.CatalogPrices](priceCacheSize, nil, cacheTTLGradedVintage),
		stable:        expirable.NewLRU[string, *models.CatalogPrices](priceCacheSize, nil, cacheTTLStable),
		recent:        expirable.NewLRU[string, *models.CatalogPrices](priceCacheSize, nil, cacheTTLRecent),
		now:           time.Now,
	}
}

// TierFor selects the TTL bucket for a candidate. Graded lookups share
// the slow-moving bucket with vintage sets.
func (c *TieredPriceCache) TierFor(cand *models.CatalogCandidate, graded bool) PriceCacheTier {
	if graded {
		return CacheTierGradedVintage
	}
	age := c.now().Sub(cand.ReleasedAt)
	switch {
	case age >= vintageSetAge:
		return CacheTierGradedVintage
	case age <= recentSetAge:
		return CacheTierRecent
	default:
		return CacheTierStable
	}
}

// GetPrices returns the price table for a candidate, from cache when
// fresh. A cache hit costs no credits; the caller only records usage
// when the underlying call actually happened (hit return is false).
func (c *TieredPriceCache) GetPrices(ctx context.Context, cand *models.CatalogCandidate, graded bool) (prices *models.CatalogPrices, hit bool, err error) {
	tier := c.TierFor(cand, graded)
	cache := c.cacheFor(tier)

	if cached, ok := cache.Get(cand.ID); ok {
		metrics.PriceCacheHits.WithLabelValues(string(tier)).Inc()
		return cached, true, nil
	}
	metrics.PriceCacheMisses.WithLabelValues(string(tier)).Inc()

	prices, err = c.catalog.GetPrices(ctx, cand.ID)
	if err != nil {
		return nil, false, err
	}
	if prices != nil {
		cache.Add(cand.ID, prices)
	} else {
		log.Printf("Price cache: no prices returned for %s", cand.ID)
	}
	return prices, false, nil
}

func (c *TieredPriceCache) cacheFor(tier PriceCacheTier) *expirable.LRU[string, *models.CatalogPrices] {
	switch tier {
	case CacheTierGradedVintage:
		return c.gradedVintage
	case CacheTierRecent:
		return c.recent
	default:
		return c.stable
	}
}

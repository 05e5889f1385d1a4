// Package metrics provides Prometheus metrics for the deal scanner.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan cycle metrics
	ScanCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sniper_scan_cycles_total",
			Help: "Total number of scan cycles run",
		},
	)

	ScanCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sniper_scan_cycle_duration_seconds",
			Help:    "Time taken to run one scan cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ListingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_listings_processed_total",
			Help: "Listings processed by outcome",
		},
		[]string{"outcome"}, // "deal", "duplicate", "junk", "blocked", "no_match", "gated", "error"
	)

	// Deal metrics
	DealsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_deals_created_total",
			Help: "Deals created by tier",
		},
		[]string{"tier"},
	)

	DealProfitPercent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sniper_deal_profit_percent",
			Help:    "Profit percent of created deals",
			Buckets: []float64{20, 30, 40, 60, 80, 100, 150, 250, 500},
		},
	)

	// Budget metrics
	BudgetCreditsUsedToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sniper_budget_credits_used_today",
			Help: "Credits consumed today (resets at midnight)",
		},
	)

	BudgetDailyAllotment = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sniper_budget_daily_allotment",
			Help: "Today's dynamic credit allotment",
		},
	)

	EnrichmentCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sniper_enrichment_calls_total",
			Help: "Costly detail fetches spent",
		},
	)

	// Price cache metrics
	PriceCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_price_cache_hits_total",
			Help: "Catalog price cache hits by TTL tier",
		},
		[]string{"tier"},
	)

	PriceCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_price_cache_misses_total",
			Help: "Catalog price cache misses by TTL tier",
		},
		[]string{"tier"},
	)

	// Exchange rate metrics
	ExchangeRateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sniper_exchange_rate_failures_total",
			Help: "Exchange rate fetches that exhausted all retries",
		},
	)
)

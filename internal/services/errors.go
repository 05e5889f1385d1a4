package services

import "errors"

// Sentinel errors for the soft-failure paths of the scan pipeline.
// Junk, no-match and blocked-condition listings are normal outcomes and
// carry no error at all.
var (
	// ErrRateLimited means the marketplace client refused the call at
	// its request-rate ceiling. The cycle returns early instead of
	// retrying synchronously.
	ErrRateLimited = errors.New("marketplace rate limited")

	// ErrBudgetExhausted means the credit budget has nothing left for
	// today (or we are outside operating hours).
	ErrBudgetExhausted = errors.New("credit budget exhausted")

	// ErrExchangeRateUnavailable means FX retrieval failed after all
	// retries with no usable fallback. Nothing downstream can be
	// priced, so the remainder of the cycle aborts.
	ErrExchangeRateUnavailable = errors.New("exchange rate unavailable")

	// ErrEnrichmentFetchFailed means the detail fetch for one listing
	// failed; only that listing is skipped.
	ErrEnrichmentFetchFailed = errors.New("enrichment fetch failed")
)

package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/metrics"
)

// ExchangeRateProvider is the external FX source. GetRate may fail;
// callers go through RetryingExchangeRate which retries and falls back.
type ExchangeRateProvider interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

const (
	exchangeRetryAttempts = 3
	exchangeRetryBaseWait = 500 * time.Millisecond

	// fallbackUSDGBP is the hard fallback when every retry fails and no
	// previous rate was seen. Stale precision beats a halted pipeline.
	fallbackUSDGBP = 0.78
)

// RetryingExchangeRate wraps a provider with exponential-backoff retry
// and a last-known-good fallback. A transient FX outage degrades
// pricing precision rather than halting the scan cycle.
type RetryingExchangeRate struct {
	provider ExchangeRateProvider

	mu       sync.Mutex
	lastGood map[string]float64 // "USD/GBP" -> rate
}

// NewRetryingExchangeRate wraps the given provider.
func NewRetryingExchangeRate(provider ExchangeRateProvider) *RetryingExchangeRate {
	return &RetryingExchangeRate{
		provider: provider,
		lastGood: make(map[string]float64),
	}
}

// GetRate fetches a rate with retries. On total failure it returns the
// last good rate for the pair, then the hard fallback constant for
// USD/GBP. Only an unknown non-USD pair with no history errors out.
func (r *RetryingExchangeRate) GetRate(ctx context.Context, from, to string) (float64, error) {
	var lastErr error
	wait := exchangeRetryBaseWait
	for attempt := 0; attempt < exchangeRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		rate, err := r.provider.GetRate(ctx, from, to)
		if err == nil && rate > 0 {
			r.mu.Lock()
			r.lastGood[from+"/"+to] = rate
			r.mu.Unlock()
			return rate, nil
		}
		lastErr = err
	}

	metrics.ExchangeRateFailures.Inc()
	r.mu.Lock()
	cached, ok := r.lastGood[from+"/"+to]
	r.mu.Unlock()
	if ok {
		log.Printf("Exchange: all retries failed (%v), using last good %s/%s rate %.4f", lastErr, from, to, cached)
		return cached, nil
	}
	if from == "USD" && to == "GBP" {
		log.Printf("Exchange: all retries failed (%v), using fallback USD/GBP rate %.2f", lastErr, fallbackUSDGBP)
		return fallbackUSDGBP, nil
	}
	return 0, ErrExchangeRateUnavailable
}

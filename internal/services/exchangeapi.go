package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	exchangeDefaultTimeout = 10 * time.Second
)

// ExchangeAPIClient fetches spot rates from a frankfurter-compatible
// endpoint. Wrapped by RetryingExchangeRate in production wiring.
type ExchangeAPIClient struct {
	client  *http.Client
	baseURL string
}

type exchangeRateResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// NewExchangeAPIClient creates the FX client.
func NewExchangeAPIClient(baseURL string) *ExchangeAPIClient {
	return &ExchangeAPIClient{
		client: &http.Client{
			Timeout: exchangeDefaultTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GetRate fetches the from->to spot rate.
func (s *ExchangeAPIClient) GetRate(ctx context.Context, from, to string) (float64, error) {
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/latest?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("exchange rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("exchange rate API error: status %d", resp.StatusCode)
	}

	var rateResp exchangeRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateResp); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	rate, ok := rateResp.Rates[strings.ToUpper(to)]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchange rate API returned no %s rate", to)
	}
	return rate, nil
}

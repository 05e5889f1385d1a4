package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

const (
	marketplaceDefaultTimeout = 15 * time.Second
)

// MarketplaceAPIClient talks to the marketplace search API. Detail
// fetches are metered against a separate daily allowance on the
// marketplace side; when it runs out, GetDetail returns (nil, nil) and
// the pipeline keeps running on search data alone.
type MarketplaceAPIClient struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	dailyLimit int

	// Detail-call metering
	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

type marketplaceSearchResponse struct {
	Success bool                  `json:"success"`
	Data    []marketplaceItemData `json:"data"`
	Error   string                `json:"error,omitempty"`
}

type marketplaceItemData struct {
	ItemID         string  `json:"item_id"`
	Title          string  `json:"title"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	ShippingCost   float64 `json:"shipping_cost"`
	Condition      string  `json:"condition,omitempty"`
	SellerID       string  `json:"seller_id"`
	SellerScore    int     `json:"seller_score"`
	SellerPositive float64 `json:"seller_positive_percent"`
	URL            string  `json:"url"`
	ListedAt       string  `json:"listed_at"` // RFC3339
}

type marketplaceDetailResponse struct {
	Success bool                  `json:"success"`
	Data    marketplaceDetailData `json:"data"`
	Error   string                `json:"error,omitempty"`
}

type marketplaceDetailData struct {
	marketplaceItemData
	Description          string            `json:"description"`
	ItemSpecifics        map[string]string `json:"item_specifics"`
	ConditionDescriptors []string          `json:"condition_descriptors"`
}

// NewMarketplaceAPIClient creates the marketplace client.
func NewMarketplaceAPIClient(baseURL, apiKey string, dailyDetailLimit int) *MarketplaceAPIClient {
	if dailyDetailLimit <= 0 {
		dailyDetailLimit = 200
	}
	return &MarketplaceAPIClient{
		client: &http.Client{
			Timeout: marketplaceDefaultTimeout,
		},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dailyLimit: dailyDetailLimit,
	}
}

// checkDetailLimit checks if we can make another detail request today
// Returns true if request can proceed, false if the allowance is spent
func (s *MarketplaceAPIClient) checkDetailLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Reset counter if new day
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}

	s.requestsToday++
	return true
}

// Search returns listings matching the query, newest first.
func (s *MarketplaceAPIClient) Search(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("sort", "newly_listed")

	var searchResp marketplaceSearchResponse
	if err := s.get(ctx, "/listings/search?"+params.Encode(), &searchResp); err != nil {
		return nil, fmt.Errorf("marketplace search: %w", err)
	}
	if !searchResp.Success {
		return nil, apiError("marketplace search", searchResp.Error)
	}

	listings := make([]models.Listing, 0, len(searchResp.Data))
	for _, d := range searchResp.Data {
		listings = append(listings, mapListing(d))
	}
	return listings, nil
}

// GetDetail fetches the full listing. Returns (nil, nil) when the
// daily detail allowance is spent.
func (s *MarketplaceAPIClient) GetDetail(ctx context.Context, listingID string) (*models.ListingDetail, error) {
	if !s.checkDetailLimit() {
		return nil, nil
	}

	var detailResp marketplaceDetailResponse
	if err := s.get(ctx, "/listings/"+url.PathEscape(listingID), &detailResp); err != nil {
		return nil, fmt.Errorf("marketplace detail: %w", err)
	}
	if !detailResp.Success {
		return nil, apiError("marketplace detail", detailResp.Error)
	}

	d := detailResp.Data
	return &models.ListingDetail{
		Listing:              mapListing(d.marketplaceItemData),
		Description:          d.Description,
		ItemSpecifics:        d.ItemSpecifics,
		ConditionDescriptors: d.ConditionDescriptors,
	}, nil
}

func (s *MarketplaceAPIClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func mapListing(d marketplaceItemData) models.Listing {
	listing := models.Listing{
		ExternalID:     d.ItemID,
		Title:          d.Title,
		Price:          d.Price,
		Currency:       strings.ToUpper(d.Currency),
		ShippingCost:   d.ShippingCost,
		ConditionHint:  d.Condition,
		SellerID:       d.SellerID,
		SellerScore:    d.SellerScore,
		SellerPositive: d.SellerPositive,
		URL:            d.URL,
	}
	if listed, err := time.Parse(time.RFC3339, d.ListedAt); err == nil {
		listing.ListedAt = listed
	}
	return listing
}

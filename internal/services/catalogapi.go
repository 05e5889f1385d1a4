package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

const (
	catalogDefaultTimeout = 10 * time.Second
)

// CatalogAPIClient talks to the card catalog API for candidate lookup,
// pricing and sale history. Every call costs catalog credits; callers
// account for them through the budget governor.
type CatalogAPIClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

type catalogCardResponse struct {
	Success bool              `json:"success"`
	Data    []catalogCardData `json:"data"`
	Error   string            `json:"error,omitempty"`
}

type catalogCardData struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Number       string   `json:"number"`
	PrintedTotal string   `json:"printed_total"`
	SetID        string   `json:"set_id"`
	SetName      string   `json:"set_name"`
	ReleaseDate  string   `json:"release_date"` // YYYY/MM/DD
	Printings    []string `json:"printings"`
}

type catalogPriceResponse struct {
	Success bool             `json:"success"`
	Data    catalogPriceData `json:"data"`
	Error   string           `json:"error,omitempty"`
}

type catalogPriceData struct {
	CardID     string               `json:"card_id"`
	Variants   []catalogVariantData `json:"variants"`
	Graded     []catalogGradedData  `json:"graded"`
	UnitsSold  int                  `json:"units_sold"`
	PriceTrend float64              `json:"price_trend"`
}

type catalogVariantData struct {
	Printing string                    `json:"printing"`
	Prices   map[string]catalogRowData `json:"prices"` // keyed by condition
}

type catalogRowData struct {
	Low    float64 `json:"low"`
	Market float64 `json:"market"`
}

type catalogGradedData struct {
	Company string  `json:"company"`
	Grade   float64 `json:"grade"`
	Market  float64 `json:"market"`
}

type catalogVelocityResponse struct {
	Success bool    `json:"success"`
	PerWeek float64 `json:"sales_per_week"`
	Error   string  `json:"error,omitempty"`
}

type catalogUsageResponse struct {
	Success         bool   `json:"success"`
	PeriodRemaining int    `json:"period_remaining"`
	PeriodEnd       string `json:"period_end"` // RFC3339
	Error           string `json:"error,omitempty"`
}

// NewCatalogAPIClient creates the catalog client.
func NewCatalogAPIClient(baseURL, apiKey string) *CatalogAPIClient {
	return &CatalogAPIClient{
		client: &http.Client{
			Timeout: catalogDefaultTimeout,
		},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FindCandidates queries the catalog with the extracted signals. Name
// drives the search; number and expansion narrow it when present.
func (s *CatalogAPIClient) FindCandidates(ctx context.Context, signals *models.ExtractedSignals) ([]models.CatalogCandidate, error) {
	params := url.Values{}
	if signals.CardName != "" {
		params.Set("name", signals.CardName)
	}
	if signals.CardNumber != "" {
		params.Set("number", signals.CardNumber)
	}
	if signals.ExpansionGuess != "" {
		params.Set("set", signals.ExpansionGuess)
	}
	params.Set("game", "pokemon")

	var cardResp catalogCardResponse
	if err := s.get(ctx, "/cards/search?"+params.Encode(), &cardResp); err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	if !cardResp.Success {
		return nil, apiError("catalog search", cardResp.Error)
	}

	candidates := make([]models.CatalogCandidate, 0, len(cardResp.Data))
	for _, d := range cardResp.Data {
		candidates = append(candidates, mapCandidate(d))
	}
	return candidates, nil
}

// GetPrices fetches per-condition and per-grade price rows.
func (s *CatalogAPIClient) GetPrices(ctx context.Context, candidateID string) (*models.CatalogPrices, error) {
	var priceResp catalogPriceResponse
	if err := s.get(ctx, "/cards/"+url.PathEscape(candidateID)+"/prices", &priceResp); err != nil {
		return nil, fmt.Errorf("catalog prices: %w", err)
	}
	if !priceResp.Success {
		return nil, apiError("catalog prices", priceResp.Error)
	}
	return mapPrices(priceResp.Data), nil
}

// GetSaleVelocity fetches historical sales per week.
func (s *CatalogAPIClient) GetSaleVelocity(ctx context.Context, candidateID string) (float64, error) {
	var velResp catalogVelocityResponse
	if err := s.get(ctx, "/cards/"+url.PathEscape(candidateID)+"/velocity", &velResp); err != nil {
		return 0, fmt.Errorf("catalog velocity: %w", err)
	}
	if !velResp.Success {
		return 0, apiError("catalog velocity", velResp.Error)
	}
	return velResp.PerWeek, nil
}

// Usage fetches the billing period's remaining credit count.
func (s *CatalogAPIClient) Usage(ctx context.Context) (*CatalogUsage, error) {
	var usageResp catalogUsageResponse
	if err := s.get(ctx, "/account/usage", &usageResp); err != nil {
		return nil, fmt.Errorf("catalog usage: %w", err)
	}
	if !usageResp.Success {
		return nil, apiError("catalog usage", usageResp.Error)
	}

	usage := &CatalogUsage{PeriodRemaining: usageResp.PeriodRemaining}
	if end, err := time.Parse(time.RFC3339, usageResp.PeriodEnd); err == nil {
		usage.PeriodEnd = end
	}
	return usage, nil
}

func (s *CatalogAPIClient) get(ctx context.Context, path string, out interface{}) error {
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

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(op, msg string) error {
	if msg != "" {
		return fmt.Errorf("%s: %s", op, msg)
	}
	return fmt.Errorf("%s: unsuccessful response", op)
}

func mapCandidate(d catalogCardData) models.CatalogCandidate {
	cand := models.CatalogCandidate{
		ID:            d.ID,
		Name:          d.Name,
		Number:        d.Number,
		Denominator:   d.PrintedTotal,
		ExpansionID:   d.SetID,
		ExpansionName: d.SetName,
	}
	if released, err := time.Parse("2006/01/02", d.ReleaseDate); err == nil {
		cand.ReleasedAt = released
	}
	for _, p := range d.Printings {
		cand.Printings = append(cand.Printings, models.PrintingType(p))
	}
	return cand
}

func mapPrices(d catalogPriceData) *models.CatalogPrices {
	prices := &models.CatalogPrices{
		CandidateID: d.CardID,
		UnitsSold:   d.UnitsSold,
		PriceTrend:  d.PriceTrend,
		FetchedAt:   time.Now(),
	}
	for _, v := range d.Variants {
		variant := models.CatalogVariant{
			Printing: models.PrintingType(v.Printing),
			Prices:   make(map[models.Condition]models.PriceRow, len(v.Prices)),
		}
		for cond, row := range v.Prices {
			mapped, ok := mapCatalogCondition(cond)
			if !ok {
				continue
			}
			variant.Prices[mapped] = models.PriceRow{Low: row.Low, Market: row.Market}
		}
		prices.Variants = append(prices.Variants, variant)
	}
	for _, g := range d.Graded {
		company := models.ParseGradingCompany(g.Company)
		if company == "" {
			continue
		}
		prices.Graded = append(prices.Graded, models.GradedPriceRow{
			Company: company,
			Grade:   g.Grade,
			Market:  g.Market,
		})
	}
	return prices
}

// mapCatalogCondition maps API condition strings to our Condition type
func mapCatalogCondition(condition string) (models.Condition, bool) {
	switch strings.ToUpper(condition) {
	case "NM", "NEAR MINT":
		return models.ConditionNM, true
	case "LP", "LIGHTLY PLAYED":
		return models.ConditionLP, true
	case "MP", "MODERATELY PLAYED":
		return models.ConditionMP, true
	case "HP", "HEAVILY PLAYED":
		return models.ConditionHP, true
	default:
		return "", false
	}
}

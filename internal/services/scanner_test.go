package services

import (
	"context"
	"testing"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

type stubMarketplace struct {
	listings []models.Listing
	detail   *models.ListingDetail

	searchErr error
	detailErr error

	searchCalls int
	detailCalls int
}

func (s *stubMarketplace) Search(ctx context.Context, query string, limit int) ([]models.Listing, error) {
	s.searchCalls++
	return s.listings, s.searchErr
}

func (s *stubMarketplace) GetDetail(ctx context.Context, listingID string) (*models.ListingDetail, error) {
	s.detailCalls++
	return s.detail, s.detailErr
}

type stubRateProvider struct {
	rate float64
	err  error
}

func (s *stubRateProvider) GetRate(ctx context.Context, from, to string) (float64, error) {
	return s.rate, s.err
}

// memorySink collects deals without a database.
type memorySink struct {
	deals []*models.Deal
}

func (m *memorySink) CreateDeal(in DealInput) (*models.Deal, error) {
	for _, d := range m.deals {
		if d.ListingID == in.Listing.ExternalID {
			return nil, nil
		}
	}
	deal := buildDeal(in)
	m.deals = append(m.deals, deal)
	return deal, nil
}

func daytimeGovernor(credits int) *BudgetGovernor {
	g := NewBudgetGovernor(BudgetConfig{DailyCredits: credits})
	g.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return g
}

func goodListing() models.Listing {
	return models.Listing{
		ExternalID:     "item-1",
		Title:          "Charizard 4/102 Base Set Holo",
		Price:          20,
		Currency:       "USD",
		SellerID:       "seller-1",
		SellerScore:    500,
		SellerPositive: 99.5,
		URL:            "https://example.test/item-1",
	}
}

func newTestScanner(marketplace MarketplaceClient, catalog CatalogClient, budget *BudgetGovernor, sink DealSink) *Scanner {
	s := NewScanner(ScannerDeps{
		Marketplace: marketplace,
		Catalog:     catalog,
		Exchange:    NewRetryingExchangeRate(&stubRateProvider{rate: 0.8}),
		Budget:      budget,
		Deals:       sink,
	})
	s.SetSearchType(models.SearchTypeCustom)
	s.SetCustomQueries([]models.ScanQuery{
		{Term: "charizard", Category: models.CategoryCustom, Weight: 1, Enabled: true},
	})
	return s
}

func TestScanCycleCreatesDeal(t *testing.T) {
	listing := goodListing()
	marketplace := &stubMarketplace{
		listings: []models.Listing{listing},
		detail: &models.ListingDetail{
			Listing:              listing,
			ConditionDescriptors: []string{"400010"}, // NM
		},
	}
	catalog := &stubCatalog{
		candidates: []models.CatalogCandidate{baseSetCharizard()},
		prices:     fullPriceTable(),
	}
	sink := &memorySink{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), sink)

	stats := scanner.RunScanCycle(context.Background())

	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1", stats.Processed)
	}
	if stats.EnrichmentCalls != 1 {
		t.Errorf("EnrichmentCalls = %d, want 1", stats.EnrichmentCalls)
	}
	if stats.Deals != 1 {
		t.Fatalf("Deals = %d, want 1", stats.Deals)
	}

	deal := sink.deals[0]
	if deal.ListingID != "item-1" {
		t.Errorf("ListingID = %s", deal.ListingID)
	}
	if deal.CardName != "Charizard" {
		t.Errorf("CardName = %s", deal.CardName)
	}
	if deal.ConfidenceTier != models.ConfidenceHigh {
		t.Errorf("ConfidenceTier = %s, want high", deal.ConfidenceTier)
	}
	if deal.ProfitPercent < 100 {
		t.Errorf("ProfitPercent = %.0f, expected a large margin", deal.ProfitPercent)
	}
}

func TestScanCycleDeduplicates(t *testing.T) {
	listing := goodListing()
	marketplace := &stubMarketplace{
		listings: []models.Listing{listing},
		detail: &models.ListingDetail{
			Listing:              listing,
			ConditionDescriptors: []string{"400010"},
		},
	}
	catalog := &stubCatalog{
		candidates: []models.CatalogCandidate{baseSetCharizard()},
		prices:     fullPriceTable(),
	}
	sink := &memorySink{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), sink)

	scanner.RunScanCycle(context.Background())
	stats := scanner.RunScanCycle(context.Background())

	if stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", stats.Duplicates)
	}
	if stats.Deals != 0 {
		t.Errorf("Deals = %d, want 0 on the repeat cycle", stats.Deals)
	}
	if len(sink.deals) != 1 {
		t.Errorf("Expected exactly one deal across both cycles, got %d", len(sink.deals))
	}
}

func TestScanCycleJunkNeverReachesCatalog(t *testing.T) {
	marketplace := &stubMarketplace{
		listings: []models.Listing{{
			ExternalID: "junk-1",
			Title:      "Pokemon card lot of 50 holos",
			Price:      10,
			Currency:   "USD",
		}},
	}
	catalog := &stubCatalog{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), &memorySink{})

	stats := scanner.RunScanCycle(context.Background())

	if stats.Junk != 1 {
		t.Errorf("Junk = %d, want 1", stats.Junk)
	}
	if catalog.findCalls != 0 {
		t.Errorf("Junk listings must never reach the catalog, got %d calls", catalog.findCalls)
	}
}

func TestScanCycleBlockedCondition(t *testing.T) {
	marketplace := &stubMarketplace{
		listings: []models.Listing{{
			ExternalID: "dmg-1",
			Title:      "Charizard 4/102 Base Set creased",
			Price:      10,
			Currency:   "USD",
		}},
	}
	catalog := &stubCatalog{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), &memorySink{})

	stats := scanner.RunScanCycle(context.Background())

	if stats.Blocked != 1 {
		t.Errorf("Blocked = %d, want 1", stats.Blocked)
	}
	if catalog.findCalls != 0 {
		t.Errorf("Blocked listings must never reach the catalog, got %d calls", catalog.findCalls)
	}
}

func TestScanCycleSkipsWhenBudgetUnavailable(t *testing.T) {
	marketplace := &stubMarketplace{listings: []models.Listing{goodListing()}}
	budget := daytimeGovernor(1)
	budget.RecordUsage(1)
	scanner := newTestScanner(marketplace, &stubCatalog{}, budget, &memorySink{})

	stats := scanner.RunScanCycle(context.Background())

	if marketplace.searchCalls != 0 {
		t.Errorf("Exhausted budget must skip the cycle, got %d searches", marketplace.searchCalls)
	}
	if stats.Processed != 0 {
		t.Errorf("Processed = %d, want 0", stats.Processed)
	}
}

func TestScanCycleRateLimitedSoftFail(t *testing.T) {
	marketplace := &stubMarketplace{searchErr: ErrRateLimited}
	scanner := newTestScanner(marketplace, &stubCatalog{}, daytimeGovernor(500), &memorySink{})

	stats := scanner.RunScanCycle(context.Background())

	// Rate limiting yields the cycle without counting as an error.
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0 for a rate-limited cycle", stats.Errors)
	}
	if marketplace.searchCalls != 1 {
		t.Errorf("Expected the cycle to stop after the first limited search, got %d", marketplace.searchCalls)
	}
}

func TestScanCycleGatesThinMargins(t *testing.T) {
	// Listing priced close to market: real but not worth a detail fetch.
	listing := goodListing()
	listing.Price = 95 // ~76 GBP cost vs 64 GBP market value

	marketplace := &stubMarketplace{listings: []models.Listing{listing}}
	catalog := &stubCatalog{
		candidates: []models.CatalogCandidate{baseSetCharizard()},
		prices:     fullPriceTable(),
	}
	sink := &memorySink{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), sink)

	stats := scanner.RunScanCycle(context.Background())

	if stats.Gated != 1 {
		t.Errorf("Gated = %d, want 1", stats.Gated)
	}
	if marketplace.detailCalls != 0 {
		t.Errorf("Gated listings must not spend a detail fetch, got %d", marketplace.detailCalls)
	}
	if len(sink.deals) != 0 {
		t.Errorf("Expected no deals, got %d", len(sink.deals))
	}
}

func TestScanModeFiltersListings(t *testing.T) {
	marketplace := &stubMarketplace{listings: []models.Listing{goodListing()}}
	catalog := &stubCatalog{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), &memorySink{})
	scanner.SetCustomQueries([]models.ScanQuery{
		{Term: "psa 10 charizard", Category: models.CategoryGraded, Weight: 1, Enabled: true},
	})
	scanner.SetScanMode(models.ScanModeGradedOnly)

	stats := scanner.RunScanCycle(context.Background())

	// The raw Charizard listing is filtered before any catalog work.
	if catalog.findCalls != 0 {
		t.Errorf("Mode-filtered listings must not reach the catalog, got %d calls", catalog.findCalls)
	}
	if stats.Deals != 0 {
		t.Errorf("Deals = %d, want 0", stats.Deals)
	}
}

func TestSelectQueriesModeFilter(t *testing.T) {
	scanner := newTestScanner(&stubMarketplace{}, &stubCatalog{}, daytimeGovernor(500), &memorySink{})
	scanner.SetSearchType(models.SearchTypeRotation)

	scanner.SetScanMode(models.ScanModeGradedOnly)
	for _, q := range scanner.selectQueries(models.ScanModeGradedOnly) {
		if q.Category != models.CategoryGraded {
			t.Errorf("graded_only rotation leaked query %q (%s)", q.Term, q.Category)
		}
	}

	for _, q := range scanner.selectQueries(models.ScanModeRawOnly) {
		if q.Category == models.CategoryGraded {
			t.Errorf("raw_only rotation leaked graded query %q", q.Term)
		}
	}
}

func TestWeightedDraw(t *testing.T) {
	pool := []models.ScanQuery{
		{Term: "a", Weight: 1, Enabled: true},
		{Term: "b", Weight: 3, Enabled: true},
		{Term: "c", Weight: 2, Enabled: true},
		{Term: "d", Weight: 1, Enabled: true},
	}

	picked := weightedDraw(pool, 3)
	if len(picked) != 3 {
		t.Fatalf("Expected 3 queries, got %d", len(picked))
	}
	seen := map[string]bool{}
	for _, q := range picked {
		if seen[q.Term] {
			t.Errorf("Query %q drawn twice", q.Term)
		}
		seen[q.Term] = true
	}

	// A pool smaller than the draw comes back whole.
	small := weightedDraw(pool[:2], 3)
	if len(small) != 2 {
		t.Errorf("Expected the whole small pool, got %d", len(small))
	}
}

func TestBuildDeal(t *testing.T) {
	listing := goodListing()
	match := &models.MatchResult{
		Candidate:  baseSetCharizard(),
		Printing:   models.PrintingHolo,
		Confidence: 0.9,
	}
	profit := &models.ProfitCalculation{
		TotalCostGBP:   20,
		MarketValueGBP: 80,
		ProfitGBP:      60,
		ProfitPercent:  300,
		Condition:      models.ConditionNM,
	}

	raw := buildDeal(DealInput{
		Listing: &listing,
		Signals: &models.ExtractedSignals{
			Condition: &models.ResolvedCondition{Condition: models.ConditionNM},
		},
		Match:     match,
		Profit:    profit,
		Liquidity: models.LiquiditySignal{Score: 0.8, Grade: models.LiquidityA},
		Tier:      models.TierGrail,
	})
	if raw.ID == "" {
		t.Error("Deal needs a generated id")
	}
	if raw.Condition != models.ConditionNM || raw.GradeLabel != "" {
		t.Errorf("Raw deal should carry a condition, got %s / %q", raw.Condition, raw.GradeLabel)
	}
	if !raw.ExpiresAt.After(raw.CreatedAt) {
		t.Error("ExpiresAt must be after CreatedAt")
	}

	graded := buildDeal(DealInput{
		Listing: &listing,
		Signals: &models.ExtractedSignals{
			Grading: &models.GradingInfo{Company: models.GradingPSA, Grade: 9.5},
		},
		Match:     match,
		Profit:    &models.ProfitCalculation{GradedRow: true},
		Liquidity: models.LiquiditySignal{Grade: models.LiquidityB},
		Tier:      models.TierHit,
	})
	if graded.GradeLabel != "PSA 9.5" {
		t.Errorf("GradeLabel = %q, want PSA 9.5", graded.GradeLabel)
	}
	if graded.Condition != "" {
		t.Errorf("Graded deal must not carry an ungraded condition, got %s", graded.Condition)
	}
}

func TestPenaltyDropsBorderlineMatchBelowThreshold(t *testing.T) {
	listing := models.Listing{
		ExternalID:     "shady-1",
		Title:          "Charizard 4/102 untested no returns",
		Price:          20,
		Currency:       "USD",
		SellerID:       "shady",
		SellerScore:    5,
		SellerPositive: 90,
	}
	marketplace := &stubMarketplace{listings: []models.Listing{listing}}
	catalog := &stubCatalog{
		candidates: []models.CatalogCandidate{baseSetCharizard()},
		prices:     fullPriceTable(),
	}
	sink := &memorySink{}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), sink)

	// Without penalties the match clears the acceptance threshold.
	sig, reject := scanner.extractor.Extract(listing.Title, nil)
	if reject != models.RejectNone {
		t.Fatalf("unexpected rejection: %s", reject)
	}
	match, err := scanner.matcher.Match(context.Background(), sig)
	if err != nil || match == nil {
		t.Fatalf("match failed: %v", err)
	}
	if match.Confidence < MatchConfidenceThreshold {
		t.Fatalf("precondition: expected raw confidence >= %.2f, got %.2f",
			MatchConfidenceThreshold, match.Confidence)
	}

	// The penalty terms (soft-junk phrasing plus a weak seller) push the
	// same match under the threshold, so the cycle rejects it.
	stats := scanner.RunScanCycle(context.Background())
	if stats.NoMatch != 1 {
		t.Errorf("NoMatch = %d, want 1", stats.NoMatch)
	}
	if stats.Deals != 0 || len(sink.deals) != 0 {
		t.Errorf("Expected no deals from a penalized match, got %d", len(sink.deals))
	}
}

type panickingSink struct{}

func (panickingSink) CreateDeal(in DealInput) (*models.Deal, error) {
	panic("sink not wired")
}

func TestScanCyclePanicIsolatedToListing(t *testing.T) {
	listing := goodListing()
	marketplace := &stubMarketplace{
		listings: []models.Listing{listing},
		detail: &models.ListingDetail{
			Listing:              listing,
			ConditionDescriptors: []string{"400010"},
		},
	}
	catalog := &stubCatalog{
		candidates: []models.CatalogCandidate{baseSetCharizard()},
		prices:     fullPriceTable(),
	}
	scanner := newTestScanner(marketplace, catalog, daytimeGovernor(500), panickingSink{})

	stats := scanner.RunScanCycle(context.Background())

	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1 for the panicking listing", stats.Errors)
	}
	if stats.Deals != 0 {
		t.Errorf("Deals = %d, want 0", stats.Deals)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/metrics"
	"github.com/gradyfinch/tcg-sniper/internal/models"
)

const (
	searchResultLimit = 50
	queriesPerCycle   = 3
	dealMinProfitGBP  = 5.0
	dealMinProfitPct  = 30.0
	targetCurrency    = "GBP"
	dedupeWindow      = 24 * time.Hour
)

// ScannerState is the orchestrator lifecycle state.
type ScannerState string

const (
	StateStopped  ScannerState = "stopped"
	StateScanning ScannerState = "scanning"
	StateSleeping ScannerState = "sleeping"
)

// defaultRotation is the built-in weighted query rotation. Heavier
// weights draw more often; graded queries exist so graded_only mode
// still has something to run.
var defaultRotation = []models.ScanQuery{
	{Term: "pokemon card psa", Category: models.CategoryGraded, Weight: 3, Enabled: true},
	{Term: "pokemon card cgc slab", Category: models.CategoryGraded, Weight: 2, Enabled: true},
	{Term: "pokemon base set holo", Category: models.CategoryVintage, Weight: 3, Enabled: true},
	{Term: "pokemon 1st edition", Category: models.CategoryVintage, Weight: 2, Enabled: true},
	{Term: "pokemon shadowless", Category: models.CategoryVintage, Weight: 1, Enabled: true},
	{Term: "charizard card", Category: models.CategoryChase, Weight: 3, Enabled: true},
	{Term: "pokemon alt art", Category: models.CategoryChase, Weight: 2, Enabled: true},
	{Term: "pokemon vmax rainbow", Category: models.CategoryModern, Weight: 2, Enabled: true},
	{Term: "pokemon ex full art", Category: models.CategoryModern, Weight: 2, Enabled: true},
	{Term: "pokemon promo card", Category: models.CategoryModern, Weight: 1, Enabled: true},
}

// catchAllQuery backs the most_recent search type: one broad query,
// newest listings first, maximum coverage per credit.
var catchAllQuery = models.ScanQuery{
	Term: "pokemon card", Category: models.CategoryCatchAll, Weight: 1, Enabled: true,
}

// Scanner drives the full pipeline: query rotation, extraction,
// matching, pricing, the enrichment gate, tier classification and deal
// persistence. One scan cycle at a time; the budget governor decides
// how long to sleep between cycles.
type Scanner struct {
	marketplace MarketplaceClient
	extractor   *TitleExtractor
	matcher     *CatalogMatcher
	priceCache  *TieredPriceCache
	pricing     *PricingEngine
	exchange    *RetryingExchangeRate
	gate        *EnrichmentGate
	penalties   *JunkPenaltyScorer
	budget      *BudgetGovernor
	classifier  *TierClassifier
	dedupe      *Deduplicator
	deals       DealSink

	mu            sync.Mutex
	state         ScannerState
	mode          models.ScanMode
	searchType    models.SearchType
	customQueries []models.ScanQuery
	cancel        context.CancelFunc
	cycleRunning  bool
	lastStats     models.ScanStats
	lastCycleAt   time.Time
}

// DealSink receives confirmed deals. A nil deal with nil error means
// the sink already held one for the listing.
type DealSink interface {
	CreateDeal(in DealInput) (*models.Deal, error)
}

// ScannerDeps bundles the scanner's collaborators.
type ScannerDeps struct {
	Marketplace MarketplaceClient
	Catalog     CatalogClient
	Exchange    *RetryingExchangeRate
	Budget      *BudgetGovernor
	Deals       DealSink
}

// NewScanner wires the pipeline together.
func NewScanner(deps ScannerDeps) *Scanner {
	return &Scanner{
		marketplace: deps.Marketplace,
		extractor:   NewTitleExtractor(),
		matcher:     NewCatalogMatcher(deps.Catalog),
		priceCache:  NewTieredPriceCache(deps.Catalog),
		pricing:     NewPricingEngine(),
		exchange:    deps.Exchange,
		gate:        NewEnrichmentGate(),
		penalties:   NewJunkPenaltyScorer(),
		budget:      deps.Budget,
		classifier:  NewTierClassifier(deps.Catalog, deps.Budget),
		dedupe:      NewDeduplicator(dedupeWindow),
		deals:       deps.Deals,
		state:       StateStopped,
		mode:        models.ScanModeBoth,
		searchType:  models.SearchTypeRotation,
	}
}

// Start launches the scan loop. Safe to call once; a second call while
// running is a no-op.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateSleeping
	s.mu.Unlock()

	go s.loop(ctx)
	log.Printf("Scanner: started (mode=%s search=%s)", s.Mode(), s.SearchType())
}

// Stop cancels the loop and any pending sleep timer.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateStopped
	log.Printf("Scanner: stopped")
}

func (s *Scanner) loop(ctx context.Context) {
	// First cycle runs promptly rather than waiting a full interval.
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			return
		case <-timer.C:
		}

		s.setState(StateScanning)
		stats := s.RunScanCycle(ctx)
		s.setState(StateSleeping)

		interval := s.budget.NextScanInterval()
		log.Printf("Scanner: cycle done (%d processed, %d deals), next in %s",
			stats.Processed, stats.Deals, interval.Round(time.Second))
		timer.Reset(interval)
	}
}

func (s *Scanner) setState(st ScannerState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Scanner) State() ScannerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the active scan mode.
func (s *Scanner) Mode() models.ScanMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetScanMode switches the listing population filter.
func (s *Scanner) SetScanMode(mode models.ScanMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	log.Printf("Scanner: scan mode set to %s", mode)
}

// SearchType returns the active query source.
func (s *Scanner) SearchType() models.SearchType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchType
}

// SetSearchType switches how cycle queries are sourced.
func (s *Scanner) SetSearchType(st models.SearchType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchType = st
	log.Printf("Scanner: search type set to %s", st)
}

// SetCustomQueries replaces the user-defined query list.
func (s *Scanner) SetCustomQueries(queries []models.ScanQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customQueries = queries
	log.Printf("Scanner: %d custom queries configured", len(queries))
}

// LastStats returns the most recent completed cycle's stats.
func (s *Scanner) LastStats() (models.ScanStats, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats, s.lastCycleAt
}

// RunScanCycle executes one full scan cycle and returns its stats.
// Only one cycle runs at a time; a concurrent call returns empty stats.
func (s *Scanner) RunScanCycle(ctx context.Context) models.ScanStats {
	s.mu.Lock()
	if s.cycleRunning {
		s.mu.Unlock()
		return models.ScanStats{}
	}
	s.cycleRunning = true
	mode := s.mode
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cycleRunning = false
		s.mu.Unlock()
	}()

	started := time.Now()
	stats := models.ScanStats{}

	if !s.budget.CanMakeCall() {
		log.Printf("Scanner: skipping cycle, credit budget unavailable")
		s.finishCycle(&stats, started)
		return stats
	}

	// The rate is fetched once per cycle. USD always resolves (last
	// known good, then hard fallback); anything else failing aborts the
	// rest of the cycle rather than pricing blind.
	rate, err := s.exchange.GetRate(ctx, "USD", targetCurrency)
	if err != nil {
		log.Printf("Scanner: cycle aborted, exchange rate unavailable: %v", err)
		stats.Errors++
		s.finishCycle(&stats, started)
		return stats
	}

	supply := make(map[string]int) // candidate id -> listings matched this cycle

	for _, query := range s.selectQueries(mode) {
		listings, err := s.marketplace.Search(ctx, query.Term, searchResultLimit)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				// Soft failure: yield the rest of the cycle and let the
				// next interval retry.
				log.Printf("Scanner: marketplace rate limited, ending cycle early")
				break
			}
			log.Printf("Scanner: search %q failed: %v", query.Term, err)
			stats.Errors++
			continue
		}

		for i := range listings {
			if err := s.processListing(ctx, &listings[i], mode, rate, supply, &stats); err != nil {
				// One bad listing never takes down the cycle.
				log.Printf("Scanner: listing %s failed: %v", listings[i].ExternalID, err)
				stats.Errors++
			}
		}
	}

	s.finishCycle(&stats, started)
	return stats
}

func (s *Scanner) finishCycle(stats *models.ScanStats, started time.Time) {
	metrics.ScanCyclesTotal.Inc()
	metrics.ScanCycleDuration.Observe(time.Since(started).Seconds())
	status := s.budget.Status()
	metrics.BudgetCreditsUsedToday.Set(float64(status.CreditsUsedToday))
	metrics.BudgetDailyAllotment.Set(float64(status.DailyAllotment))

	s.mu.Lock()
	s.lastStats = *stats
	s.lastCycleAt = time.Now()
	s.mu.Unlock()
}

// selectQueries builds this cycle's query list from the configured
// search type, filtered by scan mode.
func (s *Scanner) selectQueries(mode models.ScanMode) []models.ScanQuery {
	s.mu.Lock()
	searchType := s.searchType
	custom := make([]models.ScanQuery, len(s.customQueries))
	copy(custom, s.customQueries)
	s.mu.Unlock()

	var pool []models.ScanQuery
	switch searchType {
	case models.SearchTypeCustom:
		pool = custom
	case models.SearchTypeMostRecent:
		return []models.ScanQuery{catchAllQuery}
	default:
		pool = defaultRotation
	}

	eligible := make([]models.ScanQuery, 0, len(pool))
	for _, q := range pool {
		if !q.Enabled {
			continue
		}
		switch mode {
		case models.ScanModeGradedOnly:
			if q.Category != models.CategoryGraded {
				continue
			}
		case models.ScanModeRawOnly:
			if q.Category == models.CategoryGraded {
				continue
			}
		}
		eligible = append(eligible, q)
	}
	return weightedDraw(eligible, queriesPerCycle)
}

// weightedDraw picks up to n distinct queries, weight-proportionally.
func weightedDraw(pool []models.ScanQuery, n int) []models.ScanQuery {
	if len(pool) <= n {
		out := make([]models.ScanQuery, len(pool))
		copy(out, pool)
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}

	remaining := make([]models.ScanQuery, len(pool))
	copy(remaining, pool)
	picked := make([]models.ScanQuery, 0, n)
	for len(picked) < n && len(remaining) > 0 {
		total := 0
		for _, q := range remaining {
			w := q.Weight
			if w < 1 {
				w = 1
			}
			total += w
		}
		roll := rand.Intn(total)
		idx := 0
		for i, q := range remaining {
			w := q.Weight
			if w < 1 {
				w = 1
			}
			roll -= w
			if roll < 0 {
				idx = i
				break
			}
		}
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}

// processListing runs one listing through the two-phase pipeline. A
// panic anywhere in the pipeline is contained to this listing; the
// rest of the cycle continues.
func (s *Scanner) processListing(ctx context.Context, listing *models.Listing, mode models.ScanMode, rate float64, supply map[string]int, stats *models.ScanStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.dedupe.IsDuplicate(listing.ExternalID) {
		stats.Duplicates++
		metrics.ListingsProcessed.WithLabelValues("duplicate").Inc()
		return nil
	}
	// Marked before the outcome is known: a junk or unmatched listing
	// reappearing minutes later extracts identically.
	s.dedupe.MarkProcessed(listing.ExternalID)
	stats.Processed++

	// Phase one: title only, zero enrichment cost.
	sig, reject := s.extractor.Extract(listing.Title, nil)
	if reject != models.RejectNone {
		stats.Junk++
		metrics.ListingsProcessed.WithLabelValues("junk").Inc()
		return nil
	}
	if skipForMode(sig, mode) {
		metrics.ListingsProcessed.WithLabelValues("mode_filtered").Inc()
		return nil
	}
	if sig.Condition != nil && sig.Condition.Blocked {
		stats.Blocked++
		metrics.ListingsProcessed.WithLabelValues("blocked").Inc()
		return nil
	}

	if !s.budget.CanMakeCall() {
		metrics.ListingsProcessed.WithLabelValues("budget").Inc()
		return nil
	}
	match, err := s.matcher.Match(ctx, sig)
	s.budget.RecordUsage(1)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	confidence, match := s.penalizedMatch(match, listing)
	if match == nil || confidence < MatchConfidenceThreshold {
		stats.NoMatch++
		metrics.ListingsProcessed.WithLabelValues("no_match").Inc()
		return nil
	}

	prices, hit, err := s.priceCache.GetPrices(ctx, &match.Candidate, sig.IsGraded())
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	if !hit {
		s.budget.RecordUsage(1)
	}

	profit := s.pricing.Compute(listing, sig, match, prices, rate)
	if profit == nil {
		metrics.ListingsProcessed.WithLabelValues("unpriced").Inc()
		return nil
	}

	// Phase two: a promising listing earns a detail fetch, then the
	// whole extraction and pricing pass re-runs on the richer input.
	// Deals are only created from confirmed data.
	if !s.gate.Approve(profit.ProfitPercent, confidence, s.budget.Status()) {
		stats.Gated++
		metrics.ListingsProcessed.WithLabelValues("gated").Inc()
		return nil
	}
	enriched, err := s.enrich(ctx, listing, mode, rate, stats)
	if err != nil {
		return err
	}
	if enriched == nil {
		// Enrichment disqualified the listing; counters were already
		// bumped inside.
		return nil
	}
	sig, match, confidence, prices, profit = enriched.sig, enriched.match, enriched.confidence, enriched.prices, enriched.profit

	if profit.ProfitPercent < dealMinProfitPct || profit.ProfitGBP < dealMinProfitGBP {
		metrics.ListingsProcessed.WithLabelValues("below_threshold").Inc()
		return nil
	}

	supply[match.Candidate.ID]++
	tier, liquidity := s.classifier.Classify(ctx, match, profit, prices, supply[match.Candidate.ID])

	deal, err := s.deals.CreateDeal(DealInput{
		Listing:   listing,
		Signals:   sig,
		Match:     match,
		Profit:    profit,
		Liquidity: liquidity,
		Tier:      tier,
	})
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	if deal == nil {
		stats.Duplicates++
		metrics.ListingsProcessed.WithLabelValues("duplicate").Inc()
		return nil
	}

	stats.Deals++
	metrics.ListingsProcessed.WithLabelValues("deal").Inc()
	metrics.DealsCreatedTotal.WithLabelValues(string(tier)).Inc()
	metrics.DealProfitPercent.Observe(profit.ProfitPercent)
	log.Printf("Scanner: deal created [%s] %s at %.0f%% profit (confidence %.2f, liquidity %s)",
		tier, deal.CardName, profit.ProfitPercent, confidence, liquidity.Grade)
	return nil
}

// enrichedListing is the phase-two re-run of the pipeline.
type enrichedListing struct {
	sig        *models.ExtractedSignals
	match      *models.MatchResult
	confidence float64
	prices     *models.CatalogPrices
	profit     *models.ProfitCalculation
}

// enrich fetches the listing detail and replays extraction, matching
// and pricing with it. A nil return with nil error means the listing
// was disqualified by what the detail revealed.
func (s *Scanner) enrich(ctx context.Context, listing *models.Listing, mode models.ScanMode, rate float64, stats *models.ScanStats) (*enrichedListing, error) {
	detail, err := s.marketplace.GetDetail(ctx, listing.ExternalID)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			log.Printf("Scanner: detail fetch rate limited for %s, keeping phase-one result", listing.ExternalID)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentFetchFailed, err)
	}
	stats.EnrichmentCalls++
	metrics.EnrichmentCallsTotal.Inc()
	if detail == nil {
		// The client is out of its own budget; phase-one data stands
		// but we will not create a deal without confirmation.
		return nil, nil
	}

	sig, reject := s.extractor.Extract(listing.Title, detail)
	if reject != models.RejectNone {
		stats.Junk++
		metrics.ListingsProcessed.WithLabelValues("junk").Inc()
		return nil, nil
	}
	if skipForMode(sig, mode) {
		metrics.ListingsProcessed.WithLabelValues("mode_filtered").Inc()
		return nil, nil
	}
	if sig.Condition != nil && sig.Condition.Blocked {
		stats.Blocked++
		metrics.ListingsProcessed.WithLabelValues("blocked").Inc()
		return nil, nil
	}

	if !s.budget.CanMakeCall() {
		metrics.ListingsProcessed.WithLabelValues("budget").Inc()
		return nil, nil
	}
	match, err := s.matcher.Match(ctx, sig)
	s.budget.RecordUsage(1)
	if err != nil {
		return nil, fmt.Errorf("enriched match: %w", err)
	}
	confidence, match := s.penalizedMatch(match, listing)
	if match == nil || confidence < MatchConfidenceThreshold {
		stats.NoMatch++
		metrics.ListingsProcessed.WithLabelValues("no_match").Inc()
		return nil, nil
	}

	prices, hit, err := s.priceCache.GetPrices(ctx, &match.Candidate, sig.IsGraded())
	if err != nil {
		return nil, fmt.Errorf("enriched prices: %w", err)
	}
	if !hit {
		s.budget.RecordUsage(1)
	}

	profit := s.pricing.Compute(listing, sig, match, prices, rate)
	if profit == nil {
		metrics.ListingsProcessed.WithLabelValues("unpriced").Inc()
		return nil, nil
	}

	return &enrichedListing{
		sig:        sig,
		match:      match,
		confidence: confidence,
		prices:     prices,
		profit:     profit,
	}, nil
}

// penalizedMatch applies the learned junk penalty to the composite
// confidence. The penalty subtracts after scoring so a borderline
// match from a flagged seller falls under the gate.
func (s *Scanner) penalizedMatch(match *models.MatchResult, listing *models.Listing) (float64, *models.MatchResult) {
	if match == nil {
		return 0, nil
	}
	confidence := match.Confidence - s.penalties.Penalty(listing.Title, listing)
	if confidence < 0 {
		confidence = 0
	}
	match.Confidence = confidence
	return confidence, match
}

// skipForMode filters individual listings by graded status; query
// category filtering alone cannot guarantee the population.
func skipForMode(sig *models.ExtractedSignals, mode models.ScanMode) bool {
	switch mode {
	case models.ScanModeGradedOnly:
		return !sig.IsGraded()
	case models.ScanModeRawOnly:
		return sig.IsGraded()
	}
	return false
}

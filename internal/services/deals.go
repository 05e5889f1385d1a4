package services

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// dealExpiry is how long a deal stays actionable before the listing is
// assumed gone or repriced.
const dealExpiry = 48 * time.Hour

// Notifier is the fire-and-forget alert sink.
type Notifier interface {
	SendDealAlert(summary string)
}

// NopNotifier drops alerts; used when no notification channel is
// configured.
type NopNotifier struct{}

func (NopNotifier) SendDealAlert(string) {}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

func (LogNotifier) SendDealAlert(summary string) {
	log.Printf("DEAL ALERT: %s", summary)
}

// DealInput carries everything needed to persist one deal.
type DealInput struct {
	Listing   *models.Listing
	Signals   *models.ExtractedSignals
	Match     *models.MatchResult
	Profit    *models.ProfitCalculation
	Liquidity models.LiquiditySignal
	Tier      models.Tier
}

// DealService persists deals and fans out alerts. The unique index on
// listing id is the storage-level duplicate guard: the in-memory
// deduplicator cannot rule out races across restarts or processes.
type DealService struct {
	db       *gorm.DB
	notifier Notifier
}

// NewDealService creates the sink. notifier may be nil.
func NewDealService(db *gorm.DB, notifier Notifier) *DealService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &DealService{db: db, notifier: notifier}
}

// CreateDeal inserts a deal, ignoring duplicates on the external
// listing id. Returns (nil, nil) when a duplicate was caught at the
// storage layer; that is success-no-op, not an error.
func (s *DealService) CreateDeal(in DealInput) (*models.Deal, error) {
	deal := buildDeal(in)

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoNothing: true,
	}).Create(deal)
	if result.Error != nil {
		return nil, fmt.Errorf("persist deal for listing %s: %w", deal.ListingID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race to another writer; the deal already exists.
		return nil, nil
	}

	go s.notifier.SendDealAlert(dealSummary(deal))
	return deal, nil
}

// RecentDeals returns the newest unexpired deals for the control API.
func (s *DealService) RecentDeals(limit int) ([]models.Deal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var deals []models.Deal
	err := s.db.Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Limit(limit).
		Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("list recent deals: %w", err)
	}
	return deals, nil
}

func buildDeal(in DealInput) *models.Deal {
	now := time.Now()
	deal := &models.Deal{
		ID:        uuid.NewString(),
		ListingID: in.Listing.ExternalID,
		Title:     in.Listing.Title,
		URL:       in.Listing.URL,

		CardID:     in.Match.Candidate.ID,
		CardName:   in.Match.Candidate.Name,
		SetName:    in.Match.Candidate.ExpansionName,
		CardNumber: in.Match.Candidate.Number,
		Printing:   in.Match.Printing,

		Confidence:     in.Match.Confidence,
		ConfidenceTier: models.ConfidenceTierFor(in.Match.Confidence),
		TotalCostGBP:   in.Profit.TotalCostGBP,
		MarketValueGBP: in.Profit.MarketValueGBP,
		ProfitGBP:      in.Profit.ProfitGBP,
		ProfitPercent:  in.Profit.ProfitPercent,
		Tier:           in.Tier,
		LiquidityScore: in.Liquidity.Score,
		LiquidityGrade: in.Liquidity.Grade,

		CreatedAt: now,
		ExpiresAt: now.Add(dealExpiry),
	}

	if g := in.Signals.Grading; g != nil {
		deal.GradeLabel = fmt.Sprintf("%s %g", g.Company, g.Grade)
		if g.Modifier != "" {
			deal.GradeLabel += " " + g.Modifier
		}
	} else {
		deal.Condition = in.Profit.Condition
	}
	return deal
}

func dealSummary(d *models.Deal) string {
	label := string(d.Condition)
	if d.GradeLabel != "" {
		label = d.GradeLabel
	}
	return fmt.Sprintf("[%s] %s (%s %s, %s) cost £%.2f market £%.2f profit %.0f%% liquidity %s",
		d.Tier, d.CardName, d.SetName, d.CardNumber, label,
		d.TotalCostGBP, d.MarketValueGBP, d.ProfitPercent, d.LiquidityGrade)
}

package models

import (
	"time"
)

// Listing is a single marketplace search result. It is immutable once
// fetched; enrichment produces a ListingDetail rather than mutating it.
type Listing struct {
	ExternalID     string    `json:"external_id"`
	Title          string    `json:"title"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency"` // ISO 4217, e.g. "USD"
	ShippingCost   float64   `json:"shipping_cost"`
	ConditionHint  string    `json:"condition_hint"` // marketplace condition label, if any
	SellerID       string    `json:"seller_id"`
	SellerScore    int       `json:"seller_score"`    // feedback count
	SellerPositive float64   `json:"seller_positive"` // positive feedback percentage
	URL            string    `json:"url"`
	ListedAt       time.Time `json:"listed_at"`
}

// ListingDetail is the richer record returned by the costly detail fetch.
// ItemSpecifics and ConditionDescriptors are only present here, never on
// the cheap search result.
type ListingDetail struct {
	Listing
	Description          string            `json:"description"`
	ItemSpecifics        map[string]string `json:"item_specifics"`
	ConditionDescriptors []string          `json:"condition_descriptors"`
}

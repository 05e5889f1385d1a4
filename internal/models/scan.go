package models

// ScanMode restricts the query rotation to a listing population.
type ScanMode string

const (
	ScanModeBoth       ScanMode = "both"
	ScanModeGradedOnly ScanMode = "graded_only"
	ScanModeRawOnly    ScanMode = "raw_only"
)

// ParseScanMode validates a raw mode string.
func ParseScanMode(s string) (ScanMode, bool) {
	switch ScanMode(s) {
	case ScanModeBoth, ScanModeGradedOnly, ScanModeRawOnly:
		return ScanMode(s), true
	}
	return "", false
}

// SearchType selects how scan queries are sourced.
type SearchType string

const (
	SearchTypeRotation   SearchType = "rotation"    // built-in weighted rotation
	SearchTypeCustom     SearchType = "custom"      // user-defined terms
	SearchTypeMostRecent SearchType = "most_recent" // single catch-all query
)

// ParseSearchType validates a raw search type string.
func ParseSearchType(s string) (SearchType, bool) {
	switch SearchType(s) {
	case SearchTypeRotation, SearchTypeCustom, SearchTypeMostRecent:
		return SearchType(s), true
	}
	return "", false
}

// QueryCategory tags a scan query for mode filtering.
type QueryCategory string

const (
	CategoryGraded        QueryCategory = "graded"
	CategoryVintage       QueryCategory = "vintage"
	CategoryChase         QueryCategory = "chase"
	CategoryModern        QueryCategory = "modern"
	CategoryDynamicRecent QueryCategory = "dynamic_recent"
	CategoryCustom        QueryCategory = "custom"
	CategoryCatchAll      QueryCategory = "catch_all"
)

// ScanQuery is a weighted search term in the rotation.
type ScanQuery struct {
	Term     string        `json:"term"`
	Category QueryCategory `json:"category"`
	Weight   int           `json:"weight"` // relative draw frequency
	Enabled  bool          `json:"enabled"`
}

// ScanStats aggregates one scan cycle's outcomes.
type ScanStats struct {
	Processed       int `json:"processed"`
	Duplicates      int `json:"duplicates"`
	Junk            int `json:"junk"`
	Blocked         int `json:"blocked"`
	NoMatch         int `json:"no_match"`
	Gated           int `json:"gated"` // failed the enrichment gate
	EnrichmentCalls int `json:"enrichment_calls"`
	Deals           int `json:"deals"`
	Errors          int `json:"errors"`
}

package domain

import "time"

// MatchTier identifies which matching layer accepted an observation. A record
// is scored by exactly one tier per query.
type MatchTier string

const (
	TierExactItem    MatchTier = "exact_item"
	TierTokenOverlap MatchTier = "token_overlap"
	TierCategory     MatchTier = "category"
)

// Match pairs an observation with how well it fits a query. Confidence is the
// freshness-weighted score results are ordered by; TierConfidence is the raw
// tier score before weighting.
type Match struct {
	Observation     PriceObservation `json:"observation"`
	Tier            MatchTier        `json:"tier"`
	TierConfidence  float64          `json:"tier_confidence"`
	FreshnessWeight float64          `json:"freshness_weight"`
	Confidence      float64          `json:"confidence"`
}

// PricePoint is one entry in an item's price history.
type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

type PriceTrend string

const (
	TrendRising       PriceTrend = "rising"
	TrendFalling      PriceTrend = "falling"
	TrendStable       PriceTrend = "stable"
	TrendInsufficient PriceTrend = "insufficient_data"
)

// HistorySummary aggregates the priced matches behind a recommendation.
// Price fields are meaningful only when Matches > 0.
type HistorySummary struct {
	Matches   int        `json:"matches"`
	MinPrice  float64    `json:"min_price"`
	MaxPrice  float64    `json:"max_price"`
	Median    float64    `json:"median"`
	Average   float64    `json:"average"`
	RecentAvg float64    `json:"recent_avg"`
	Trend     PriceTrend `json:"trend"`
}

package domain

// DataQuality states which pricing inputs were actually available.
type DataQuality string

const (
	DataFull         DataQuality = "full"
	DataHistoryOnly  DataQuality = "history_only"
	DataCostOnly     DataQuality = "cost_only"
	DataInsufficient DataQuality = "insufficient"
)

// Guardrail flags attached to a recommendation. All are warnings except the
// hard floor, which mutates the tier instead of flagging it alone.
const (
	FlagNoPricingData          = "no_pricing_data"
	FlagProfitFloorRecommended = "profit_floor_applied_recommended"
	FlagProfitFloorAggressive  = "profit_floor_applied_aggressive"
	FlagHardFloorRecommended   = "hard_floor_applied_recommended"
	FlagHardFloorAggressive    = "hard_floor_applied_aggressive"
	FlagHardFloorSafe          = "hard_floor_applied_safe"
	FlagSafeCappedAtMarket     = "safe_capped_at_market"
	FlagTierOrderClamped       = "tier_order_clamped"
	FlagPriceAboveRecentWins   = "price_above_recent_wins"
	FlagStaleData              = "stale_data"
	FlagLimitedHistory         = "limited_history"
	FlagTrendingUp             = "prices_trending_up"
	FlagTrendingDown           = "prices_trending_down"
)

// PriceTier is one of the three bid strategies.
type PriceTier struct {
	Price          float64 `json:"price"`
	MarginPct      float64 `json:"margin_pct"`
	WinProbability float64 `json:"win_probability"`
}

// PricingRecommendation is derived, never persisted: the matched observations
// that produced it are the durable record. When DataQuality is
// DataInsufficient all tiers are nil and automation must stop.
type PricingRecommendation struct {
	Recommended *PriceTier     `json:"recommended,omitempty"`
	Aggressive  *PriceTier     `json:"aggressive,omitempty"`
	Safe        *PriceTier     `json:"safe,omitempty"`
	Flags       []string       `json:"flags"`
	Reasoning   string         `json:"reasoning"`
	DataQuality DataQuality    `json:"data_quality"`
	History     HistorySummary `json:"history"`
}

func (r *PricingRecommendation) InsufficientData() bool {
	return r == nil || r.DataQuality == DataInsufficient
}

// QuoteItem is one line of a quote as seen by the oracle and the grader.
// Zero-valued prices mean "unknown".
type QuoteItem struct {
	ID               string  `json:"id"`
	LineNumber       int     `json:"line_number"`
	ItemIdentifier   string  `json:"item_identifier"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	SupplierCost     float64 `json:"supplier_cost"`
	LiveMarketPrice  float64 `json:"live_market_price"`
	HistoryPrice     float64 `json:"history_price"`
	RecommendedPrice float64 `json:"recommended_price"`
}

// ItemPricing binds a quote line to its recommendation.
type ItemPricing struct {
	Item           QuoteItem              `json:"item"`
	Recommendation *PricingRecommendation `json:"recommendation"`
}

type QuoteSummary struct {
	TotalItems        int     `json:"total_items"`
	Priced            int     `json:"priced"`
	NeedsManual       int     `json:"needs_manual"`
	AvgWinProbability float64 `json:"avg_win_probability"`
	TotalRecommended  float64 `json:"total_recommended"`
	TotalAggressive   float64 `json:"total_aggressive"`
	TotalSafe         float64 `json:"total_safe"`
}

type QuotePricing struct {
	QuoteID    string          `json:"quote_id"`
	Agency     string          `json:"agency"`
	Items      []ItemPricing   `json:"items"`
	Summary    QuoteSummary    `json:"summary"`
	Confidence QuoteConfidence `json:"confidence"`
}

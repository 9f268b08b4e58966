package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/pricerules"
)

// Win-probability band midpoints used when no market anchor exists to compare
// against.
const (
	fallbackWinProbRecommended = 0.70
	fallbackWinProbAggressive  = 0.85
	fallbackWinProbSafe        = 0.475

	// Steepness of the logistic win-probability curve around the anchor.
	winProbSteepness = 15.0
)

// RecommendInput carries everything the oracle needs for one line item. Zero
// SupplierCost means "unknown".
type RecommendInput struct {
	ItemIdentifier string
	Description    string
	SupplierCost   float64
	Matches        []domain.Match
	Agency         string
	Category       domain.Category
	Urgent         bool
	Quantity       float64
}

// PricingOracle turns ranked matches plus a supplier cost into a three-tier
// recommendation with guardrail flags and templated reasoning. All arithmetic
// is decimal; prices round to cents at the boundary.
type PricingOracle struct {
	rules  pricerules.Rules
	logger *slog.Logger
	now    func() time.Time
}

func NewPricingOracle(rules pricerules.Rules, logger *slog.Logger) *PricingOracle {
	return &PricingOracle{
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

func (o *PricingOracle) Recommend(ctx context.Context, input RecommendInput) *domain.PricingRecommendation {
	_ = ctx

	history := Aggregate(input.Matches)
	rec := &domain.PricingRecommendation{
		Flags:   []string{},
		History: history,
	}

	anchor, anchorKind := marketAnchor(history)
	hasAnchor := history.Matches > 0
	hasCost := input.SupplierCost > 0

	switch {
	case hasAnchor && hasCost:
		rec.DataQuality = domain.DataFull
	case hasAnchor:
		rec.DataQuality = domain.DataHistoryOnly
	case hasCost:
		rec.DataQuality = domain.DataCostOnly
	default:
		// Insufficient-data sentinel: never guess a price. Callers must block
		// automated document generation on this result.
		rec.DataQuality = domain.DataInsufficient
		rec.Flags = append(rec.Flags, domain.FlagNoPricingData)
		rec.Reasoning = "no matched history and no supplier cost; manual pricing required"
		return rec
	}

	cost := decimal.NewFromFloat(input.SupplierCost)
	anchorD := decimal.NewFromFloat(anchor)
	hardFloor := decimal.Zero
	if hasCost {
		hardFloor = cost.Add(decimal.NewFromFloat(o.rules.HardFloorMargin))
	}

	blended := o.blend(anchorD, cost, hasAnchor, hasCost)

	// Recommended: anchor undercut (blend when there is no anchor), floored so
	// profit stays above the configured minimum.
	recUndercut := o.rules.RecommendedUndercutPct
	if input.Urgent {
		recUndercut = o.rules.UrgentUndercutPct
	}
	recommended := blended
	if hasAnchor {
		recommended = anchorD.Mul(pctBelow(recUndercut))
	}
	if hasCost {
		if floor := cost.Add(decimal.NewFromFloat(o.rules.ProfitFloorRecommended)); recommended.LessThan(floor) {
			recommended = floor
			rec.Flags = append(rec.Flags, domain.FlagProfitFloorRecommended)
		}
		if recommended.LessThan(hardFloor) {
			recommended = hardFloor
			rec.Flags = append(rec.Flags, domain.FlagHardFloorRecommended)
		}
	}

	// Aggressive: undercut the lowest matched price, with a smaller profit
	// floor.
	aggUndercut := o.rules.AggressiveUndercutPct
	if input.Urgent {
		aggUndercut = o.rules.UrgentAggressiveUndercutPct
	}
	var aggressive decimal.Decimal
	if hasAnchor {
		aggressive = decimal.NewFromFloat(history.MinPrice).Mul(pctBelow(aggUndercut))
	} else {
		aggressive = recommended.Mul(decimal.NewFromFloat(0.92))
	}
	if hasCost {
		if floor := cost.Add(decimal.NewFromFloat(o.rules.ProfitFloorAggressive)); aggressive.LessThan(floor) {
			aggressive = floor
			rec.Flags = append(rec.Flags, domain.FlagProfitFloorAggressive)
		}
		if aggressive.LessThan(hardFloor) {
			aggressive = hardFloor
			rec.Flags = append(rec.Flags, domain.FlagHardFloorAggressive)
		}
	}

	// Safe: conservative cost-plus, capped below the market anchor.
	var safe decimal.Decimal
	if hasCost {
		safe = cost.Mul(pctAbove(o.rules.SafeMarkupPct))
	} else {
		safe = anchorD.Mul(pctBelow(0.02))
	}
	if hasAnchor && !safe.LessThan(anchorD) {
		safe = anchorD.Mul(pctBelow(0.01))
		rec.Flags = append(rec.Flags, domain.FlagSafeCappedAtMarket)
	}
	if hasCost && safe.LessThan(hardFloor) {
		safe = hardFloor
		rec.Flags = append(rec.Flags, domain.FlagHardFloorSafe)
	}

	// Ordering invariant: aggressive <= recommended <= safe. Clamp aggressive
	// first and safe last; every input to min is already at or above the hard
	// floor, so the floor survives clamping.
	clamped := false
	if aggressive.GreaterThan(recommended) {
		aggressive = recommended
		clamped = true
	}
	if recommended.GreaterThan(safe) {
		recommended = safe
		clamped = true
	}
	if aggressive.GreaterThan(recommended) {
		aggressive = recommended
	}
	if clamped {
		rec.Flags = append(rec.Flags, domain.FlagTierOrderClamped)
	}

	recPrice := cents(recommended)
	aggPrice := cents(aggressive)
	safePrice := cents(safe)

	rec.Recommended = &domain.PriceTier{
		Price:          recPrice,
		MarginPct:      marginPct(recPrice, input.SupplierCost),
		WinProbability: winProbability(recPrice, anchor, hasAnchor, fallbackWinProbRecommended),
	}
	rec.Aggressive = &domain.PriceTier{
		Price:          aggPrice,
		MarginPct:      marginPct(aggPrice, input.SupplierCost),
		WinProbability: winProbability(aggPrice, anchor, hasAnchor, fallbackWinProbAggressive),
	}
	rec.Safe = &domain.PriceTier{
		Price:          safePrice,
		MarginPct:      marginPct(safePrice, input.SupplierCost),
		WinProbability: winProbability(safePrice, anchor, hasAnchor, fallbackWinProbSafe),
	}

	stale := o.appendWarningFlags(rec, input, history, anchor, hasAnchor, recPrice)
	rec.Reasoning = o.buildReasoning(input, history, anchor, anchorKind, hasAnchor, hasCost, rec, stale)

	o.logger.Info("price_recommended",
		"item", input.ItemIdentifier,
		"recommended", recPrice,
		"aggressive", aggPrice,
		"safe", safePrice,
		"data_quality", rec.DataQuality,
		"flags", rec.Flags,
	)
	return rec
}

// marketAnchor picks the reference price the market has actually paid: the
// recent average when there is enough data, the median otherwise.
func marketAnchor(history domain.HistorySummary) (float64, string) {
	if history.Matches >= 3 && history.RecentAvg > 0 {
		return history.RecentAvg, "recent average"
	}
	return history.Median, "median"
}

func (o *PricingOracle) blend(anchor, cost decimal.Decimal, hasAnchor, hasCost bool) decimal.Decimal {
	switch {
	case hasAnchor && hasCost:
		w := o.rules.Weights
		return anchor.Mul(decimal.NewFromFloat(w.History)).
			Add(cost.Mul(pctAbove(o.rules.DefaultMarkupPct)).Mul(decimal.NewFromFloat(w.Cost))).
			Add(cost.Mul(pctAbove(o.rules.SafeMarkupPct)).Mul(decimal.NewFromFloat(w.Margin)))
	case hasAnchor:
		return anchor
	default:
		return cost.Mul(pctAbove(o.rules.DefaultMarkupPct))
	}
}

// appendWarningFlags evaluates the non-blocking guardrails and reports
// whether the history is stale.
func (o *PricingOracle) appendWarningFlags(rec *domain.PricingRecommendation, input RecommendInput, history domain.HistorySummary, anchor float64, hasAnchor bool, recPrice float64) bool {
	if hasAnchor && recPrice > anchor*(1+o.rules.CeilingAlertPct) {
		rec.Flags = append(rec.Flags, domain.FlagPriceAboveRecentWins)
	}
	if history.Matches >= 1 && history.Matches < 3 {
		rec.Flags = append(rec.Flags, domain.FlagLimitedHistory)
	}
	switch history.Trend {
	case domain.TrendRising:
		rec.Flags = append(rec.Flags, domain.FlagTrendingUp)
	case domain.TrendFalling:
		rec.Flags = append(rec.Flags, domain.FlagTrendingDown)
	}

	stale := false
	if latest, ok := latestAwardDate(input.Matches); ok {
		if latest.Before(o.now().AddDate(0, -o.rules.StaleMonths, 0)) {
			rec.Flags = append(rec.Flags, domain.FlagStaleData)
			stale = true
		}
	}
	return stale
}

// buildReasoning assembles the templated explanation from the numbers that
// were actually used. Identical inputs always produce identical text.
func (o *PricingOracle) buildReasoning(input RecommendInput, history domain.HistorySummary, anchor float64, anchorKind string, hasAnchor, hasCost bool, rec *domain.PricingRecommendation, stale bool) string {
	parts := make([]string, 0, 6)

	if hasAnchor {
		parts = append(parts, fmt.Sprintf("market anchor $%.2f (%s of %d matched awards)", anchor, anchorKind, history.Matches))
		best := input.Matches[0].Observation
		buyer := best.Department
		if buyer == "" {
			buyer = "unknown buyer"
		}
		parts = append(parts, fmt.Sprintf("best match $%.2f awarded %s to %s", best.UnitPrice, best.AwardDate.Format("2006-01-02"), buyer))
	} else {
		parts = append(parts, "no matched history")
	}

	if hasCost {
		parts = append(parts, fmt.Sprintf("supplier cost $%.2f", input.SupplierCost))
	} else {
		parts = append(parts, "no supplier cost; pricing from history only")
	}

	parts = append(parts, fmt.Sprintf(
		"tiers: aggressive $%.2f / recommended $%.2f at %.1f%% margin / safe $%.2f",
		rec.Aggressive.Price, rec.Recommended.Price, rec.Recommended.MarginPct*100, rec.Safe.Price,
	))

	if stale {
		parts = append(parts, fmt.Sprintf("most recent match is older than %d months; refresh market research before relying on it", o.rules.StaleMonths))
	}
	switch history.Trend {
	case domain.TrendRising:
		parts = append(parts, "matched prices are trending up; there is room above the anchor")
	case domain.TrendFalling:
		parts = append(parts, "matched prices are trending down; bid conservatively")
	}
	if input.Urgent {
		parts = append(parts, "urgent request; undercuts widened to the top of their range")
	}

	return strings.Join(parts, " | ")
}

func latestAwardDate(matches []domain.Match) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, m := range matches {
		if m.Observation.AwardDate.IsZero() {
			continue
		}
		if !found || m.Observation.AwardDate.After(latest) {
			latest = m.Observation.AwardDate
			found = true
		}
	}
	return latest, found
}

// winProbability estimates the chance of winning at price given the anchor,
// via a logistic curve clamped to [0.05, 0.95]. Without an anchor the tier's
// target band midpoint is used.
func winProbability(price, anchor float64, hasAnchor bool, fallback float64) float64 {
	if !hasAnchor || anchor <= 0 {
		return fallback
	}
	pctAboveAnchor := (price - anchor) / anchor
	raw := 1.0 / (1.0 + math.Exp(winProbSteepness*pctAboveAnchor))
	return math.Round(math.Max(0.05, math.Min(0.95, raw))*1000) / 1000
}

func marginPct(price, cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return math.Round((price-cost)/cost*1000) / 1000
}

func pctBelow(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(1 - pct)
}

func pctAbove(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(1 + pct)
}

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

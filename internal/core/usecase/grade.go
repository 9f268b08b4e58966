package usecase

import (
	"fmt"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/pricerules"
)

// Factor weights. They sum to 1.0 so the score lands in [0, 1].
const (
	factorCostWeight       = 0.30
	factorHistoryWeight    = 0.25
	factorLiveMarketWeight = 0.20
	factorMarginWeight     = 0.25
)

// Grade thresholds.
const (
	gradeAThreshold = 0.85
	gradeBThreshold = 0.65
	gradeCThreshold = 0.40
)

// ConfidenceGrader scores how well-supported a priced item or quote is. The
// result gates automation: anything below an A overall, or containing a C or
// F item, needs a human.
type ConfidenceGrader struct {
	rules pricerules.Rules
}

func NewConfidenceGrader(rules pricerules.Rules) *ConfidenceGrader {
	return &ConfidenceGrader{rules: rules}
}

// GradeItem computes a per-item confidence result. An item with no pricing
// information at all always grades F regardless of thresholds.
func (g *ConfidenceGrader) GradeItem(item domain.QuoteItem) domain.ConfidenceResult {
	hasCost := item.SupplierCost > 0
	hasHistory := item.HistoryPrice > 0
	hasLive := item.LiveMarketPrice > 0

	if !hasCost && !hasHistory && !hasLive {
		return domain.ConfidenceResult{
			Score: 0,
			Grade: domain.GradeF,
			Factors: map[string]float64{
				"has_cost":        0,
				"has_history":     0,
				"has_live_market": 0,
				"margin":          0,
			},
			Notes: []string{"no pricing information available; manual pricing required"},
		}
	}

	factors := map[string]float64{}
	notes := []string{}

	if hasCost {
		factors["has_cost"] = factorCostWeight
	} else {
		factors["has_cost"] = 0
		notes = append(notes, "no supplier cost found; manual entry needed")
	}

	if hasHistory {
		factors["has_history"] = factorHistoryWeight
		notes = append(notes, fmt.Sprintf("historical reference price $%.2f", item.HistoryPrice))
	} else {
		factors["has_history"] = 0
	}

	if hasLive {
		factors["has_live_market"] = factorLiveMarketWeight
		notes = append(notes, fmt.Sprintf("live market price $%.2f", item.LiveMarketPrice))
	} else {
		factors["has_live_market"] = 0
	}

	factors["margin"] = 0
	if hasCost && item.RecommendedPrice > 0 {
		margin := (item.RecommendedPrice - item.SupplierCost) / item.SupplierCost
		switch {
		case margin >= g.rules.MinMarginPct:
			factors["margin"] = factorMarginWeight
			notes = append(notes, fmt.Sprintf("margin %.1f%% is above the %.0f%% minimum", margin*100, g.rules.MinMarginPct*100))
		case margin >= 0:
			factors["margin"] = factorMarginWeight * 0.4
			notes = append(notes, fmt.Sprintf("margin %.1f%% is below the %.0f%% minimum", margin*100, g.rules.MinMarginPct*100))
		default:
			notes = append(notes, fmt.Sprintf("recommended price $%.2f is below supplier cost", item.RecommendedPrice))
		}
	}

	score := 0.0
	for _, v := range factors {
		score += v
	}
	grade := gradeForScore(score)

	notes = append(notes, fmt.Sprintf("dominant factor: %s", dominantFactor(factors)))
	return domain.ConfidenceResult{
		Score:   score,
		Grade:   grade,
		Factors: factors,
		Notes:   notes,
	}
}

// GradeQuote aggregates item results. The grade distribution always sums to
// the item count, and the overall grade never exceeds the weakest item's
// grade by more than one letter step.
func (g *ConfidenceGrader) GradeQuote(items []domain.QuoteItem) domain.QuoteConfidence {
	if len(items) == 0 {
		return domain.QuoteConfidence{
			ConfidenceResult: domain.ConfidenceResult{
				Score: 0,
				Grade: domain.GradeF,
				Notes: []string{"no items to grade"},
			},
			Distribution: map[domain.Grade]int{},
		}
	}

	distribution := map[domain.Grade]int{}
	weakest := domain.GradeA
	total := 0.0
	for _, item := range items {
		result := g.GradeItem(item)
		distribution[result.Grade]++
		weakest = domain.WorseGrade(weakest, result.Grade)
		total += result.Score
	}

	score := total / float64(len(items))
	grade := domain.CapGrade(gradeForScore(score), weakest)
	autoApprove := grade == domain.GradeA &&
		distribution[domain.GradeC] == 0 &&
		distribution[domain.GradeF] == 0

	notes := []string{
		fmt.Sprintf("%d items graded; weakest item grade %s", len(items), weakest),
	}
	if autoApprove {
		notes = append(notes, "high confidence; eligible for automated processing")
	} else {
		notes = append(notes, "manual review required before sending")
	}

	return domain.QuoteConfidence{
		ConfidenceResult: domain.ConfidenceResult{
			Score: score,
			Grade: grade,
			Notes: notes,
		},
		ItemsScored:         len(items),
		Distribution:        distribution,
		AutoApproveEligible: autoApprove,
	}
}

func gradeForScore(score float64) domain.Grade {
	switch {
	case score >= gradeAThreshold:
		return domain.GradeA
	case score >= gradeBThreshold:
		return domain.GradeB
	case score >= gradeCThreshold:
		return domain.GradeC
	default:
		return domain.GradeF
	}
}

// dominantFactor names the largest contributing factor, with a fixed
// precedence order so equal contributions resolve deterministically.
func dominantFactor(factors map[string]float64) string {
	order := []string{"has_cost", "has_history", "has_live_market", "margin"}
	best := order[0]
	for _, name := range order[1:] {
		if factors[name] > factors[best] {
			best = name
		}
	}
	return best
}

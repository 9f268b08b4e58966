package usecase

import "time"

// freshnessSteps is the decay table applied to match confidence. The month
// breakpoints are part of the observable contract and are tested at the
// boundaries.
var freshnessSteps = []struct {
	months int
	weight float64
}{
	{6, 1.0},
	{12, 0.8},
	{24, 0.5},
}

const minFreshnessWeight = 0.2

// FreshnessWeight returns the decay factor for an award date relative to now.
// Unknown dates get the minimum weight.
func FreshnessWeight(awardDate, now time.Time) float64 {
	if awardDate.IsZero() {
		return minFreshnessWeight
	}
	for _, step := range freshnessSteps {
		if !awardDate.Before(now.AddDate(0, -step.months, 0)) {
			return step.weight
		}
	}
	return minFreshnessWeight
}

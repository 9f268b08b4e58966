package domain

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeF Grade = "F"
)

// gradeRank orders grades from worst to best for the weakest-item cap.
func gradeRank(g Grade) int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	default:
		return 0
	}
}

// CapGrade limits g to at most one letter step above floor.
func CapGrade(g, floor Grade) Grade {
	limit := gradeRank(floor) + 1
	if gradeRank(g) <= limit {
		return g
	}
	switch limit {
	case 3:
		return GradeA
	case 2:
		return GradeB
	case 1:
		return GradeC
	default:
		return GradeF
	}
}

// WorseGrade returns the lower of two grades.
func WorseGrade(a, b Grade) Grade {
	if gradeRank(a) < gradeRank(b) {
		return a
	}
	return b
}

// ConfidenceResult is a view over an item's current pricing state, recomputed
// on demand and never persisted. Notes always hold at least one entry naming
// the dominant factor.
type ConfidenceResult struct {
	Score   float64            `json:"score"`
	Grade   Grade              `json:"grade"`
	Factors map[string]float64 `json:"factors"`
	Notes   []string           `json:"notes"`
}

// QuoteConfidence aggregates per-item results. Distribution always sums to
// ItemsScored.
type QuoteConfidence struct {
	ConfidenceResult
	ItemsScored         int           `json:"items_scored"`
	Distribution        map[Grade]int `json:"distribution"`
	AutoApproveEligible bool          `json:"auto_approve_eligible"`
}

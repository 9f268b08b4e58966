package usecase

import (
	"testing"
	"time"
)

func TestFreshnessWeightBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		award time.Time
		want  float64
	}{
		{"today", now, 1.0},
		{"exactly 6 months", now.AddDate(0, -6, 0), 1.0},
		{"6 months and a day", now.AddDate(0, -6, -1), 0.8},
		{"exactly 12 months", now.AddDate(0, -12, 0), 0.8},
		{"12 months and a day", now.AddDate(0, -12, -1), 0.5},
		{"exactly 24 months", now.AddDate(0, -24, 0), 0.5},
		{"24 months and a day", now.AddDate(0, -24, -1), 0.2},
		{"five years", now.AddDate(-5, 0, 0), 0.2},
		{"unknown date", time.Time{}, 0.2},
	}
	for _, tc := range cases {
		if got := FreshnessWeight(tc.award, now); got != tc.want {
			t.Fatalf("%s: FreshnessWeight = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// Package pricerules holds the tunable constants of the pricing oracle.
// Defaults match the production ruleset; a YAML file can override individual
// values without restating the rest.
package pricerules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Weights struct {
	History float64 `yaml:"history"`
	Cost    float64 `yaml:"cost"`
	Margin  float64 `yaml:"margin"`
}

type Rules struct {
	// Undercut applied to the market anchor for the recommended tier. The
	// urgent variant is used when the caller marks the request urgent.
	RecommendedUndercutPct float64 `yaml:"recommended_undercut_pct"`
	UrgentUndercutPct      float64 `yaml:"urgent_undercut_pct"`

	// Undercut applied to the lowest matched price for the aggressive tier.
	AggressiveUndercutPct       float64 `yaml:"aggressive_undercut_pct"`
	UrgentAggressiveUndercutPct float64 `yaml:"urgent_aggressive_undercut_pct"`

	SafeMarkupPct    float64 `yaml:"safe_markup_pct"`
	DefaultMarkupPct float64 `yaml:"default_markup_pct"`

	ProfitFloorRecommended float64 `yaml:"profit_floor_recommended"`
	ProfitFloorAggressive  float64 `yaml:"profit_floor_aggressive"`

	// No tier may ever be priced below cost + HardFloorMargin.
	HardFloorMargin float64 `yaml:"hard_floor_margin"`

	CeilingAlertPct float64 `yaml:"ceiling_alert_pct"`
	StaleMonths     int     `yaml:"stale_months"`
	MinMarginPct    float64 `yaml:"min_margin_pct"`

	Weights Weights `yaml:"weights"`
}

func Default() Rules {
	return Rules{
		RecommendedUndercutPct:      0.01,
		UrgentUndercutPct:           0.03,
		AggressiveUndercutPct:       0.03,
		UrgentAggressiveUndercutPct: 0.05,
		SafeMarkupPct:               0.30,
		DefaultMarkupPct:            0.25,
		ProfitFloorRecommended:      100,
		ProfitFloorAggressive:       50,
		HardFloorMargin:             25,
		CeilingAlertPct:             0.10,
		StaleMonths:                 18,
		MinMarginPct:                0.15,
		Weights: Weights{
			History: 0.60,
			Cost:    0.30,
			Margin:  0.10,
		},
	}
}

// Load reads rule overrides from a YAML file, merged over the defaults. A
// missing path or file yields the defaults unchanged.
func Load(path string) (Rules, error) {
	rules := Default()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return rules, fmt.Errorf("read pricing rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Default(), fmt.Errorf("parse pricing rules: %w", err)
	}
	return rules.normalize(), nil
}

// normalize clamps overrides back to sane values rather than failing.
func (r Rules) normalize() Rules {
	out := r
	def := Default()

	clampPct := func(v, fallback float64) float64 {
		if v < 0 || v >= 1 {
			return fallback
		}
		return v
	}
	out.RecommendedUndercutPct = clampPct(out.RecommendedUndercutPct, def.RecommendedUndercutPct)
	out.UrgentUndercutPct = clampPct(out.UrgentUndercutPct, def.UrgentUndercutPct)
	out.AggressiveUndercutPct = clampPct(out.AggressiveUndercutPct, def.AggressiveUndercutPct)
	out.UrgentAggressiveUndercutPct = clampPct(out.UrgentAggressiveUndercutPct, def.UrgentAggressiveUndercutPct)
	out.CeilingAlertPct = clampPct(out.CeilingAlertPct, def.CeilingAlertPct)
	out.MinMarginPct = clampPct(out.MinMarginPct, def.MinMarginPct)

	if out.SafeMarkupPct <= 0 {
		out.SafeMarkupPct = def.SafeMarkupPct
	}
	if out.DefaultMarkupPct <= 0 {
		out.DefaultMarkupPct = def.DefaultMarkupPct
	}
	if out.ProfitFloorRecommended < 0 {
		out.ProfitFloorRecommended = def.ProfitFloorRecommended
	}
	if out.ProfitFloorAggressive < 0 {
		out.ProfitFloorAggressive = def.ProfitFloorAggressive
	}
	if out.HardFloorMargin <= 0 {
		out.HardFloorMargin = def.HardFloorMargin
	}
	if out.StaleMonths <= 0 {
		out.StaleMonths = def.StaleMonths
	}

	sum := out.Weights.History + out.Weights.Cost + out.Weights.Margin
	if sum <= 0 {
		out.Weights = def.Weights
	} else if sum != 1.0 {
		out.Weights.History /= sum
		out.Weights.Cost /= sum
		out.Weights.Margin /= sum
	}
	return out
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/core/ports"
	"github.com/rfqworks/price-intel/internal/core/textnorm"
)

// HistoryUseCase answers "what has this item class sold for" queries and
// aggregates matched prices for the oracle.
type HistoryUseCase struct {
	store  ports.ObservationStore
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryUseCase(store ports.ObservationStore, logger *slog.Logger) *HistoryUseCase {
	return &HistoryUseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// PriceHistory returns price points for an item identifier or a category,
// most recent first. Unknown keys yield an empty slice.
func (uc *HistoryUseCase) PriceHistory(ctx context.Context, key string) ([]domain.PricePoint, error) {
	snapshot, err := uc.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	normalizedKey := textnorm.Normalize(key)
	points := make([]domain.PricePoint, 0, 16)
	for _, obs := range snapshot {
		if normalizedKey != textnorm.Normalize(obs.ItemIdentifier) &&
			domain.Category(normalizedKey) != obs.Category {
			continue
		}
		points = append(points, domain.PricePoint{Price: obs.UnitPrice, Date: obs.AwardDate})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.After(points[j].Date)
	})
	return points, nil
}

// Aggregate summarizes the priced matches backing a recommendation. Trend
// needs at least three priced matches and data on both sides of the six-month
// boundary; anything less reports insufficient data.
func Aggregate(matches []domain.Match) domain.HistorySummary {
	prices := make([]float64, 0, len(matches))
	recent := make([]float64, 0, len(matches))
	older := make([]float64, 0, len(matches))
	for _, m := range matches {
		p := m.Observation.UnitPrice
		if p <= 0 {
			continue
		}
		prices = append(prices, p)
		if m.FreshnessWeight >= 0.8 {
			recent = append(recent, p)
		} else {
			older = append(older, p)
		}
	}
	if len(prices) == 0 {
		return domain.HistorySummary{Trend: domain.TrendInsufficient}
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	summary := domain.HistorySummary{
		Matches:  len(prices),
		MinPrice: sorted[0],
		MaxPrice: sorted[len(sorted)-1],
		Median:   median(sorted),
		Average:  mean(prices),
		Trend:    domain.TrendInsufficient,
	}
	if len(recent) > 0 {
		summary.RecentAvg = mean(recent)
	}

	if len(prices) >= 3 && len(recent) > 0 && len(older) > 0 {
		pctChange := (summary.RecentAvg - mean(older)) / mean(older)
		switch {
		case pctChange > 0.05:
			summary.Trend = domain.TrendRising
		case pctChange < -0.05:
			summary.Trend = domain.TrendFalling
		default:
			summary.Trend = domain.TrendStable
		}
	}
	return summary
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

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

const (
	defaultMaxResults = 10

	// Tier 2 accepts Jaccard overlap >= this and maps it linearly into
	// [0.70, 0.95].
	tokenOverlapThreshold = 0.70
)

// MatchUseCase ranks stored observations against a query item through four
// exclusive tiers. An observation is scored by the first tier it satisfies
// and by no other.
type MatchUseCase struct {
	store  ports.ObservationStore
	logger *slog.Logger
	now    func() time.Time
}

func NewMatchUseCase(store ports.ObservationStore, logger *slog.Logger) *MatchUseCase {
	return &MatchUseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// FindSimilar returns up to maxResults matches ordered by freshness-weighted
// confidence, ties broken by more recent award date, then insertion order.
// No history is a valid, common outcome: the result is empty, not an error.
func (uc *MatchUseCase) FindSimilar(ctx context.Context, description, itemIdentifier string, maxResults int) ([]domain.Match, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	snapshot, err := uc.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	queryTokens := textnorm.Tokenize(description)
	queryItem := textnorm.Normalize(itemIdentifier)
	queryCategory := textnorm.Classify(queryTokens)
	now := uc.now()

	matches := make([]domain.Match, 0, maxResults)
	for _, obs := range snapshot {
		tier, confidence, ok := scoreTiers(obs, queryItem, queryTokens, queryCategory)
		if !ok {
			continue
		}
		weight := FreshnessWeight(obs.AwardDate, now)
		matches = append(matches, domain.Match{
			Observation:     obs,
			Tier:            tier,
			TierConfidence:  confidence,
			FreshnessWeight: weight,
			Confidence:      confidence * weight,
		})
	}

	// Stable sort over the insertion-ordered snapshot: equal confidence and
	// award date fall back to insertion order.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Observation.AwardDate.After(matches[j].Observation.AwardDate)
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	if len(matches) > 0 {
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.Observation.ID
		}
		// The touch only feeds eviction ordering; a failure must not turn an
		// already-computed read result into an error.
		if err := uc.store.MarkMatched(ctx, ids, now); err != nil {
			uc.logger.Warn("mark_matched_failed", "ids", len(ids), "error", err)
		}
	}

	uc.logger.Debug("find_similar",
		"query_item", itemIdentifier,
		"candidates", len(snapshot),
		"matches", len(matches),
	)
	return matches, nil
}

// scoreTiers evaluates the tiers in order and stops at the first hit.
func scoreTiers(obs domain.PriceObservation, queryItem string, queryTokens textnorm.TokenSet, queryCategory domain.Category) (domain.MatchTier, float64, bool) {
	// Tier 1: exact item identifier.
	if queryItem != "" && queryItem == textnorm.Normalize(obs.ItemIdentifier) {
		return domain.TierExactItem, 1.0, true
	}

	obsTokens := textnorm.FromSlice(obs.Tokens)
	if len(obsTokens) == 0 {
		obsTokens = textnorm.Tokenize(obs.RawDescription)
	}
	overlap := textnorm.Jaccard(queryTokens, obsTokens)

	// Tier 2: strong token overlap, mapped into [0.70, 0.95].
	if overlap >= tokenOverlapThreshold {
		confidence := 0.70 + (overlap-0.70)*(0.95-0.70)/0.30
		return domain.TierTokenOverlap, confidence, true
	}

	// Tier 3: same concrete category with at least one shared keyword token,
	// mapped into [0.40, 0.70].
	if queryCategory != domain.CategoryGeneral &&
		queryCategory == obs.Category &&
		queryTokens.SharedCount(obsTokens) >= 1 {
		return domain.TierCategory, 0.40 + overlap*0.30, true
	}

	return "", 0, false
}

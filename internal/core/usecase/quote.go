package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/rfqworks/price-intel/internal/core/domain"
)

// QuoteUseCase prices a whole multi-item quote: match, recommend and grade
// every line, then aggregate totals and overall confidence.
type QuoteUseCase struct {
	matcher *MatchUseCase
	oracle  *PricingOracle
	grader  *ConfidenceGrader
	logger  *slog.Logger
}

func NewQuoteUseCase(matcher *MatchUseCase, oracle *PricingOracle, grader *ConfidenceGrader, logger *slog.Logger) *QuoteUseCase {
	return &QuoteUseCase{
		matcher: matcher,
		oracle:  oracle,
		grader:  grader,
		logger:  logger,
	}
}

type PriceQuoteInput struct {
	QuoteID string
	Agency  string
	Urgent  bool
	Items   []domain.QuoteItem
}

func (uc *QuoteUseCase) PriceQuote(ctx context.Context, input PriceQuoteInput) (*domain.QuotePricing, error) {
	quoteID := input.QuoteID
	if quoteID == "" {
		quoteID = uuid.NewString()
	}

	out := &domain.QuotePricing{
		QuoteID: quoteID,
		Agency:  input.Agency,
		Items:   make([]domain.ItemPricing, 0, len(input.Items)),
	}
	summary := domain.QuoteSummary{TotalItems: len(input.Items)}
	gradedItems := make([]domain.QuoteItem, 0, len(input.Items))
	winProbs := make([]float64, 0, len(input.Items))

	for _, item := range input.Items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}

		matches, err := uc.matcher.FindSimilar(ctx, item.Description, item.ItemIdentifier, defaultMaxResults)
		if err != nil {
			return nil, fmt.Errorf("match line %d: %w", item.LineNumber, err)
		}

		rec := uc.oracle.Recommend(ctx, RecommendInput{
			ItemIdentifier: item.ItemIdentifier,
			Description:    item.Description,
			SupplierCost:   item.SupplierCost,
			Matches:        matches,
			Agency:         input.Agency,
			Category:       domain.CategoryGeneral,
			Urgent:         input.Urgent,
			Quantity:       item.Quantity,
		})

		if len(matches) > 0 {
			item.HistoryPrice = matches[0].Observation.UnitPrice
		}
		if !rec.InsufficientData() {
			item.RecommendedPrice = rec.Recommended.Price
			summary.Priced++
			qty := item.Quantity
			if qty < 1 {
				qty = 1
			}
			summary.TotalRecommended += rec.Recommended.Price * qty
			summary.TotalAggressive += rec.Aggressive.Price * qty
			summary.TotalSafe += rec.Safe.Price * qty
			winProbs = append(winProbs, rec.Recommended.WinProbability)
		} else {
			summary.NeedsManual++
		}

		gradedItems = append(gradedItems, item)
		out.Items = append(out.Items, domain.ItemPricing{Item: item, Recommendation: rec})
	}

	if len(winProbs) > 0 {
		sum := 0.0
		for _, p := range winProbs {
			sum += p
		}
		summary.AvgWinProbability = math.Round(sum/float64(len(winProbs))*1000) / 1000
	}
	summary.TotalRecommended = roundCents(summary.TotalRecommended)
	summary.TotalAggressive = roundCents(summary.TotalAggressive)
	summary.TotalSafe = roundCents(summary.TotalSafe)

	out.Summary = summary
	out.Confidence = uc.grader.GradeQuote(gradedItems)

	uc.logger.Info("quote_priced",
		"quote_id", quoteID,
		"items", summary.TotalItems,
		"priced", summary.Priced,
		"needs_manual", summary.NeedsManual,
		"grade", out.Confidence.Grade,
	)
	return out, nil
}

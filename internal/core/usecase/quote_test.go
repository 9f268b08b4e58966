package usecase

import (
	"context"
	"log/slog"
	"testing"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/pricerules"
)

func newTestQuoter(store *fakeStore) *QuoteUseCase {
	matcher := newTestMatcher(store)
	oracle := newTestOracle()
	grader := NewConfidenceGrader(pricerules.Default())
	return NewQuoteUseCase(matcher, oracle, grader, slog.Default())
}

func TestPriceQuoteMixedLines(t *testing.T) {
	store := &fakeStore{}
	store.observations = append(store.observations,
		makeObservation("PO-1", "6500-001-430", "X-RESTRAINT PACKAGE", 1245.00, testNow.AddDate(0, -2, 0)),
	)
	uc := newTestQuoter(store)

	out, err := uc.PriceQuote(context.Background(), PriceQuoteInput{
		Agency: "County Hospital",
		Items: []domain.QuoteItem{
			{
				LineNumber:     1,
				ItemIdentifier: "6500-001-430",
				Description:    "X-RESTRAINT PACKAGE",
				Quantity:       2,
				SupplierCost:   800,
			},
			{
				LineNumber:  2,
				Description: "mystery item with no data",
			},
		},
	})
	if err != nil {
		t.Fatalf("PriceQuote: %v", err)
	}

	if out.QuoteID == "" {
		t.Fatalf("expected generated quote id")
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 priced items, got %d", len(out.Items))
	}
	if out.Summary.TotalItems != 2 || out.Summary.Priced != 1 || out.Summary.NeedsManual != 1 {
		t.Fatalf("unexpected summary %+v", out.Summary)
	}

	first := out.Items[0]
	if first.Recommendation.InsufficientData() {
		t.Fatalf("matched line must be priced")
	}
	if first.Item.HistoryPrice != 1245.00 {
		t.Fatalf("expected best match price on item, got %v", first.Item.HistoryPrice)
	}
	if first.Item.RecommendedPrice != first.Recommendation.Recommended.Price {
		t.Fatalf("item recommended price not synced with recommendation")
	}
	if out.Summary.TotalRecommended != first.Recommendation.Recommended.Price*2 {
		t.Fatalf("expected quantity-weighted total, got %v", out.Summary.TotalRecommended)
	}

	second := out.Items[1]
	if !second.Recommendation.InsufficientData() {
		t.Fatalf("line without data must hit the insufficient sentinel")
	}
	if second.Item.RecommendedPrice != 0 {
		t.Fatalf("unpriced line must keep zero recommended price")
	}

	if out.Confidence.ItemsScored != 2 {
		t.Fatalf("expected 2 graded items, got %d", out.Confidence.ItemsScored)
	}
	if out.Confidence.AutoApproveEligible {
		t.Fatalf("quote with an unpriced line must not auto-approve")
	}
}

func TestPriceQuoteAssignsItemIDs(t *testing.T) {
	uc := newTestQuoter(&fakeStore{})
	out, err := uc.PriceQuote(context.Background(), PriceQuoteInput{
		QuoteID: "q-123",
		Items:   []domain.QuoteItem{{Description: "anything"}},
	})
	if err != nil {
		t.Fatalf("PriceQuote: %v", err)
	}
	if out.QuoteID != "q-123" {
		t.Fatalf("expected caller quote id kept, got %q", out.QuoteID)
	}
	if out.Items[0].Item.ID == "" {
		t.Fatalf("expected generated item id")
	}
}

func TestPriceQuoteEmptyItems(t *testing.T) {
	uc := newTestQuoter(&fakeStore{})
	out, err := uc.PriceQuote(context.Background(), PriceQuoteInput{})
	if err != nil {
		t.Fatalf("PriceQuote: %v", err)
	}
	if out.Summary.TotalItems != 0 || len(out.Items) != 0 {
		t.Fatalf("expected empty pricing, got %+v", out.Summary)
	}
	if out.Confidence.Grade != domain.GradeF {
		t.Fatalf("empty quote grades F, got %q", out.Confidence.Grade)
	}
}

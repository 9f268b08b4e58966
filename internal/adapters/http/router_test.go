package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/core/usecase"
	"github.com/rfqworks/price-intel/internal/observability/metrics"
	"github.com/rfqworks/price-intel/internal/pricerules"
)

// memStore is a minimal in-memory ObservationStore for handler tests.
type memStore struct {
	observations []domain.PriceObservation
}

func (m *memStore) Ingest(_ context.Context, obs *domain.PriceObservation) (domain.IngestResult, error) {
	for _, existing := range m.observations {
		if existing.ID == obs.ID {
			return domain.IngestResult{Stored: false, Reason: domain.ReasonDuplicate, ID: obs.ID}, nil
		}
	}
	m.observations = append(m.observations, *obs)
	return domain.IngestResult{Stored: true, Reason: domain.ReasonStored, ID: obs.ID}, nil
}

func (m *memStore) IngestBulk(ctx context.Context, obs []*domain.PriceObservation) (domain.BulkIngestResult, error) {
	var result domain.BulkIngestResult
	for _, o := range obs {
		r, _ := m.Ingest(ctx, o)
		if r.Stored {
			result.Stored++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (m *memStore) Snapshot(context.Context) ([]domain.PriceObservation, error) {
	out := make([]domain.PriceObservation, len(m.observations))
	copy(out, m.observations)
	return out, nil
}

func (m *memStore) MarkMatched(context.Context, []string, time.Time) error { return nil }

func (m *memStore) Stats(context.Context) (domain.StoreStats, error) {
	return domain.StoreStats{
		RecordCount: len(m.observations),
		Categories:  map[domain.Category]int{},
		Departments: map[string]int{},
		Suppliers:   map[string]int{},
	}, nil
}

func (m *memStore) Close() error { return nil }

func newTestHandler() (http.Handler, *memStore) {
	store := &memStore{}
	logger := slog.Default()
	rules := pricerules.Default()

	ingestUC := usecase.NewIngestUseCase(store, logger)
	matchUC := usecase.NewMatchUseCase(store, logger)
	historyUC := usecase.NewHistoryUseCase(store, logger)
	oracle := usecase.NewPricingOracle(rules, logger)
	grader := usecase.NewConfidenceGrader(rules)
	quoteUC := usecase.NewQuoteUseCase(matchUC, oracle, grader, logger)

	router := NewRouter(
		"price-intel-api-test",
		ingestUC,
		matchUC,
		historyUC,
		oracle,
		quoteUC,
		metrics.NewHTTPServerMetrics("price-intel-api-test"),
		logger,
	)
	return router.Handler(), store
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestIngestObservationEndpoint(t *testing.T) {
	handler, store := newTestHandler()

	res := postJSON(t, handler, "/v1/observations", domain.RawObservation{
		PONumber:       "PO-1",
		ItemIdentifier: "6500-001-430",
		Description:    "X-RESTRAINT PACKAGE",
		UnitPrice:      1245.00,
		AwardDate:      time.Now().UTC().AddDate(0, -2, 0),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var result domain.IngestResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Stored || result.ID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(store.observations) != 1 {
		t.Fatalf("expected 1 stored observation, got %d", len(store.observations))
	}
}

func TestIngestRejectionReturns200(t *testing.T) {
	handler, _ := newTestHandler()

	res := postJSON(t, handler, "/v1/observations", domain.RawObservation{
		ItemIdentifier: "A-1",
		Description:    "free sample",
		UnitPrice:      0,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for validation rejection, got %d", res.Code)
	}
	var result domain.IngestResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Stored || result.Reason != domain.ReasonZeroPrice {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestIngestInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader([]byte("{not json")))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIngestBulkEndpoint(t *testing.T) {
	handler, _ := newTestHandler()

	res := postJSON(t, handler, "/v1/observations/bulk", map[string]any{
		"observations": []domain.RawObservation{
			{PONumber: "PO-1", ItemIdentifier: "A-1", Description: "surgical gloves", UnitPrice: 10},
			{PONumber: "PO-2", ItemIdentifier: "B-1", Description: "copy paper", UnitPrice: 0},
		},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var result domain.BulkIngestResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Stored != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected bulk result %+v", result)
	}
}

func TestMatchesEndpoint(t *testing.T) {
	handler, _ := newTestHandler()

	postJSON(t, handler, "/v1/observations", domain.RawObservation{
		PONumber:       "PO-1",
		ItemIdentifier: "6500-001-430",
		Description:    "X-RESTRAINT PACKAGE",
		UnitPrice:      1245.00,
		AwardDate:      time.Now().UTC().AddDate(0, -2, 0),
	})

	res := postJSON(t, handler, "/v1/matches", map[string]any{
		"description":     "x restraint package",
		"item_identifier": "6500-001-430",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		Matches []domain.Match `json:"matches"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Matches) != 1 || body.Matches[0].Tier != domain.TierExactItem {
		t.Fatalf("unexpected matches %+v", body.Matches)
	}
}

func TestMatchesRequiresQuery(t *testing.T) {
	handler, _ := newTestHandler()
	res := postJSON(t, handler, "/v1/matches", map[string]any{})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	handler, _ := newTestHandler()

	postJSON(t, handler, "/v1/observations", domain.RawObservation{
		PONumber:       "PO-1",
		ItemIdentifier: "A-1",
		Description:    "surgical gloves",
		UnitPrice:      10,
		AwardDate:      time.Now().UTC().AddDate(0, -1, 0),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/history/A-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Key    string              `json:"key"`
		Points []domain.PricePoint `json:"points"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Key != "A-1" || len(body.Points) != 1 {
		t.Fatalf("unexpected history %+v", body)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	handler, _ := newTestHandler()

	postJSON(t, handler, "/v1/observations", domain.RawObservation{
		PONumber:       "PO-1",
		ItemIdentifier: "A-1",
		Description:    "surgical gloves",
		UnitPrice:      150,
		AwardDate:      time.Now().UTC().AddDate(0, -1, 0),
	})

	res := postJSON(t, handler, "/v1/recommendations", map[string]any{
		"item_identifier": "A-1",
		"description":     "surgical gloves",
		"supplier_cost":   100,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var rec domain.PricingRecommendation
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.DataQuality != domain.DataFull {
		t.Fatalf("expected full data quality, got %q", rec.DataQuality)
	}
	if rec.Recommended == nil || rec.Recommended.Price <= 0 {
		t.Fatalf("expected priced recommendation, got %+v", rec.Recommended)
	}
}

func TestRecommendationsInsufficientData(t *testing.T) {
	handler, _ := newTestHandler()
	res := postJSON(t, handler, "/v1/recommendations", map[string]any{
		"description": "never seen before",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var rec domain.PricingRecommendation
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.DataQuality != domain.DataInsufficient || rec.Recommended != nil {
		t.Fatalf("expected insufficient sentinel, got %+v", rec)
	}
}

func TestGradeQuoteEndpoint(t *testing.T) {
	handler, _ := newTestHandler()

	res := postJSON(t, handler, "/v1/grades/quote", map[string]any{
		"quote_id": "q-1",
		"items": []map[string]any{
			{"description": "surgical gloves", "supplier_cost": 100},
		},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var pricing domain.QuotePricing
	if err := json.NewDecoder(res.Body).Decode(&pricing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if pricing.QuoteID != "q-1" || pricing.Confidence.ItemsScored != 1 {
		t.Fatalf("unexpected pricing %+v", pricing)
	}
}

func TestGradeQuoteRequiresItems(t *testing.T) {
	handler, _ := newTestHandler()
	res := postJSON(t, handler, "/v1/grades/quote", map[string]any{"quote_id": "q-1"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	handler, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var stats domain.StoreStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.RecordCount != 0 {
		t.Fatalf("expected empty store, got %d", stats.RecordCount)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/v1/observations", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

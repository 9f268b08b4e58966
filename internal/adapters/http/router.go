package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/core/usecase"
	"github.com/rfqworks/price-intel/internal/observability/metrics"
)

type Router struct {
	service string

	ingestUC  *usecase.IngestUseCase
	matchUC   *usecase.MatchUseCase
	historyUC *usecase.HistoryUseCase
	oracle    *usecase.PricingOracle
	quoteUC   *usecase.QuoteUseCase

	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

func NewRouter(
	service string,
	ingestUC *usecase.IngestUseCase,
	matchUC *usecase.MatchUseCase,
	historyUC *usecase.HistoryUseCase,
	oracle *usecase.PricingOracle,
	quoteUC *usecase.QuoteUseCase,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		service:   service,
		ingestUC:  ingestUC,
		matchUC:   matchUC,
		historyUC: historyUC,
		oracle:    oracle,
		quoteUC:   quoteUC,
		metrics:   m,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/observations", rt.ingestObservation)
	mux.HandleFunc("/v1/observations/bulk", rt.ingestBulk)
	mux.HandleFunc("/v1/matches", rt.findMatches)
	mux.HandleFunc("/v1/history/", rt.priceHistory)
	mux.HandleFunc("/v1/recommendations", rt.recommend)
	mux.HandleFunc("/v1/grades/quote", rt.gradeQuote)
	mux.HandleFunc("/v1/stats", rt.stats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestObservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var raw domain.RawObservation
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	result, err := rt.ingestUC.Ingest(r.Context(), raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Stored {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (rt *Router) ingestBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		Observations []domain.RawObservation `json:"observations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if len(req.Observations) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("observations are required"))
		return
	}

	result, err := rt.ingestUC.IngestBulk(r.Context(), req.Observations)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) findMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		Description    string `json:"description"`
		ItemIdentifier string `json:"item_identifier"`
		MaxResults     int    `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.ItemIdentifier) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("description or item_identifier is required"))
		return
	}

	start := time.Now()
	matches, err := rt.matchUC.FindSimilar(r.Context(), req.Description, req.ItemIdentifier, req.MaxResults)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordMatchQuery(rt.service, len(matches), time.Since(start))
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (rt *Router) priceHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/history/")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("history key is required"))
		return
	}

	points, err := rt.historyUC.PriceHistory(r.Context(), key)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "points": points})
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		ItemIdentifier string  `json:"item_identifier"`
		Description    string  `json:"description"`
		SupplierCost   float64 `json:"supplier_cost"`
		Agency         string  `json:"agency"`
		Urgent         bool    `json:"urgent"`
		Quantity       float64 `json:"quantity"`
		MaxResults     int     `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.ItemIdentifier) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("description or item_identifier is required"))
		return
	}

	matches, err := rt.matchUC.FindSimilar(r.Context(), req.Description, req.ItemIdentifier, req.MaxResults)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	rec := rt.oracle.Recommend(r.Context(), usecase.RecommendInput{
		ItemIdentifier: req.ItemIdentifier,
		Description:    req.Description,
		SupplierCost:   req.SupplierCost,
		Matches:        matches,
		Agency:         req.Agency,
		Urgent:         req.Urgent,
		Quantity:       req.Quantity,
	})
	if rt.metrics != nil {
		rt.metrics.RecordRecommendation(rt.service, string(rec.DataQuality))
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) gradeQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		QuoteID string             `json:"quote_id"`
		Agency  string             `json:"agency"`
		Urgent  bool               `json:"urgent"`
		Items   []domain.QuoteItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("items are required"))
		return
	}

	pricing, err := rt.quoteUC.PriceQuote(r.Context(), usecase.PriceQuoteInput{
		QuoteID: req.QuoteID,
		Agency:  req.Agency,
		Urgent:  req.Urgent,
		Items:   req.Items,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuoteGrade(rt.service, string(pricing.Confidence.Grade))
	}
	writeJSON(w, http.StatusOK, pricing)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	stats, err := rt.ingestUC.Stats(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/core/ports"
	"github.com/rfqworks/price-intel/internal/core/textnorm"
)

// IngestUseCase turns raw collaborator observations into normalized records
// and writes them to the store. Validation rejections are reported as results
// with a reason code; they never fail the caller.
type IngestUseCase struct {
	store  ports.ObservationStore
	logger *slog.Logger
	now    func() time.Time
}

func NewIngestUseCase(store ports.ObservationStore, logger *slog.Logger) *IngestUseCase {
	return &IngestUseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, raw domain.RawObservation) (domain.IngestResult, error) {
	if result, ok := validate(raw); !ok {
		uc.logger.Warn("observation_rejected", "reason", result.Reason, "item", raw.ItemIdentifier)
		return result, nil
	}

	obs := uc.build(raw)
	result, err := uc.store.Ingest(ctx, obs)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("ingest observation: %w", err)
	}
	uc.logger.Info("observation_ingested",
		"id", result.ID,
		"stored", result.Stored,
		"reason", result.Reason,
		"category", obs.Category,
	)
	return result, nil
}

// IngestBulk applies the per-record rule to every raw observation. Invalid
// records count as skipped alongside duplicates.
func (uc *IngestUseCase) IngestBulk(ctx context.Context, raws []domain.RawObservation) (domain.BulkIngestResult, error) {
	valid := make([]*domain.PriceObservation, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		if _, ok := validate(raw); !ok {
			skipped++
			continue
		}
		valid = append(valid, uc.build(raw))
	}

	result, err := uc.store.IngestBulk(ctx, valid)
	if err != nil {
		return domain.BulkIngestResult{}, fmt.Errorf("bulk ingest: %w", err)
	}
	result.Skipped += skipped
	uc.logger.Info("bulk_ingest_done", "stored", result.Stored, "skipped", result.Skipped)
	return result, nil
}

func (uc *IngestUseCase) Stats(ctx context.Context) (domain.StoreStats, error) {
	return uc.store.Stats(ctx)
}

func validate(raw domain.RawObservation) (domain.IngestResult, bool) {
	// Zero and negative prices corrupt averages and are almost always parsing
	// artifacts upstream.
	if raw.UnitPrice <= 0 || math.IsNaN(raw.UnitPrice) || math.IsInf(raw.UnitPrice, 0) {
		return domain.IngestResult{Stored: false, Reason: domain.ReasonZeroPrice}, false
	}
	if textnorm.Normalize(raw.Description) == "" && textnorm.Normalize(raw.ItemIdentifier) == "" {
		return domain.IngestResult{Stored: false, Reason: domain.ReasonEmptyItem}, false
	}
	return domain.IngestResult{}, true
}

func (uc *IngestUseCase) build(raw domain.RawObservation) *domain.PriceObservation {
	normalized := textnorm.Normalize(raw.Description)
	tokens := textnorm.Tokenize(raw.Description)
	quantity := raw.Quantity
	if quantity < 1 {
		quantity = 1
	}
	source := raw.SourceKind
	if source == "" {
		source = domain.SourceManual
	}
	return &domain.PriceObservation{
		ID:                    domain.ObservationID(raw.PONumber, raw.ItemIdentifier, normalized),
		PONumber:              raw.PONumber,
		ItemIdentifier:        raw.ItemIdentifier,
		RawDescription:        raw.Description,
		NormalizedDescription: normalized,
		Tokens:                tokens.Sorted(),
		Category:              textnorm.Classify(tokens),
		SupplierName:          raw.SupplierName,
		Department:            raw.Department,
		UnitPrice:             raw.UnitPrice,
		Quantity:              quantity,
		TotalPrice:            roundCents(raw.UnitPrice * quantity),
		AwardDate:             raw.AwardDate,
		SourceKind:            source,
		IngestedAt:            uc.now().UTC(),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

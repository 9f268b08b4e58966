package ports

import (
	"context"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
)

// ObservationStore is the durable, deduplicated, capacity-bounded collection
// of price observations. Writes are serialized against each other; reads see
// a consistent snapshot and never a partially written record. Implementations
// must persist atomically: after a crash the store reflects one valid,
// complete state.
type ObservationStore interface {
	// Ingest stores one validated observation. Duplicate IDs are a no-op
	// reported as a skip, not an error.
	Ingest(ctx context.Context, obs *domain.PriceObservation) (domain.IngestResult, error)

	// IngestBulk applies the single-record rule per observation and reports
	// stored vs skipped counts.
	IngestBulk(ctx context.Context, obs []*domain.PriceObservation) (domain.BulkIngestResult, error)

	// Snapshot returns all observations in insertion order. Insertion order is
	// the final tie-breaker for match ranking.
	Snapshot(ctx context.Context) ([]domain.PriceObservation, error)

	// MarkMatched records that the given observations were returned by a match
	// query; eviction prefers records never marked.
	MarkMatched(ctx context.Context, ids []string, at time.Time) error

	Stats(ctx context.Context) (domain.StoreStats, error)

	Close() error
}

// ObservationQueue moves raw observations from ingestion collaborators to the
// worker.
type ObservationQueue interface {
	PublishObservation(ctx context.Context, raw domain.RawObservation) error
	SubscribeObservations(ctx context.Context, handler func(context.Context, domain.RawObservation) error) error
}

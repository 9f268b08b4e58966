// Package postgres is the shared-deployment backend for the observation
// store. Dedup rides on the primary key, capacity is enforced by deleting the
// least-recently-matched rows, and snapshots come back in insertion order.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rfqworks/price-intel/internal/core/domain"
	"github.com/rfqworks/price-intel/internal/infrastructure/resilience"
)

const schemaLockID = 742190553

const schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id                     TEXT PRIMARY KEY,
	seq                    BIGSERIAL,
	po_number              TEXT NOT NULL,
	item_identifier        TEXT NOT NULL,
	raw_description        TEXT NOT NULL,
	normalized_description TEXT NOT NULL,
	tokens                 TEXT NOT NULL,
	category               TEXT NOT NULL,
	supplier_name          TEXT NOT NULL DEFAULT '',
	department             TEXT NOT NULL DEFAULT '',
	unit_price             DOUBLE PRECISION NOT NULL,
	quantity               DOUBLE PRECISION NOT NULL,
	total_price            DOUBLE PRECISION NOT NULL,
	award_date             TIMESTAMPTZ NOT NULL,
	source_kind            TEXT NOT NULL,
	ingested_at            TIMESTAMPTZ NOT NULL,
	last_matched_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_price_observations_seq ON price_observations (seq);
CREATE INDEX IF NOT EXISTS idx_price_observations_category ON price_observations (category);
`

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// EnsureSchema creates the observation table under an advisory lock so
// concurrently starting workers do not race the DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire schema conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, schemaLockID)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type Store struct {
	db         *sql.DB
	maxRecords int
	exec       *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	MaxRecords int
	Executor   *resilience.Executor
	Logger     *slog.Logger
}

func NewStore(db *sql.DB, opts Options) *Store {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 10000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		db:         db,
		maxRecords: opts.MaxRecords,
		exec:       opts.Executor,
		logger:     opts.Logger,
	}
}

func (s *Store) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.exec == nil {
		return fn(ctx)
	}
	return s.exec.Execute(ctx, operation, fn, resilience.DefaultClassifier)
}

func (s *Store) Ingest(ctx context.Context, obs *domain.PriceObservation) (domain.IngestResult, error) {
	var result domain.IngestResult
	err := s.run(ctx, "store.ingest", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
INSERT INTO price_observations (
	id, po_number, item_identifier, raw_description, normalized_description,
	tokens, category, supplier_name, department, unit_price, quantity,
	total_price, award_date, source_kind, ingested_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO NOTHING
`, obs.ID, obs.PONumber, obs.ItemIdentifier, obs.RawDescription, obs.NormalizedDescription,
			strings.Join(obs.Tokens, " "), string(obs.Category), obs.SupplierName, obs.Department,
			obs.UnitPrice, obs.Quantity, obs.TotalPrice, obs.AwardDate, string(obs.SourceKind), obs.IngestedAt)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert observation rows affected: %w", err)
		}
		if rows == 0 {
			result = domain.IngestResult{Stored: false, Reason: domain.ReasonDuplicate, ID: obs.ID}
			return nil
		}
		result = domain.IngestResult{Stored: true, Reason: domain.ReasonStored, ID: obs.ID}
		return s.evict(ctx)
	})
	if err != nil {
		return domain.IngestResult{}, err
	}
	return result, nil
}

func (s *Store) IngestBulk(ctx context.Context, obs []*domain.PriceObservation) (domain.BulkIngestResult, error) {
	var result domain.BulkIngestResult
	for _, o := range obs {
		r, err := s.Ingest(ctx, o)
		if err != nil {
			return domain.BulkIngestResult{}, err
		}
		if r.Stored {
			result.Stored++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

// evict removes the least-recently-matched rows beyond capacity. Rows never
// matched rank by ingestion time instead.
func (s *Store) evict(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM price_observations
WHERE id IN (
	SELECT id FROM price_observations
	ORDER BY COALESCE(last_matched_at, ingested_at) ASC, seq ASC
	LIMIT GREATEST((SELECT COUNT(*) FROM price_observations) - $1, 0)
)
`, s.maxRecords)
	if err != nil {
		return fmt.Errorf("evict observations: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) ([]domain.PriceObservation, error) {
	var out []domain.PriceObservation
	err := s.run(ctx, "store.snapshot", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
SELECT id, po_number, item_identifier, raw_description, normalized_description,
	tokens, category, supplier_name, department, unit_price, quantity,
	total_price, award_date, source_kind, ingested_at
FROM price_observations
ORDER BY seq ASC
`)
		if err != nil {
			return fmt.Errorf("snapshot observations: %w", err)
		}
		defer rows.Close()

		out = make([]domain.PriceObservation, 0)
		for rows.Next() {
			obs, err := scanObservation(rows)
			if err != nil {
				return err
			}
			out = append(out, obs)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate observations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MarkMatched(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.run(ctx, "store.mark_matched", func(ctx context.Context) error {
		placeholders := make([]string, len(ids))
		args := make([]any, 0, len(ids)+1)
		args = append(args, at)
		for i, id := range ids {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query := fmt.Sprintf(`UPDATE price_observations SET last_matched_at = $1 WHERE id IN (%s)`,
			strings.Join(placeholders, ","))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mark matched: %w", err)
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{
		Categories:  map[domain.Category]int{},
		Departments: map[string]int{},
		Suppliers:   map[string]int{},
	}
	err := s.run(ctx, "store.stats", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(MIN(award_date), 'epoch'::timestamptz),
	COALESCE(MAX(award_date), 'epoch'::timestamptz),
	COALESCE(AVG(unit_price) FILTER (WHERE unit_price > 0), 0),
	COALESCE(SUM(total_price), 0)
FROM price_observations
`)
		var earliest, latest time.Time
		if err := row.Scan(&stats.RecordCount, &earliest, &latest, &stats.AverageUnitPrice, &stats.TotalValue); err != nil {
			return fmt.Errorf("store stats: %w", err)
		}
		if stats.RecordCount > 0 {
			stats.EarliestAward = earliest
			stats.LatestAward = latest
		}

		rows, err := s.db.QueryContext(ctx, `
SELECT category, supplier_name, department, COUNT(*)
FROM price_observations
GROUP BY category, supplier_name, department
`)
		if err != nil {
			return fmt.Errorf("store stats breakdown: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var category, supplier, department string
			var count int
			if err := rows.Scan(&category, &supplier, &department, &count); err != nil {
				return fmt.Errorf("scan stats breakdown: %w", err)
			}
			stats.Categories[domain.Category(category)] += count
			if supplier != "" {
				stats.Suppliers[supplier] += count
			}
			if department != "" {
				stats.Departments[department] += count
			}
		}
		return rows.Err()
	})
	if err != nil {
		return domain.StoreStats{}, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type observationScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row observationScanner) (domain.PriceObservation, error) {
	var obs domain.PriceObservation
	var tokens, category, sourceKind string
	err := row.Scan(
		&obs.ID,
		&obs.PONumber,
		&obs.ItemIdentifier,
		&obs.RawDescription,
		&obs.NormalizedDescription,
		&tokens,
		&category,
		&obs.SupplierName,
		&obs.Department,
		&obs.UnitPrice,
		&obs.Quantity,
		&obs.TotalPrice,
		&obs.AwardDate,
		&sourceKind,
		&obs.IngestedAt,
	)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("scan observation: %w", err)
	}
	if tokens != "" {
		obs.Tokens = strings.Fields(tokens)
	}
	obs.Category = domain.Category(category)
	obs.SourceKind = domain.SourceKind(sourceKind)
	return obs, nil
}

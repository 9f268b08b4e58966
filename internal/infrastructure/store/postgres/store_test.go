package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rfqworks/price-intel/internal/core/domain"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	store := NewStore(db, Options{MaxRecords: 100})
	return store, mock, func() { _ = db.Close() }
}

func testObservation() *domain.PriceObservation {
	return &domain.PriceObservation{
		ID:                    "obs_0123456789ab",
		PONumber:              "PO-1",
		ItemIdentifier:        "A-1",
		RawDescription:        "surgical gloves",
		NormalizedDescription: "surgical gloves",
		Tokens:                []string{"gloves", "surgical"},
		Category:              domain.CategoryMedical,
		UnitPrice:             12.5,
		Quantity:              1,
		TotalPrice:            12.5,
		AwardDate:             testNow.AddDate(0, -1, 0),
		SourceKind:            domain.SourceManual,
		IngestedAt:            testNow,
	}
}

func TestIngestStoresNewObservation(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO price_observations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM price_observations").
		WithArgs(100).
		WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := store.Ingest(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Stored || result.Reason != domain.ReasonStored {
		t.Fatalf("expected stored result, got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIngestReportsDuplicateOnConflict(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	// ON CONFLICT DO NOTHING yields zero affected rows for a duplicate.
	mock.ExpectExec("INSERT INTO price_observations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := store.Ingest(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Stored || result.Reason != domain.ReasonDuplicate {
		t.Fatalf("expected duplicate no-op, got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSnapshotReturnsInsertionOrder(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	columns := []string{
		"id", "po_number", "item_identifier", "raw_description", "normalized_description",
		"tokens", "category", "supplier_name", "department", "unit_price", "quantity",
		"total_price", "award_date", "source_kind", "ingested_at",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("obs_1", "PO-1", "A-1", "surgical gloves", "surgical gloves",
			"gloves surgical", "medical", "", "", 12.5, 1.0, 12.5, testNow, "manual", testNow).
		AddRow("obs_2", "PO-2", "B-1", "copy paper", "copy paper",
			"copy paper", "office", "", "", 38.0, 1.0, 38.0, testNow, "manual", testNow)

	mock.ExpectQuery("SELECT (.+) FROM price_observations ORDER BY seq ASC").
		WillReturnRows(rows)

	snapshot, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(snapshot))
	}
	if snapshot[0].ID != "obs_1" || snapshot[1].ID != "obs_2" {
		t.Fatalf("order lost: %s, %s", snapshot[0].ID, snapshot[1].ID)
	}
	if snapshot[0].Category != domain.CategoryMedical {
		t.Fatalf("category not restored, got %q", snapshot[0].Category)
	}
	if len(snapshot[0].Tokens) != 2 {
		t.Fatalf("tokens not restored, got %v", snapshot[0].Tokens)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkMatchedUpdatesAllIDs(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE price_observations SET last_matched_at").
		WithArgs(testNow, "obs_1", "obs_2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := store.MarkMatched(context.Background(), []string{"obs_1", "obs_2"}, testNow); err != nil {
		t.Fatalf("MarkMatched: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkMatchedNoIDsIsNoOp(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	if err := store.MarkMatched(context.Background(), nil, testNow); err != nil {
		t.Fatalf("MarkMatched: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatsAggregates(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count", "min", "max", "avg", "sum"}).
			AddRow(2, testNow.AddDate(0, -6, 0), testNow, 25.25, 50.5))
	mock.ExpectQuery("SELECT category, supplier_name, department").
		WillReturnRows(sqlmock.NewRows([]string{"category", "supplier_name", "department", "count"}).
			AddRow("medical", "Medline", "Hospital", 1).
			AddRow("office", "", "", 1))

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RecordCount != 2 {
		t.Fatalf("expected 2 records, got %d", stats.RecordCount)
	}
	if stats.Categories[domain.CategoryMedical] != 1 || stats.Categories[domain.CategoryOffice] != 1 {
		t.Fatalf("unexpected categories %v", stats.Categories)
	}
	if stats.Suppliers["Medline"] != 1 {
		t.Fatalf("unexpected suppliers %v", stats.Suppliers)
	}
	if _, blank := stats.Suppliers[""]; blank {
		t.Fatalf("blank supplier must not be counted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

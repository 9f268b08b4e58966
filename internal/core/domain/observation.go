package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Category string

const (
	CategoryMedical    Category = "medical"
	CategoryOffice     Category = "office"
	CategoryIndustrial Category = "industrial"
	CategoryJanitorial Category = "janitorial"
	CategoryGeneral    Category = "general"
)

// SourceKind records the provenance of an observation. Informational only:
// matching and pricing never branch on it.
type SourceKind string

const (
	SourceLiveLookup SourceKind = "live_lookup"
	SourceBulkImport SourceKind = "bulk_import"
	SourceManual     SourceKind = "manual"
)

// PriceObservation is one historical record of an item sold at a price on a
// date. Immutable once stored; identified by a content hash of the source PO,
// item identifier and normalized description.
type PriceObservation struct {
	ID                    string     `json:"id"`
	PONumber              string     `json:"po_number"`
	ItemIdentifier        string     `json:"item_identifier"`
	RawDescription        string     `json:"raw_description"`
	NormalizedDescription string     `json:"normalized_description"`
	Tokens                []string   `json:"tokens"`
	Category              Category   `json:"category"`
	SupplierName          string     `json:"supplier_name,omitempty"`
	Department            string     `json:"department,omitempty"`
	UnitPrice             float64    `json:"unit_price"`
	Quantity              float64    `json:"quantity"`
	TotalPrice            float64    `json:"total_price"`
	AwardDate             time.Time  `json:"award_date"`
	SourceKind            SourceKind `json:"source_kind"`
	IngestedAt            time.Time  `json:"ingested_at"`
}

// RawObservation is what ingestion collaborators (live lookup, bulk import,
// manual entry) hand over before normalization.
type RawObservation struct {
	PONumber       string     `json:"po_number"`
	ItemIdentifier string     `json:"item_identifier"`
	Description    string     `json:"description"`
	SupplierName   string     `json:"supplier_name,omitempty"`
	Department     string     `json:"department,omitempty"`
	UnitPrice      float64    `json:"unit_price"`
	Quantity       float64    `json:"quantity"`
	AwardDate      time.Time  `json:"award_date"`
	SourceKind     SourceKind `json:"source_kind,omitempty"`
}

// ObservationID derives the deterministic record identifier used for
// de-duplication. Same PO + item + normalized description always collapse to
// the same ID, so re-ingesting an observation is a no-op.
func ObservationID(poNumber, itemIdentifier, normalizedDescription string) string {
	sum := sha256.Sum256([]byte(poNumber + "|" + itemIdentifier + "|" + normalizedDescription))
	return "obs_" + hex.EncodeToString(sum[:])[:12]
}

type IngestReason string

const (
	ReasonStored    IngestReason = "stored"
	ReasonDuplicate IngestReason = "duplicate"
	ReasonZeroPrice IngestReason = "zero_price"
	ReasonEmptyItem IngestReason = "empty_item"
)

// IngestResult reports the outcome of a single ingest call. Validation
// rejections are results, not errors: the caller keeps running.
type IngestResult struct {
	Stored bool         `json:"stored"`
	Reason IngestReason `json:"reason"`
	ID     string       `json:"id,omitempty"`
}

type BulkIngestResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// StoreStats summarizes the knowledge base contents.
type StoreStats struct {
	RecordCount      int              `json:"record_count"`
	Categories       map[Category]int `json:"categories"`
	Departments      map[string]int   `json:"departments"`
	Suppliers        map[string]int   `json:"suppliers"`
	EarliestAward    time.Time        `json:"earliest_award,omitempty"`
	LatestAward      time.Time        `json:"latest_award,omitempty"`
	AverageUnitPrice float64          `json:"average_unit_price"`
	TotalValue       float64          `json:"total_value"`
}

// Package jsonfile is the default durable backend for the observation store:
// an in-memory index persisted as one JSON snapshot, replaced atomically via
// write-to-temp-then-rename so the on-disk state is always one complete,
// valid store.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rfqworks/price-intel/internal/core/domain"
)

const defaultMaxRecords = 10000

type record struct {
	domain.PriceObservation
	Seq           uint64    `json:"seq"`
	LastMatchedAt time.Time `json:"last_matched_at"`
}

type fileState struct {
	Records []*record `json:"records"`
}

// Store keeps writes exclusive and lets reads run concurrently against a
// consistent snapshot.
type Store struct {
	path       string
	maxRecords int

	mu     sync.RWMutex
	byID   map[string]*record
	order  []*record // insertion order, ties in match ranking fall back to it
	seq    uint64
	closed bool
}

func Open(path string, maxRecords int) (*Store, error) {
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &Store{
		path:       path,
		maxRecords: maxRecords,
		byID:       make(map[string]*record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode store file: %w", err)
	}
	for _, rec := range state.Records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if _, dup := s.byID[rec.ID]; dup {
			continue
		}
		s.byID[rec.ID] = rec
		s.order = append(s.order, rec)
		if rec.Seq > s.seq {
			s.seq = rec.Seq
		}
	}
	return nil
}

// persistLocked writes the whole store to a temp file in the same directory
// and renames it over the live file. Callers hold the write lock.
func (s *Store) persistLocked() error {
	state := fileState{Records: s.order}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".observations-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

func (s *Store) Ingest(ctx context.Context, obs *domain.PriceObservation) (domain.IngestResult, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.IngestResult{}, domain.ErrStoreClosed
	}

	prevOrder := append([]*record(nil), s.order...)
	prevSeq := s.seq

	rec, ok := s.insertLocked(obs)
	if !ok {
		return domain.IngestResult{Stored: false, Reason: domain.ReasonDuplicate, ID: obs.ID}, nil
	}
	evicted := s.evictLocked()
	if err := s.persistLocked(); err != nil {
		s.rollbackLocked([]*record{rec}, evicted, prevOrder, prevSeq)
		return domain.IngestResult{}, err
	}
	return domain.IngestResult{Stored: true, Reason: domain.ReasonStored, ID: obs.ID}, nil
}

func (s *Store) IngestBulk(ctx context.Context, obs []*domain.PriceObservation) (domain.BulkIngestResult, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.BulkIngestResult{}, domain.ErrStoreClosed
	}

	prevOrder := append([]*record(nil), s.order...)
	prevSeq := s.seq

	var result domain.BulkIngestResult
	var inserted []*record
	for _, o := range obs {
		if rec, ok := s.insertLocked(o); ok {
			inserted = append(inserted, rec)
			result.Stored++
		} else {
			result.Skipped++
		}
	}
	evicted := s.evictLocked()
	if result.Stored > 0 {
		if err := s.persistLocked(); err != nil {
			s.rollbackLocked(inserted, evicted, prevOrder, prevSeq)
			return domain.BulkIngestResult{}, err
		}
	}
	return result, nil
}

func (s *Store) insertLocked(obs *domain.PriceObservation) (*record, bool) {
	if _, exists := s.byID[obs.ID]; exists {
		return nil, false
	}
	s.seq++
	rec := &record{PriceObservation: *obs, Seq: s.seq}
	s.byID[obs.ID] = rec
	s.order = append(s.order, rec)
	return rec, true
}

// evictLocked enforces the capacity bound: least-recently-matched records go
// first, never-matched records fall back to oldest-ingested. Writes hold the
// exclusive lock, so no in-flight match can lose a record it is scoring.
func (s *Store) evictLocked() []*record {
	var evicted []*record
	for len(s.order) > s.maxRecords {
		victim := -1
		var victimKey time.Time
		for i, rec := range s.order {
			key := rec.LastMatchedAt
			if key.IsZero() {
				key = rec.IngestedAt
			}
			if victim == -1 || key.Before(victimKey) {
				victim = i
				victimKey = key
			}
		}
		rec := s.order[victim]
		delete(s.byID, rec.ID)
		s.order = append(s.order[:victim], s.order[victim+1:]...)
		evicted = append(evicted, rec)
	}
	return evicted
}

// rollbackLocked undoes an insert batch after a failed persist. Memory must
// keep matching the on-disk state, or a retry of the same observation would
// be misreported as a duplicate and the record lost on restart.
func (s *Store) rollbackLocked(inserted, evicted, prevOrder []*record, prevSeq uint64) {
	// Restore before deleting: a record inserted and then evicted in the same
	// call must end up absent, not resurrected.
	for _, rec := range evicted {
		s.byID[rec.ID] = rec
	}
	for _, rec := range inserted {
		delete(s.byID, rec.ID)
	}
	s.order = prevOrder
	s.seq = prevSeq
}

func (s *Store) Snapshot(ctx context.Context) ([]domain.PriceObservation, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	out := make([]domain.PriceObservation, len(s.order))
	for i, rec := range s.order {
		out[i] = rec.PriceObservation
	}
	return out, nil
}

func (s *Store) MarkMatched(ctx context.Context, ids []string, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	touched := false
	for _, id := range ids {
		if rec, ok := s.byID[id]; ok {
			rec.LastMatchedAt = at
			touched = true
		}
	}
	if !touched {
		return nil
	}
	return s.persistLocked()
}

func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.StoreStats{}, domain.ErrStoreClosed
	}

	stats := domain.StoreStats{
		RecordCount: len(s.order),
		Categories:  map[domain.Category]int{},
		Departments: map[string]int{},
		Suppliers:   map[string]int{},
	}
	priceSum := 0.0
	priced := 0
	for _, rec := range s.order {
		stats.Categories[rec.Category]++
		if rec.Department != "" {
			stats.Departments[rec.Department]++
		}
		if rec.SupplierName != "" {
			stats.Suppliers[rec.SupplierName]++
		}
		if rec.UnitPrice > 0 {
			priceSum += rec.UnitPrice
			priced++
		}
		stats.TotalValue += rec.TotalPrice
		if !rec.AwardDate.IsZero() {
			if stats.EarliestAward.IsZero() || rec.AwardDate.Before(stats.EarliestAward) {
				stats.EarliestAward = rec.AwardDate
			}
			if rec.AwardDate.After(stats.LatestAward) {
				stats.LatestAward = rec.AwardDate
			}
		}
	}
	if priced > 0 {
		stats.AverageUnitPrice = priceSum / float64(priced)
	}
	return stats, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

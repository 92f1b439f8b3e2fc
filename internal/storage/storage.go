// Package storage provides the per-unit balance history with pluggable persistence.
// History lives in memory during a run and is persisted as a single keyed document
// (unit id -> ordered records), either as a JSON file or in an SQLite database.
//
// Load never leaves the store unusable: a missing backing store yields an empty
// history, and an unreadable one yields an empty history plus a diagnostic error.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
)

// ErrCorrupt marks a backing store whose contents could not be decoded.
var ErrCorrupt = errors.New("history store is corrupt")

// Backend persists the full keyed history document.
type Backend interface {
	// Read returns the stored history. A missing store is not an error.
	Read() (map[string][]models.Record, error)
	// Write replaces the stored history with h.
	Write(h map[string][]models.Record) error
	Close() error
}

// Storage holds unit histories in memory and persists them through a Backend.
type Storage struct {
	history map[string][]models.Record
	mu      sync.RWMutex
	backend Backend
}

// New creates an empty Storage backed by b.
func New(b Backend) *Storage {
	return &Storage{
		history: make(map[string][]models.Record),
		backend: b,
	}
}

// Load replaces the in-memory history with the backend's contents. On any
// error the store is left empty and usable and the error is returned for logging.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = make(map[string][]models.Record)

	data, err := s.backend.Read()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	for id, records := range data {
		if len(records) == 0 {
			continue
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Time.Before(records[j].Time)
		})
		s.history[id] = records
	}
	return nil
}

// Save persists the full history.
func (s *Storage) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.backend.Write(s.history); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Storage) Close() error {
	return s.backend.Close()
}

// History returns a copy of the unit's records, oldest first.
func (s *Storage) History(unitID string) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.history[unitID]
	out := make([]models.Record, len(records))
	copy(out, records)
	return out
}

// Units returns the ids that have history, sorted.
func (s *Storage) Units() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.history))
	for id := range s.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of the whole history.
func (s *Storage) Snapshot() map[string][]models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.Record, len(s.history))
	for id, records := range s.history {
		cp := make([]models.Record, len(records))
		copy(cp, records)
		out[id] = cp
	}
	return out
}

// Append adds a record to the end of the unit's history. Records must not be
// older than the current newest record.
func (s *Storage) Append(unitID string, r models.Record) error {
	if unitID == "" {
		return errors.New("unit id must not be empty")
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[unitID]
	if n := len(records); n > 0 && r.Time.Before(records[n-1].Time) {
		return fmt.Errorf("record at %s is older than newest record at %s",
			r.Time.Format(time.RFC3339), records[n-1].Time.Format(time.RFC3339))
	}
	s.history[unitID] = append(records, r)
	return nil
}

// Trim drops the unit's records with a timestamp at or before cutoff and
// returns how many were removed.
func (s *Storage) Trim(unitID string, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[unitID]
	start := sort.Search(len(records), func(i int) bool {
		return records[i].Time.After(cutoff)
	})
	if start == 0 {
		return 0
	}
	s.history[unitID] = append([]models.Record(nil), records[start:]...)
	return start
}

// Cap keeps only the unit's newest limit records and returns how many were removed.
func (s *Storage) Cap(unitID string, limit int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[unitID]
	if limit < 0 || len(records) <= limit {
		return 0
	}
	removed := len(records) - limit
	s.history[unitID] = append([]models.Record(nil), records[removed:]...)
	return removed
}

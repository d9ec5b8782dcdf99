package memory

import (
	"context"
	"sync"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// Ensure HotspotStore implements the interface.
var _ driven.HotspotStore = (*HotspotStore)(nil)

// HotspotStore is an in-memory implementation of driven.HotspotStore,
// backing dry runs and tests. Duplicate record IDs are rejected rather
// than overwritten, mirroring the production loader's conflict handling.
type HotspotStore struct {
	mu      sync.RWMutex
	records map[string]domain.Hotspot
}

// NewHotspotStore creates a new in-memory hotspot store.
func NewHotspotStore() *HotspotStore {
	return &HotspotStore{records: make(map[string]domain.Hotspot)}
}

// Load inserts records, counting duplicates as rejected.
func (s *HotspotStore) Load(_ context.Context, records []domain.Hotspot) (domain.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.LoadResult
	for _, record := range records {
		if _, exists := s.records[record.ID]; exists {
			result.Rejected++
			continue
		}
		s.records[record.ID] = record
		result.Inserted++
	}
	return result, nil
}

// Count returns the number of stored records.
func (s *HotspotStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns a copy of the stored records.
func (s *HotspotStore) All() []domain.Hotspot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Hotspot, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	return out
}

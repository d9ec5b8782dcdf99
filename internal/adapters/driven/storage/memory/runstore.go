package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore, used by
// tests and dry runs. Run history for a window is kept so replays produce
// additional records rather than overwrites.
type RunStore struct {
	mu   sync.RWMutex
	runs []*domain.PipelineRun
	seq  map[string]int // run ID -> index in runs
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{seq: make(map[string]int)}
}

// Save stores or updates a run by ID.
func (s *RunStore) Save(_ context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.seq[run.ID]; ok {
		s.runs[i] = run.Clone()
		return nil
	}
	s.seq[run.ID] = len(s.runs)
	s.runs = append(s.runs, run.Clone())
	return nil
}

// Get returns the most recently created run for a source and window start.
func (s *RunStore) Get(_ context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		run := s.runs[i]
		if run.SourceName == sourceName && run.Window.Start.Equal(windowStart) {
			return run.Clone(), nil
		}
	}
	return nil, domain.ErrRunNotFound
}

// List returns runs most recent first, optionally filtered.
func (s *RunStore) List(_ context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PipelineRun
	for _, run := range s.runs {
		if sourceName != "" && run.SourceName != sourceName {
			continue
		}
		if status != "" && run.Status != status {
			continue
		}
		out = append(out, *run.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Window.Start.After(out[j].Window.Start)
	})
	return out, nil
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// --- Mock connector ---

// fetchResult scripts one Fetch outcome.
type fetchResult struct {
	payload *domain.RawPayload
	err     error
}

// mockConnector implements driven.SourceConnector with scripted outcomes.
type mockConnector struct {
	mu sync.Mutex

	connectErrs  []error       // popped per Connect call; empty means success
	fetchResults []fetchResult // popped per Fetch call; last one repeats
	validateOK   bool

	connectCalls int
	fetchCalls   int
	closeCalls   int
}

var _ driven.SourceConnector = (*mockConnector)(nil)

func newMockConnector(results ...fetchResult) *mockConnector {
	return &mockConnector{fetchResults: results, validateOK: true}
}

func (m *mockConnector) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if len(m.connectErrs) == 0 {
		return nil
	}
	err := m.connectErrs[0]
	m.connectErrs = m.connectErrs[1:]
	return err
}

func (m *mockConnector) Fetch(_ context.Context, _ domain.Window) (*domain.RawPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if len(m.fetchResults) == 0 {
		return nil, domain.ErrUnreachable
	}
	r := m.fetchResults[0]
	if len(m.fetchResults) > 1 {
		m.fetchResults = m.fetchResults[1:]
	}
	return r.payload, r.err
}

func (m *mockConnector) Validate(_ *domain.RawPayload) bool {
	return m.validateOK
}

func (m *mockConnector) Describe() domain.SourceDescriptor {
	return domain.SourceDescriptor{Name: "mock", SpatialCoverage: "global", TemporalResolution: "daily"}
}

func (m *mockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

// --- Mock run store ---

type mockRunStore struct {
	mu    sync.Mutex
	runs  map[string][]*domain.PipelineRun // keyed by source|windowStart, newest last
	saves int
	err   error
}

var _ driven.RunStore = (*mockRunStore)(nil)

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[string][]*domain.PipelineRun)}
}

func runKey(sourceName string, windowStart time.Time) string {
	return sourceName + "|" + windowStart.UTC().Format(time.RFC3339)
}

func (m *mockRunStore) Save(_ context.Context, run *domain.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	key := runKey(run.SourceName, run.Window.Start)
	for i, existing := range m.runs[key] {
		if existing.ID == run.ID {
			m.runs[key][i] = run.Clone()
			return nil
		}
	}
	m.runs[key] = append(m.runs[key], run.Clone())
	return nil
}

func (m *mockRunStore) Get(_ context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.runs[runKey(sourceName, windowStart)]
	if len(versions) == 0 {
		return nil, domain.ErrRunNotFound
	}
	return versions[len(versions)-1].Clone(), nil
}

func (m *mockRunStore) List(_ context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PipelineRun
	for _, versions := range m.runs {
		for _, run := range versions {
			if sourceName != "" && run.SourceName != sourceName {
				continue
			}
			if status != "" && run.Status != status {
				continue
			}
			out = append(out, *run.Clone())
		}
	}
	return out, nil
}

// --- Mock hotspot store ---

type mockHotspotStore struct {
	mu        sync.Mutex
	loadCalls int
	loaded    [][]domain.Hotspot
	errs      []error // popped per Load call
}

var _ driven.HotspotStore = (*mockHotspotStore)(nil)

func (m *mockHotspotStore) Load(_ context.Context, records []domain.Hotspot) (domain.LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return domain.LoadResult{}, err
		}
	}
	m.loaded = append(m.loaded, append([]domain.Hotspot(nil), records...))
	return domain.LoadResult{Inserted: len(records)}, nil
}

// --- Payload builders ---

var testWindow = domain.Window{
	Start: time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC),
}

func testConfig() domain.SourceConfig {
	return domain.SourceConfig{
		Name:        "nasa-firms",
		Format:      domain.FormatCSV,
		Region:      domain.AmazonLegalBBox,
		BackoffBase: time.Millisecond,
	}.WithDefaults()
}

func csvPayload(content string) *domain.RawPayload {
	return &domain.RawPayload{
		SourceName: "nasa-firms",
		Format:     domain.FormatCSV,
		Content:    []byte(content),
		FetchedAt:  time.Date(2025, 5, 16, 1, 0, 0, 0, time.UTC),
	}
}

func jsonPayload(content string) *domain.RawPayload {
	return &domain.RawPayload{
		SourceName: "nasa-firms",
		Format:     domain.FormatJSON,
		Content:    []byte(content),
		FetchedAt:  time.Date(2025, 5, 16, 1, 0, 0, 0, time.UTC),
	}
}

const goodCSV = `latitude,longitude,bright_ti4,acq_date,acq_time,confidence,frp
-9.4567,-56.7890,325.7,2025-05-15,1430,85,45.2
-10.1234,-55.4321,330.1,2025-05-15,1431,n,12.8
-8.9999,-57.0001,318.4,2025-05-15,1432,72,30.0
`

const threeFeatureJSON = `{
  "features": [
    {"geometry": {"coordinates": [-56.7890, -9.4567]},
     "properties": {"acq_date": "2025-05-15", "acq_time": "1430", "confidence": 85, "bright_ti4": 325.7, "frp": 45.2}},
    {"geometry": {"coordinates": [-55.4321, -10.1234]},
     "properties": {"acq_date": "2025-05-15", "acq_time": "1431", "confidence": "n", "frp": 12.8}},
    {"geometry": {"coordinates": [-57.0001, -8.9999]},
     "properties": {"acq_date": "2025-05-15", "acq_time": "1432", "confidence": 72}}
  ]
}`

// tenRowCSV has 10 rows, 2 with non-numeric latitude.
const tenRowCSV = `latitude,longitude,acq_date,acq_time,confidence
-9.1,-56.1,2025-05-15,0100,80
-9.2,-56.2,2025-05-15,0101,80
not-a-number,-56.3,2025-05-15,0102,80
-9.4,-56.4,2025-05-15,0103,80
-9.5,-56.5,2025-05-15,0104,80
bogus,-56.6,2025-05-15,0105,80
-9.7,-56.7,2025-05-15,0106,80
-9.8,-56.8,2025-05-15,0107,80
-9.9,-56.9,2025-05-15,0108,80
-9.0,-56.0,2025-05-15,0109,80
`

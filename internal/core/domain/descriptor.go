package domain

import "time"

// SourceDescriptor is immutable metadata about a data source. It is provided
// by a connector at construction time and read by the registry and the
// orchestrator for logging and routing; it is never mutated afterwards.
type SourceDescriptor struct {
	// Name is the source identifier (e.g., "nasa-firms").
	Name string

	// Description is a human-readable summary of the source.
	Description string

	// Formats lists the wire formats the source can deliver.
	Formats []Format

	// SpatialCoverage describes the geographic extent (e.g., "global").
	SpatialCoverage string

	// TemporalResolution describes how often new observations land
	// (e.g., "daily").
	TemporalResolution string

	// DocumentationURL points at the upstream API documentation.
	DocumentationURL string
}

// BoundingBox is a geographic region in decimal degrees.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether the coordinate falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// IsZero reports whether the box is unset.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// AmazonLegalBBox is the approximate bounding box of the Amazônia Legal,
// the default region for hotspot sanity checks.
var AmazonLegalBBox = BoundingBox{
	MinLat: -18.0414,
	MinLon: -73.9904,
	MaxLat: 5.2672,
	MaxLon: -44.0005,
}

// SourceConfig holds the per-source settings supplied at connector
// construction time. There is no global mutable configuration state; each
// connector instance receives its own copy.
type SourceConfig struct {
	// Name is the registered source name this configuration belongs to.
	Name string

	// APIKey authenticates requests against the upstream source.
	APIKey string

	// BaseURL is the root endpoint of the upstream API.
	BaseURL string

	// Area is a named region or "minLat,minLon,maxLat,maxLon" bounding box
	// passed through to the source as a query filter.
	Area string

	// Satellite selects a sensor where the source supports several
	// (e.g., "VIIRS", "MODIS").
	Satellite string

	// Format is the output format requested from the source.
	Format Format

	// Interval is the width of one scheduling window.
	Interval time.Duration

	// FetchTimeout bounds a single fetch call. A timeout is treated as a
	// retryable unreachable failure.
	FetchTimeout time.Duration

	// RetryBudget is the maximum number of attempts per stage.
	RetryBudget int

	// BackoffBase is the initial retry delay; doubled per attempt.
	BackoffBase time.Duration

	// BackoffCap bounds the exponential backoff delay.
	BackoffCap time.Duration

	// MinRecords is the validation lower bound on parseable records.
	MinRecords int

	// MaxDropRate is the transform failure threshold (fraction of rows
	// dropped, 0..1).
	MaxDropRate float64

	// Region is the bounding box used for geographic sanity checks.
	Region BoundingBox

	// Biome is an optional enrichment label stamped on records.
	Biome string

	// Options carries connector-specific extras not modelled above.
	Options map[string]string
}

// Default pipeline settings, applied by WithDefaults.
const (
	DefaultRetryBudget  = 3
	DefaultMinRecords   = 1
	DefaultMaxDropRate  = 0.10
	DefaultFetchTimeout = 30 * time.Second
	DefaultBackoffBase  = time.Second
	DefaultBackoffCap   = 5 * time.Minute
	DefaultInterval     = 24 * time.Hour
)

// WithDefaults returns a copy of the config with unset fields replaced by
// pipeline defaults.
func (c SourceConfig) WithDefaults() SourceConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.MinRecords <= 0 {
		c.MinRecords = DefaultMinRecords
	}
	if c.MaxDropRate <= 0 {
		c.MaxDropRate = DefaultMaxDropRate
	}
	if c.Format == "" {
		c.Format = FormatCSV
	}
	return c
}

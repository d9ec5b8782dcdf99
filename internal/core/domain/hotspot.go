package domain

import (
	"fmt"
	"time"
)

// Hotspot is the canonical record emitted by the transform stage: one
// satellite fire detection, normalised and independent of the source format.
// The pipeline owns a record until the load stage hands it to storage.
type Hotspot struct {
	// ID is the unique identifier (e.g., "FIRMS_1a2b3c4d").
	ID string

	// Latitude of the detection, in [-90, 90].
	Latitude float64

	// Longitude of the detection, in [-180, 180].
	Longitude float64

	// ObservedAt is the satellite acquisition time.
	ObservedAt time.Time

	// ConfidenceScore is the detection confidence in [0, 100].
	ConfidenceScore int

	// SourceName identifies which source produced the record.
	SourceName string

	// Brightness is the brightness temperature in Kelvin, if reported.
	Brightness *float64

	// FRP is the fire radiative power in MW, if reported.
	FRP *float64

	// Biome is an optional biome label (e.g., "Amazon Rainforest").
	Biome string

	// LandUse is an optional land-use classification.
	LandUse string

	// IngestedAt is when the pipeline produced this record.
	IngestedAt time.Time
}

// Validate checks the record invariants. Records failing validation are
// dropped and counted by the transform stage, never coerced into range.
func (h *Hotspot) Validate() error {
	if h.Latitude < -90 || h.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", h.Latitude)
	}
	if h.Longitude < -180 || h.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", h.Longitude)
	}
	if h.ConfidenceScore < 0 || h.ConfidenceScore > 100 {
		return fmt.Errorf("confidence %d out of range [0, 100]", h.ConfidenceScore)
	}
	if h.ObservedAt.IsZero() {
		return fmt.Errorf("missing observation time")
	}
	if !h.IngestedAt.IsZero() && h.ObservedAt.After(h.IngestedAt) {
		return fmt.Errorf("observed at %s is after ingestion at %s",
			h.ObservedAt.Format(time.RFC3339), h.IngestedAt.Format(time.RFC3339))
	}
	return nil
}

// LoadResult reports the outcome of handing records to storage.
type LoadResult struct {
	// Inserted is the number of records accepted by storage.
	Inserted int

	// Rejected is the number of records storage refused (e.g., duplicates).
	Rejected int
}

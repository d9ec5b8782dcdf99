package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// Ensure Validator implements the port.
var _ driven.PayloadValidator = (*Validator)(nil)

// Validator gates payloads between fetch and transform. It layers the
// pipeline-level invariant checks on top of the connector's own structural
// check: record-count lower bound and geographic sanity against the
// configured region.
//
// A payload with zero parseable records is a validation failure, not a
// silent empty success; an upstream outage must not masquerade as "no
// events today".
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs all checks and collects every failure reason rather than
// stopping at the first, so the run record carries the full picture.
func (v *Validator) Validate(connector driven.SourceConnector, payload *domain.RawPayload, cfg domain.SourceConfig) driven.ValidationResult {
	var reasons []string

	if payload == nil || payload.Empty() {
		return driven.ValidationResult{Reasons: []string{"empty payload"}}
	}

	if connector != nil && !connector.Validate(payload) {
		reasons = append(reasons, "source structural check failed")
	}

	count := countRecords(payload)
	if count == 0 {
		reasons = append(reasons, "payload contains no records")
	} else if count < cfg.MinRecords {
		reasons = append(reasons, fmt.Sprintf("record count %d below minimum %d", count, cfg.MinRecords))
	}

	if !cfg.Region.IsZero() && count > 0 {
		if coords := sampleCoordinates(payload, 100); len(coords) > 0 {
			inside := 0
			for _, c := range coords {
				if cfg.Region.Contains(c[0], c[1]) {
					inside++
				}
			}
			if inside == 0 {
				reasons = append(reasons, "no records within configured region")
			}
		}
	}

	return driven.ValidationResult{OK: len(reasons) == 0, Reasons: reasons}
}

// countRecords counts the raw records in a payload without fully parsing
// it: data lines for delimited text, features for structured JSON. Binary
// payloads count as one opaque record when non-empty.
func countRecords(payload *domain.RawPayload) int {
	switch payload.Format {
	case domain.FormatCSV:
		lines := strings.Split(strings.TrimSpace(string(payload.Content)), "\n")
		if len(lines) < 2 {
			return 0
		}
		count := 0
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				count++
			}
		}
		return count
	case domain.FormatJSON:
		var fc featureCollection
		if err := json.Unmarshal(payload.Content, &fc); err != nil {
			return 0
		}
		return len(fc.Features)
	case domain.FormatBinary:
		if payload.Empty() {
			return 0
		}
		return 1
	default:
		return 0
	}
}

// sampleCoordinates leniently extracts up to limit (lat, lon) pairs for the
// bounding-box sanity check. Rows that fail to parse are skipped here; the
// transform stage does the strict accounting.
func sampleCoordinates(payload *domain.RawPayload, limit int) [][2]float64 {
	var coords [][2]float64

	switch payload.Format {
	case domain.FormatCSV:
		reader := csv.NewReader(bytes.NewReader(payload.Content))
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil || len(rows) < 2 {
			return nil
		}
		latIdx, lonIdx := -1, -1
		for i, col := range rows[0] {
			switch strings.ToLower(strings.TrimSpace(col)) {
			case "latitude":
				latIdx = i
			case "longitude":
				lonIdx = i
			}
		}
		if latIdx < 0 || lonIdx < 0 {
			return nil
		}
		for _, row := range rows[1:] {
			if len(coords) >= limit {
				break
			}
			if latIdx >= len(row) || lonIdx >= len(row) {
				continue
			}
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
			lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
			if errLat != nil || errLon != nil {
				continue
			}
			coords = append(coords, [2]float64{lat, lon})
		}
	case domain.FormatJSON:
		var fc featureCollection
		if err := json.Unmarshal(payload.Content, &fc); err != nil {
			return nil
		}
		for _, f := range fc.Features {
			if len(coords) >= limit {
				break
			}
			if len(f.Geometry.Coordinates) < 2 {
				continue
			}
			coords = append(coords, [2]float64{f.Geometry.Coordinates[1], f.Geometry.Coordinates[0]})
		}
	}
	return coords
}

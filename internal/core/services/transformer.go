package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// Ensure Transformer implements the port.
var _ driven.PayloadTransformer = (*Transformer)(nil)

// Transformer parses raw payloads into canonical hotspot records. It is
// stateless: the output is a pure function of the payload and the source
// configuration, so re-running a window against a stable upstream yields an
// equivalent record set.
type Transformer struct{}

// NewTransformer creates a transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform parses the payload according to its declared format. Malformed
// rows are dropped and counted. The transform fails with
// *domain.TransformError when no record can be produced or when the drop
// rate exceeds the configured threshold; a bad partial load is never
// preferable to operator attention.
func (t *Transformer) Transform(payload *domain.RawPayload, cfg domain.SourceConfig) (driven.TransformResult, error) {
	var (
		result driven.TransformResult
		err    error
	)

	switch payload.Format {
	case domain.FormatCSV:
		result, err = t.transformCSV(payload, cfg)
	case domain.FormatJSON:
		result, err = t.transformJSON(payload, cfg)
	case domain.FormatBinary:
		return driven.TransformResult{}, &domain.TransformError{Reason: "no parser for binary payloads"}
	default:
		return driven.TransformResult{}, &domain.TransformError{Reason: fmt.Sprintf("unknown format %q", payload.Format)}
	}
	if err != nil {
		return driven.TransformResult{}, err
	}

	if len(result.Records) == 0 {
		return driven.TransformResult{}, &domain.TransformError{
			Reason:   "no records produced",
			DropRate: result.DropRate(),
			Dropped:  result.Dropped,
			Total:    result.Total,
		}
	}
	if rate := result.DropRate(); rate > cfg.MaxDropRate {
		return driven.TransformResult{}, &domain.TransformError{
			DropRate: rate,
			Dropped:  result.Dropped,
			Total:    result.Total,
		}
	}
	return result, nil
}

func (t *Transformer) transformCSV(payload *domain.RawPayload, cfg domain.SourceConfig) (driven.TransformResult, error) {
	reader := csv.NewReader(bytes.NewReader(payload.Content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return driven.TransformResult{}, fmt.Errorf("parse delimited payload: %w", domain.ErrMalformedResponse)
	}
	if len(rows) < 2 {
		return driven.TransformResult{}, nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := header["latitude"]; !ok {
		return driven.TransformResult{}, fmt.Errorf("header has no latitude column: %w", domain.ErrMalformedResponse)
	}

	var result driven.TransformResult
	for _, row := range rows[1:] {
		result.Total++
		record, rowErr := t.csvRow(row, header, payload, cfg)
		if rowErr != nil {
			result.Dropped++
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func (t *Transformer) csvRow(row []string, header map[string]int, payload *domain.RawPayload, cfg domain.SourceConfig) (domain.Hotspot, error) {
	field := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	lat, err := strconv.ParseFloat(field("latitude"), 64)
	if err != nil {
		return domain.Hotspot{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(field("longitude"), 64)
	if err != nil {
		return domain.Hotspot{}, fmt.Errorf("longitude: %w", err)
	}

	observedAt, err := parseAcquisition(field("acq_date"), field("acq_time"))
	if err != nil {
		return domain.Hotspot{}, err
	}

	confidence, err := parseConfidence(field("confidence"))
	if err != nil {
		return domain.Hotspot{}, err
	}

	record := domain.Hotspot{
		ID:              recordID(cfg.Name, lat, lon, observedAt),
		Latitude:        lat,
		Longitude:       lon,
		ObservedAt:      observedAt,
		ConfidenceScore: confidence,
		SourceName:      payload.SourceName,
		Biome:           cfg.Biome,
		IngestedAt:      payload.FetchedAt,
	}

	// VIIRS reports brightness as bright_ti4; MODIS as brightness.
	if b, err := strconv.ParseFloat(field("bright_ti4"), 64); err == nil {
		record.Brightness = &b
	} else if b, err := strconv.ParseFloat(field("brightness"), 64); err == nil {
		record.Brightness = &b
	}
	if f, err := strconv.ParseFloat(field("frp"), 64); err == nil {
		record.FRP = &f
	}

	if err := record.Validate(); err != nil {
		return domain.Hotspot{}, err
	}
	return record, nil
}

// featureCollection is the subset of the GeoJSON answer the pipeline reads.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func (t *Transformer) transformJSON(payload *domain.RawPayload, cfg domain.SourceConfig) (driven.TransformResult, error) {
	var fc featureCollection
	if err := json.Unmarshal(payload.Content, &fc); err != nil {
		return driven.TransformResult{}, fmt.Errorf("parse structured payload: %w", domain.ErrMalformedResponse)
	}

	var result driven.TransformResult
	for _, f := range fc.Features {
		result.Total++
		record, err := t.jsonFeature(f, payload, cfg)
		if err != nil {
			result.Dropped++
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func (t *Transformer) jsonFeature(f feature, payload *domain.RawPayload, cfg domain.SourceConfig) (domain.Hotspot, error) {
	// GeoJSON coordinate order is [longitude, latitude].
	if len(f.Geometry.Coordinates) < 2 {
		return domain.Hotspot{}, fmt.Errorf("feature has no coordinates")
	}
	lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]

	observedAt, err := parseAcquisition(propString(f.Properties, "acq_date"), propString(f.Properties, "acq_time"))
	if err != nil {
		return domain.Hotspot{}, err
	}

	confidence, err := parseConfidence(propString(f.Properties, "confidence"))
	if err != nil {
		return domain.Hotspot{}, err
	}

	record := domain.Hotspot{
		ID:              recordID(cfg.Name, lat, lon, observedAt),
		Latitude:        lat,
		Longitude:       lon,
		ObservedAt:      observedAt,
		ConfidenceScore: confidence,
		SourceName:      payload.SourceName,
		Biome:           cfg.Biome,
		IngestedAt:      payload.FetchedAt,
	}

	if b, ok := propFloat(f.Properties, "brightness"); ok {
		record.Brightness = &b
	} else if b, ok := propFloat(f.Properties, "bright_ti4"); ok {
		record.Brightness = &b
	}
	if v, ok := propFloat(f.Properties, "frp"); ok {
		record.FRP = &v
	}
	if lu := propString(f.Properties, "land_use"); lu != "" {
		record.LandUse = lu
	}

	if err := record.Validate(); err != nil {
		return domain.Hotspot{}, err
	}
	return record, nil
}

// parseAcquisition combines the FIRMS acq_date (YYYY-MM-DD) and acq_time
// (HMM or HHMM) columns into an observation timestamp.
func parseAcquisition(date, clock string) (time.Time, error) {
	if date == "" {
		return time.Time{}, fmt.Errorf("missing acq_date")
	}
	if clock == "" {
		clock = "0000"
	}
	for len(clock) < 4 {
		clock = "0" + clock
	}
	return time.Parse("2006-01-02 1504", date+" "+clock)
}

// parseConfidence accepts numeric confidence values and the VIIRS class
// labels (low/nominal/high).
func parseConfidence(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return 25, nil
	case "n", "nominal":
		return 50, nil
	case "h", "high":
		return 90, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("confidence: %w", err)
	}
	return int(f), nil
}

// recordID derives a stable identifier from the detection itself, so
// re-processing a window produces the same IDs and loads stay idempotent.
func recordID(sourceName string, lat, lon float64, observedAt time.Time) string {
	seed := fmt.Sprintf("%s|%.5f|%.5f|%d", sourceName, lat, lon, observedAt.Unix())
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	return fmt.Sprintf("FIRMS_%s", strings.ReplaceAll(id.String(), "-", "")[:8])
}

func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func propFloat(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package domain

import "time"

// Format identifies the wire format of a fetched payload.
type Format string

const (
	// FormatJSON is a structured JSON payload (GeoJSON-style feature collection).
	FormatJSON Format = "structured-json"

	// FormatCSV is a delimited-text payload with a header row.
	FormatCSV Format = "delimited-text"

	// FormatBinary is an opaque binary payload (e.g., shapefile archive).
	FormatBinary Format = "binary"
)

// RawPayload is the output of a fetch stage before validation and transform.
// It is owned by the run that produced it and is not persisted; the transform
// stage consumes it and it is discarded.
type RawPayload struct {
	// SourceName links to the source that produced this payload.
	SourceName string

	// Format is the declared wire format of Content.
	Format Format

	// Content is the raw bytes as returned by the source.
	Content []byte

	// FetchedAt is when the payload was retrieved.
	FetchedAt time.Time
}

// Empty reports whether the payload carries no content.
func (p *RawPayload) Empty() bool {
	return len(p.Content) == 0
}

// Package postgres loads canonical hotspot records into a PostgreSQL
// warehouse. Loads run inside a single transaction so a run either lands
// completely or not at all.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS hotspots (
	id               TEXT PRIMARY KEY,
	latitude         DOUBLE PRECISION NOT NULL,
	longitude        DOUBLE PRECISION NOT NULL,
	observed_at      TIMESTAMPTZ NOT NULL,
	confidence_score SMALLINT NOT NULL,
	source_name      TEXT NOT NULL,
	brightness       DOUBLE PRECISION,
	frp              DOUBLE PRECISION,
	biome            TEXT,
	land_use         TEXT,
	ingested_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hotspots_source_observed
	ON hotspots(source_name, observed_at);
`

const insertQuery = `
INSERT INTO hotspots
	(id, latitude, longitude, observed_at, confidence_score, source_name,
	 brightness, frp, biome, land_use, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING`

var _ driven.HotspotStore = (*HotspotStore)(nil)

// HotspotStore is a pgx-backed implementation of driven.HotspotStore.
type HotspotStore struct {
	pool *pgxpool.Pool
}

// NewHotspotStore connects to the database and ensures the hotspots
// table exists.
func NewHotspotStore(ctx context.Context, databaseURL string) (*HotspotStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to database: %v", domain.ErrLoadFailure, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", domain.ErrLoadFailure, err)
	}

	return &HotspotStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *HotspotStore) Close() {
	s.pool.Close()
}

// Load writes records inside a single transaction. Duplicate IDs are
// counted as rejected rather than failing the batch. Any transport or
// constraint error rolls the whole batch back and wraps
// domain.ErrLoadFailure so the caller retries.
func (s *HotspotStore) Load(ctx context.Context, records []domain.Hotspot) (domain.LoadResult, error) {
	if len(records) == 0 {
		return domain.LoadResult{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.LoadResult{}, fmt.Errorf("%w: beginning transaction: %v", domain.ErrLoadFailure, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, h := range records {
		batch.Queue(insertQuery, h.ID, h.Latitude, h.Longitude, h.ObservedAt,
			h.ConfidenceScore, h.SourceName, h.Brightness, h.FRP,
			nullIfEmpty(h.Biome), nullIfEmpty(h.LandUse), h.IngestedAt)
	}

	res := tx.SendBatch(ctx, batch)

	var result domain.LoadResult
	for range records {
		tag, err := res.Exec()
		if err != nil {
			res.Close()
			return domain.LoadResult{}, fmt.Errorf("%w: inserting hotspot: %v", domain.ErrLoadFailure, err)
		}
		if tag.RowsAffected() == 0 {
			result.Rejected++
		} else {
			result.Inserted++
		}
	}
	if err := res.Close(); err != nil {
		return domain.LoadResult{}, fmt.Errorf("%w: closing batch: %v", domain.ErrLoadFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.LoadResult{}, fmt.Errorf("%w: committing transaction: %v", domain.ErrLoadFailure, err)
	}

	return result, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

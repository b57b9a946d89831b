package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andresmejia3/stitcher/internal/types"
)

// Batch kinds.
const (
	KindSlice       = "slice"
	KindReconstruct = "reconstruct"
)

// Store manages the PostgreSQL connection pool that records batch history.
// It is safe for use by concurrent workers.
type Store struct {
	pool *pgxpool.Pool
}

// Reconstruction is one row of the reconstruction history.
type Reconstruction struct {
	types.ReconstructionRecord
	CreatedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			source_dir TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS source_images (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			stem TEXT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			tile_count INT NOT NULL,
			sliced_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS reconstructions (
			id BIGSERIAL PRIMARY KEY,
			batch_id UUID REFERENCES batches(id) ON DELETE CASCADE,
			stem TEXT NOT NULL,
			run_dir TEXT NOT NULL,
			output_path TEXT NOT NULL,
			tiles_pasted INT NOT NULL,
			tiles_missing INT NOT NULL,
			boxes_drawn INT NOT NULL,
			boxes_rejected INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS reconstructions_created_at_idx ON reconstructions (created_at DESC);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close terminates the database connections.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureBatch registers a batch. Registering the same id twice is a no-op.
func (s *Store) EnsureBatch(ctx context.Context, id, kind, sourceDir string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (id, kind, source_dir, started_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING
	`, id, kind, sourceDir)
	return err
}

// RecordSlice saves a sliced source image. Re-slicing an image that kept its
// id refreshes the row.
func (s *Store) RecordSlice(ctx context.Context, rec types.SliceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_images (id, path, stem, width, height, tile_count, sliced_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			tile_count = EXCLUDED.tile_count,
			sliced_at = NOW()
	`, rec.ImageID, rec.Path, rec.Stem, rec.Width, rec.Height, rec.TileCount)
	return err
}

// RecordReconstruction saves the outcome of one reconstructed image.
func (s *Store) RecordReconstruction(ctx context.Context, rec types.ReconstructionRecord) error {
	var batchID *string
	if rec.BatchID != "" {
		batchID = &rec.BatchID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconstructions
			(batch_id, stem, run_dir, output_path, tiles_pasted, tiles_missing, boxes_drawn, boxes_rejected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batchID, rec.Stem, rec.RunDir, rec.OutputPath, rec.TilesPasted, rec.TilesMissing, rec.BoxesDrawn, rec.BoxesRejected)
	return err
}

// ListReconstructions returns the most recent reconstructions, newest first.
// A limit of zero or less returns all of them.
func (s *Store) ListReconstructions(ctx context.Context, limit int) ([]Reconstruction, error) {
	query := `
		SELECT COALESCE(batch_id::text, ''), stem, run_dir, output_path,
			tiles_pasted, tiles_missing, boxes_drawn, boxes_rejected, created_at
		FROM reconstructions
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reconstruction
	for rows.Next() {
		var r Reconstruction
		if err := rows.Scan(&r.BatchID, &r.Stem, &r.RunDir, &r.OutputPath,
			&r.TilesPasted, &r.TilesMissing, &r.BoxesDrawn, &r.BoxesRejected, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset drops all application tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS reconstructions CASCADE;
		DROP TABLE IF EXISTS source_images CASCADE;
		DROP TABLE IF EXISTS batches CASCADE;
	`)
	return err
}

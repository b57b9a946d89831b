package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresmejia3/stitcher/internal/types"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers panics when the docker socket is missing
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("stitcher_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close()

	// --- Slicing history ---

	rec := types.SliceRecord{ImageID: "img_123", Path: "/data/a.jpg", Stem: "a", Width: 1456, Height: 1088, TileCount: 42}
	if err := s.RecordSlice(ctx, rec); err != nil {
		t.Fatalf("RecordSlice failed: %v", err)
	}
	rec.TileCount = 40
	if err := s.RecordSlice(ctx, rec); err != nil {
		t.Fatalf("RecordSlice upsert failed: %v", err)
	}
	var tiles int
	if err := s.pool.QueryRow(ctx, "SELECT tile_count FROM source_images WHERE id = $1", "img_123").Scan(&tiles); err != nil || tiles != 40 {
		t.Errorf("tile_count = %d, %v; want 40 after upsert", tiles, err)
	}

	// --- Reconstruction history ---

	batch := uuid.NewString()
	if err := s.EnsureBatch(ctx, batch, KindReconstruct, "runs/detect/exp3"); err != nil {
		t.Fatalf("EnsureBatch failed: %v", err)
	}
	if err := s.EnsureBatch(ctx, batch, KindReconstruct, "runs/detect/exp3"); err != nil {
		t.Fatalf("EnsureBatch is not idempotent: %v", err)
	}

	for i, stem := range []string{"a", "b", "c"} {
		err := s.RecordReconstruction(ctx, types.ReconstructionRecord{
			BatchID:     batch,
			Stem:        stem,
			RunDir:      "runs/detect/exp3",
			OutputPath:  "runs/restored/" + stem + "_reconstructed.jpg",
			TilesPasted: 42 - i,
			BoxesDrawn:  i,
		})
		if err != nil {
			t.Fatalf("RecordReconstruction failed: %v", err)
		}
	}
	if err := s.RecordReconstruction(ctx, types.ReconstructionRecord{Stem: "loose", RunDir: "r", OutputPath: "o"}); err != nil {
		t.Fatalf("RecordReconstruction without batch failed: %v", err)
	}

	recent, err := s.ListReconstructions(ctx, 2)
	if err != nil {
		t.Fatalf("ListReconstructions failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 reconstructions, got %d", len(recent))
	}
	if recent[0].Stem != "loose" || recent[0].BatchID != "" {
		t.Errorf("Expected newest row first, got %+v", recent[0])
	}
	if recent[1].Stem != "c" || recent[1].TilesPasted != 40 || recent[1].BatchID != batch {
		t.Errorf("Unexpected second row: %+v", recent[1])
	}

	all, err := s.ListReconstructions(ctx, 0)
	if err != nil || len(all) != 4 {
		t.Errorf("ListReconstructions(0) = %d rows, %v; want 4", len(all), err)
	}

	// --- Reset ---

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListReconstructions(ctx, 0); err == nil {
		t.Error("Expected an error listing a dropped table")
	}
}

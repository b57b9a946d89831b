package slicer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/stitcher/internal/grid"
	"github.com/andresmejia3/stitcher/internal/types"
	"github.com/andresmejia3/stitcher/internal/worker"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func pngOptions(tileDir string) Options {
	return Options{
		TileWidth:  8,
		TileHeight: 6,
		OverlapX:   0.25,
		OverlapY:   0.5,
		TileDir:    tileDir,
		TileExt:    "png",
		Workers:    2,
	}
}

func TestSlice(t *testing.T) {
	src := testImage(23, 17)
	g, err := grid.New(23, 17, 8, 6, 0.25, 0.5)
	require.NoError(t, err)

	tiles := Slice(src, g)
	require.Len(t, tiles, g.Len())

	for i, tile := range tiles {
		require.Equal(t, i, tile.Index)
		require.Equal(t, g.Rect(i), tile.Rect())
		size := tile.Size()
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				want := src.NRGBAAt(tile.Origin.X+x, tile.Origin.Y+y)
				got := color.NRGBAModel.Convert(tile.Image.At(tile.Image.Bounds().Min.X+x, tile.Image.Bounds().Min.Y+y))
				require.Equal(t, want, got, "tile %d pixel %d,%d", i, x, y)
			}
		}
	}

	// Right border tile is truncated to the image
	last := tiles[g.Cols-1]
	require.Equal(t, 23-last.Origin.X, last.Size().X)
}

func TestSliceSubImage(t *testing.T) {
	// Sources whose bounds do not start at 0,0 are cropped relative to their origin
	src := testImage(30, 30).SubImage(image.Rect(5, 5, 21, 17))
	g, err := grid.New(16, 12, 8, 6, 0, 0)
	require.NoError(t, err)

	tiles := Slice(src, g)
	require.Len(t, tiles, 4)
	require.Equal(t, src.At(13, 11), tiles[3].Image.At(0, 0))
}

func writeSource(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestRunIsIdempotent(t *testing.T) {
	srcDir, tileDir := t.TempDir(), filepath.Join(t.TempDir(), "tiles")
	writeSource(t, srcDir, "board_a.png", testImage(23, 17))
	writeSource(t, srcDir, "board_b.bmp", testImage(10, 10))

	s, err := New(pngOptions(tileDir), nil)
	require.NoError(t, err)

	g, _ := s.Grid(23, 17)
	small, _ := s.Grid(10, 10)
	first, err := s.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Equal(t, 2, first.Sliced)
	require.Equal(t, g.Len()+small.Len(), first.Tiles)
	n := countFiles(t, tileDir)
	require.Equal(t, first.Tiles, n)

	second, err := s.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Equal(t, Summary{Skipped: 2}, second)
	require.Equal(t, n, countFiles(t, tileDir))

	tiles, err := s.Tiles("board_a")
	require.NoError(t, err)
	require.Len(t, tiles, g.Len())
}

func TestRunSkipsCorruptImages(t *testing.T) {
	srcDir, tileDir := t.TempDir(), t.TempDir()
	writeSource(t, srcDir, "good.png", testImage(16, 12))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "bad.jpg"), []byte("not a jpeg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("ignored"), 0644))

	s, err := New(pngOptions(tileDir), nil)
	require.NoError(t, err)

	var failed []string
	s.OnDone = func(r worker.Result) {
		if r.Err != nil {
			failed = append(failed, r.Key)
			require.ErrorIs(t, r.Err, types.ErrCorruptArtifact)
		}
	}
	summary, err := s.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Sliced)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, []string{"bad.jpg"}, failed)
}

func TestRunMissingSourceDir(t *testing.T) {
	s, err := New(pngOptions(t.TempDir()), nil)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.Is(err, types.ErrMissingResource))
}

type fakeRecorder struct {
	records []types.SliceRecord
}

func (f *fakeRecorder) RecordSlice(ctx context.Context, rec types.SliceRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func TestSliceFileRecords(t *testing.T) {
	srcDir, tileDir := t.TempDir(), t.TempDir()
	path := writeSource(t, srcDir, "img.png", testImage(16, 12))

	rec := &fakeRecorder{}
	opts := pngOptions(tileDir)
	opts.OverlapX, opts.OverlapY = 0, 0
	s, err := New(opts, rec)
	require.NoError(t, err)

	outcome, n, err := s.SliceFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, Sliced, outcome)
	require.Equal(t, 4, n)
	require.Len(t, rec.records, 1)
	require.Equal(t, "img", rec.records[0].Stem)
	require.Equal(t, 16, rec.records[0].Width)
	require.Equal(t, 4, rec.records[0].TileCount)
	require.NotEmpty(t, rec.records[0].ImageID)
}

func TestNewRejectsBadTiling(t *testing.T) {
	opts := pngOptions(t.TempDir())
	opts.OverlapX = 1
	_, err := New(opts, nil)
	require.Error(t, err)
}

package slicer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/andresmejia3/stitcher/internal/grid"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/tilename"
	"github.com/andresmejia3/stitcher/internal/types"
	"github.com/andresmejia3/stitcher/internal/utils"
	"github.com/andresmejia3/stitcher/internal/worker"
)

// SourceExts are the source image formats picked up from the source directory.
var SourceExts = []string{"jpg", "jpeg", "tif", "tiff", "bmp", "png"}

// Options configures a slicing batch.
type Options struct {
	TileWidth   int
	TileHeight  int
	OverlapX    float64
	OverlapY    float64
	TileDir     string // Where tile artifacts are written
	TileExt     string // Extension of tile artifacts, e.g. "jpg"
	JPEGQuality int
	Workers     int
}

// Recorder persists slicing history. It may be nil.
type Recorder interface {
	RecordSlice(ctx context.Context, rec types.SliceRecord) error
}

// Outcome of slicing one source image.
type Outcome int

const (
	Sliced Outcome = iota
	Skipped
)

// Summary describes a whole batch.
type Summary struct {
	Sliced  int
	Skipped int
	Failed  int
	Tiles   int
}

// Slicer cuts source images into tile artifacts.
type Slicer struct {
	opts Options
	rec  Recorder

	// OnDone is called once per source image when it finishes, never concurrently.
	OnDone func(worker.Result)
}

// New returns a Slicer. rec may be nil.
func New(opts Options, rec Recorder) (*Slicer, error) {
	// Validate the geometry once, independent of any image size
	if _, err := grid.New(opts.TileWidth, opts.TileHeight, opts.TileWidth, opts.TileHeight, opts.OverlapX, opts.OverlapY); err != nil {
		return nil, fmt.Errorf("invalid tiling: %w", err)
	}
	if opts.TileExt == "" {
		opts.TileExt = "jpg"
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 95
	}
	return &Slicer{opts: opts, rec: rec}, nil
}

// Slice cuts img into the tiles of g, in index order. Every tile holds its
// own copy of the pixels.
func Slice(img image.Image, g grid.Grid) []types.Tile {
	b := img.Bounds()
	tiles := make([]types.Tile, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		r := g.Rect(i)
		tiles = append(tiles, types.Tile{
			Index:  i,
			Origin: r.Min,
			Image:  imaging.Crop(img, r.Add(b.Min)),
		})
	}
	return tiles
}

// Grid returns the tile grid for an image of the given size.
func (s *Slicer) Grid(width, height int) (grid.Grid, error) {
	return grid.New(width, height, s.opts.TileWidth, s.opts.TileHeight, s.opts.OverlapX, s.opts.OverlapY)
}

// Sources lists the source images of dir in name order.
func Sources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source directory %s", types.ErrMissingResource, dir)
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && tilename.HasExt(e.Name(), SourceExts) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SliceFile slices one source image into tile artifacts, unless tiles of
// this image already exist in the tile directory.
func (s *Slicer) SliceFile(ctx context.Context, path string) (Outcome, int, error) {
	stem := tilename.Stem(path)

	exists, err := tilename.HasTiles(s.opts.TileDir, stem)
	if err != nil {
		return Skipped, 0, err
	}
	if exists {
		log.Info(log.Fields{"image": filepath.Base(path)}, "Skipping image, tiles already exist")
		return Skipped, 0, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return Skipped, 0, fmt.Errorf("%w: %s: %v", types.ErrCorruptArtifact, path, err)
	}
	b := img.Bounds()
	g, err := s.Grid(b.Dx(), b.Dy())
	if err != nil {
		return Skipped, 0, err
	}

	tiles := Slice(img, g)
	for _, t := range tiles {
		if err := ctx.Err(); err != nil {
			return Skipped, 0, err
		}
		out := filepath.Join(s.opts.TileDir, tilename.Encode(stem, t.Index, s.opts.TileExt))
		if err := imaging.Save(t.Image, out, imaging.JPEGQuality(s.opts.JPEGQuality)); err != nil {
			return Skipped, 0, fmt.Errorf("saving tile %s: %w", out, err)
		}
		log.Debug(log.Fields{"tile": out}, "Saved image tile")
	}
	log.Info(log.Fields{"image": filepath.Base(path), "tiles": len(tiles), "grid": g.String()}, "Sliced image")

	if s.rec != nil {
		id, err := utils.GenerateImageID(path)
		if err == nil {
			err = s.rec.RecordSlice(ctx, types.SliceRecord{
				ImageID:   id,
				Path:      path,
				Stem:      stem,
				Width:     g.ImageWidth,
				Height:    g.ImageHeight,
				TileCount: len(tiles),
			})
		}
		if err != nil {
			log.Warn(log.Fields{"image": filepath.Base(path), "error": err.Error()}, "Failed to record slice")
		}
	}
	return Sliced, len(tiles), nil
}

// Run slices every source image in dir. A missing dir is fatal; a failure on
// a single image is logged and counted.
func (s *Slicer) Run(ctx context.Context, dir string) (Summary, error) {
	paths, err := Sources(dir)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(s.opts.TileDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("creating tile directory: %w", err)
	}

	type outcome struct {
		kind  Outcome
		tiles int
	}
	outcomes := make([]outcome, len(paths))
	tasks := make([]worker.Task, len(paths))
	for i, path := range paths {
		i, path := i, path
		tasks[i] = worker.Task{Key: filepath.Base(path), Run: func(ctx context.Context) error {
			kind, n, err := s.SliceFile(ctx, path)
			outcomes[i] = outcome{kind: kind, tiles: n}
			return err
		}}
	}

	pool := worker.New(s.opts.Workers)
	pool.OnDone = s.OnDone
	var summary Summary
	for i, res := range pool.Run(ctx, tasks) {
		switch {
		case res.Err != nil:
			summary.Failed++
			if !errors.Is(res.Err, context.Canceled) {
				log.Error(log.Fields{"image": res.Key, "error": res.Err.Error()}, "Error processing image")
			}
		case outcomes[i].kind == Skipped:
			summary.Skipped++
		default:
			summary.Sliced++
			summary.Tiles += outcomes[i].tiles
		}
	}
	return summary, ctx.Err()
}

// Tiles returns the tile artifacts belonging to one source image.
func (s *Slicer) Tiles(stem string) (map[int]string, error) {
	groups, err := tilename.Group(s.opts.TileDir, []string{s.opts.TileExt})
	if err != nil {
		return nil, err
	}
	return groups[stem], nil
}

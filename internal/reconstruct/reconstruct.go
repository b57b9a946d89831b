package reconstruct

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/stitcher/internal/annotate"
	"github.com/andresmejia3/stitcher/internal/grid"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/tilename"
	"github.com/andresmejia3/stitcher/internal/types"
	"github.com/andresmejia3/stitcher/internal/worker"
)

// OutputSuffix is appended to the parent stem of every reconstruction.
const OutputSuffix = "_reconstructed.jpg"

// Options configures a reconstruction batch.
type Options struct {
	Width       int // Original image width
	Height      int // Original image height
	TileWidth   int
	TileHeight  int
	OverlapX    float64
	OverlapY    float64
	TileExts    []string // Extensions of tile artifacts in the run folder
	LabelSubdir string   // Label folder inside the run folder
	OutputDir   string
	JPEGQuality int
	Workers     int
}

// Recorder persists reconstruction history. It may be nil.
type Recorder interface {
	RecordReconstruction(ctx context.Context, rec types.ReconstructionRecord) error
}

// Result describes the reconstruction of one parent image.
type Result struct {
	Stem       string
	OutputPath string
	Tiles      StitchStats
	Boxes      annotate.Stats
}

// Summary describes a whole batch.
type Summary struct {
	Saved   int
	Failed  int
	Results []Result // Successful reconstructions, ordered by stem
}

// Reconstructor rebuilds full images from a detector run folder.
type Reconstructor struct {
	opts    Options
	grid    grid.Grid
	rec     Recorder
	batchID string
	load    LoadFunc

	// OnDone is called once per group when it finishes, never concurrently.
	OnDone func(worker.Result)
}

// New validates the geometry and returns a Reconstructor. rec may be nil.
func New(opts Options, rec Recorder, batchID string) (*Reconstructor, error) {
	g, err := grid.New(opts.Width, opts.Height, opts.TileWidth, opts.TileHeight, opts.OverlapX, opts.OverlapY)
	if err != nil {
		return nil, fmt.Errorf("invalid reconstruction grid: %w", err)
	}
	if len(opts.TileExts) == 0 {
		opts.TileExts = []string{"jpg", "tif"}
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 95
	}
	return &Reconstructor{opts: opts, grid: g, rec: rec, batchID: batchID, load: LoadTile}, nil
}

// Grid returns the geometry used to place tiles.
func (r *Reconstructor) Grid() grid.Grid {
	return r.grid
}

// Groups returns the tile groups found in runDir.
func (r *Reconstructor) Groups(runDir string) (map[string]map[int]string, error) {
	return tilename.Group(runDir, r.opts.TileExts)
}

// Run reconstructs every tile group found in runDir. A missing runDir is
// fatal; failures of single groups are logged and counted.
func (r *Reconstructor) Run(ctx context.Context, runDir string) (Summary, error) {
	groups, err := r.Groups(runDir)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}

	stems := make([]string, 0, len(groups))
	for stem := range groups {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	labelDir := filepath.Join(runDir, r.opts.LabelSubdir)
	results := make([]Result, len(stems))
	tasks := make([]worker.Task, len(stems))
	for i, stem := range stems {
		i, stem := i, stem
		tasks[i] = worker.Task{Key: stem, Run: func(ctx context.Context) error {
			res, err := r.ReconstructOne(ctx, stem, groups[stem], labelDir, runDir)
			results[i] = res
			return err
		}}
	}

	pool := worker.New(r.opts.Workers)
	pool.OnDone = r.OnDone
	var summary Summary
	for i, res := range pool.Run(ctx, tasks) {
		if res.Err != nil {
			summary.Failed++
			log.Error(log.Fields{"image": res.Key, "error": res.Err.Error()}, "Reconstruction failed")
			continue
		}
		summary.Saved++
		summary.Results = append(summary.Results, results[i])
	}
	return summary, ctx.Err()
}

// ReconstructOne stitches, annotates and saves one parent image.
func (r *Reconstructor) ReconstructOne(ctx context.Context, stem string, tiles map[int]string, labelDir, runDir string) (Result, error) {
	img, res := r.Build(stem, tiles, labelDir)

	out := filepath.Join(r.opts.OutputDir, stem+OutputSuffix)
	if err := imaging.Save(img, out, imaging.JPEGQuality(r.opts.JPEGQuality)); err != nil {
		return res, fmt.Errorf("saving %s: %w", out, err)
	}
	res.OutputPath = out
	log.Info(log.Fields{"image": stem, "output": out, "tiles": res.Tiles.Pasted, "boxes": res.Boxes.Drawn}, "Reconstructed image with defects saved")

	if r.rec != nil {
		err := r.rec.RecordReconstruction(ctx, types.ReconstructionRecord{
			BatchID:       r.batchID,
			Stem:          stem,
			RunDir:        runDir,
			OutputPath:    out,
			TilesPasted:   res.Tiles.Pasted,
			TilesMissing:  res.Tiles.Missing + res.Tiles.Corrupt,
			BoxesDrawn:    res.Boxes.Drawn,
			BoxesRejected: res.Boxes.Rejected + res.Boxes.Malformed,
		})
		if err != nil {
			log.Warn(log.Fields{"image": stem, "error": err.Error()}, "Failed to record reconstruction")
		}
	}
	return res, nil
}

// Build stitches one group and draws its annotations. Labels come from
// {labelDir}/{stem}.txt, normalized to the full image. When that file does
// not exist, per-tile files {labelDir}/{stem}_tile_{i}.txt are used instead.
func (r *Reconstructor) Build(stem string, tiles map[int]string, labelDir string) (*image.RGBA, Result) {
	img, tstats := Stitch(tiles, r.grid, r.load)
	res := Result{Stem: stem, Tiles: tstats}

	imageLabels := filepath.Join(labelDir, stem+".txt")
	if _, err := os.Stat(imageLabels); err == nil {
		stats, err := annotate.RenderFile(img, imageLabels, r.opts.Width, r.opts.Height)
		if err != nil {
			log.Warn(log.Fields{"labels": imageLabels, "error": err.Error()}, "Failed to read labels")
		}
		res.Boxes = stats
		return img, res
	}

	for _, idx := range sortedIndices(tiles) {
		if !r.grid.Contains(idx) {
			continue
		}
		tileLabels := filepath.Join(labelDir, tilename.Encode(stem, idx, "txt"))
		stats, err := annotate.RenderTileFile(img, tileLabels, r.grid.Rect(idx))
		if err != nil {
			log.Warn(log.Fields{"labels": tileLabels, "error": err.Error()}, "Failed to read labels")
		}
		res.Boxes.Add(stats)
	}
	return img, res
}

func sortedIndices(tiles map[int]string) []int {
	indices := make([]int, 0, len(tiles))
	for idx := range tiles {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

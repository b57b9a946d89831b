package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/stitcher/internal/config"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/slicer"
	"github.com/andresmejia3/stitcher/internal/store"
	"github.com/andresmejia3/stitcher/internal/utils"
	"github.com/andresmejia3/stitcher/internal/worker"
)

var (
	sliceOpts   Options
	sliceSource string
	sliceTiles  string
)

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Cut every source image into overlapping tiles",
	Long: `Cuts each image of the source directory into a grid of overlapping tiles
named {stem}_tile_{index}.{ext}. Images that already have tiles in the tile
directory are skipped, so the command can be re-run safely.`,
	Run: func(cmd *cobra.Command, args []string) {
		applyTilingFlags(cmd.Flags(), sliceOpts, cfg)
		if sliceSource != "" {
			cfg.Paths.SourceDir = sliceSource
		}
		if sliceTiles != "" {
			cfg.Paths.TileDir = sliceTiles
		}
		if err := cfg.Validate(); err != nil {
			utils.Die("Invalid configuration", err)
		}
		runSlice(cmd, cfg)
	},
}

func init() {
	addTilingFlags(sliceCmd.Flags(), &sliceOpts)
	sliceCmd.Flags().StringVarP(&sliceSource, "source", "s", "", "Directory of source images (config: paths.sourceDir)")
	sliceCmd.Flags().StringVarP(&sliceTiles, "tiles", "t", "", "Directory tiles are written to (config: paths.tileDir)")
	rootCmd.AddCommand(sliceCmd)
}

// sliceOptions maps the configuration onto the slicer.
func sliceOptions(c *config.Config) slicer.Options {
	return slicer.Options{
		TileWidth:   c.Tiling.TileWidth,
		TileHeight:  c.Tiling.TileHeight,
		OverlapX:    c.Tiling.OverlapX,
		OverlapY:    c.Tiling.OverlapY,
		TileDir:     c.Paths.TileDir,
		TileExt:     c.Tiling.TileExt,
		JPEGQuality: c.Tiling.JPEGQuality,
		Workers:     c.Processing.Workers,
	}
}

func runSlice(cmd *cobra.Command, c *config.Config) {
	ctx := cmd.Context()

	var rec slicer.Recorder
	if DB != nil {
		if err := DB.EnsureBatch(ctx, uuid.NewString(), store.KindSlice, c.Paths.SourceDir); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "Failed to register batch")
		}
		rec = DB
	}

	s, err := slicer.New(sliceOptions(c), rec)
	if err != nil {
		utils.Die("Invalid tiling", err)
	}

	sources, err := slicer.Sources(c.Paths.SourceDir)
	if err != nil {
		utils.Die("Slicing aborted", err)
	}
	log.Info(log.Fields{"source": c.Paths.SourceDir, "images": len(sources), "tiles": c.Paths.TileDir}, "Starting slicing")

	bar := progressbar.NewOptions(len(sources),
		progressbar.OptionSetDescription("✂️  Slicing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	s.OnDone = func(worker.Result) { bar.Add(1) }

	summary, err := s.Run(ctx, c.Paths.SourceDir)
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		utils.Die("Slicing aborted", err)
	}

	fmt.Printf("✅ Sliced %d image(s) into %d tiles, skipped %d, failed %d\n",
		summary.Sliced, summary.Tiles, summary.Skipped, summary.Failed)
}

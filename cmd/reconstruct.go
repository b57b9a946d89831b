package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/stitcher/internal/config"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/reconstruct"
	"github.com/andresmejia3/stitcher/internal/runs"
	"github.com/andresmejia3/stitcher/internal/store"
	"github.com/andresmejia3/stitcher/internal/utils"
	"github.com/andresmejia3/stitcher/internal/worker"
)

var (
	reconOpts   Options
	reconRun    string
	reconDetect string
	reconPrefix string
	reconOutput string
	reconLabels string
	reconWidth  int
	reconHeight int
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Stitch detector tiles back into full images and draw their boxes",
	Long: `Groups the tiles of a detector run folder by source image, pastes them
back into full-size images and draws the run's YOLO labels on them. Without
--run, the latest {prefix}{N} folder of the detect directory is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := applyReconstructFlags(cmd, cfg); err != nil {
			utils.Die("Invalid configuration", err)
		}
		runDir, err := resolveRunDir(cfg)
		if err != nil {
			utils.Die("No detector run to reconstruct", err)
		}
		runReconstruct(cmd, cfg, runDir)
	},
}

func init() {
	addReconstructFlags(reconstructCmd)
	rootCmd.AddCommand(reconstructCmd)
}

func addReconstructFlags(cmd *cobra.Command) {
	addTilingFlags(cmd.Flags(), &reconOpts)
	f := cmd.Flags()
	f.StringVarP(&reconRun, "run", "r", "", "Detector run folder (default: latest run in --detect-dir)")
	f.StringVar(&reconDetect, "detect-dir", "", "Directory holding detector runs (config: paths.detectDir)")
	f.StringVar(&reconPrefix, "prefix", "", "Run folder name prefix (config: paths.runPrefix)")
	f.StringVar(&reconOutput, "output", "", "Directory reconstructed images are written to (config: paths.outputDir)")
	f.StringVar(&reconLabels, "labels", "", "Label folder inside the run folder (config: paths.labelSubdir)")
	f.IntVar(&reconWidth, "width", 0, "Original image width (config: image.width)")
	f.IntVar(&reconHeight, "height", 0, "Original image height (config: image.height)")
}

func applyReconstructFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	applyTilingFlags(flags, reconOpts, c)
	for name, dst := range map[string]*string{
		"detect-dir": &c.Paths.DetectDir,
		"prefix":     &c.Paths.RunPrefix,
		"output":     &c.Paths.OutputDir,
		"labels":     &c.Paths.LabelSubdir,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = v
		}
	}
	if flags.Changed("width") {
		c.Image.Width = reconWidth
	}
	if flags.Changed("height") {
		c.Image.Height = reconHeight
	}
	return c.Validate()
}

func resolveRunDir(c *config.Config) (string, error) {
	if reconRun != "" {
		return reconRun, nil
	}
	var r runs.Resolver = runs.PrefixResolver{Prefix: c.Paths.RunPrefix}
	return r.ResolveLatest(c.Paths.DetectDir)
}

// reconstructOptions maps the configuration onto the reconstructor.
func reconstructOptions(c *config.Config) reconstruct.Options {
	return reconstruct.Options{
		Width:       c.Image.Width,
		Height:      c.Image.Height,
		TileWidth:   c.Tiling.TileWidth,
		TileHeight:  c.Tiling.TileHeight,
		OverlapX:    c.Tiling.OverlapX,
		OverlapY:    c.Tiling.OverlapY,
		TileExts:    c.Paths.RunTileExts,
		LabelSubdir: c.Paths.LabelSubdir,
		OutputDir:   c.Paths.OutputDir,
		JPEGQuality: c.Tiling.JPEGQuality,
		Workers:     c.Processing.Workers,
	}
}

func runReconstruct(cmd *cobra.Command, c *config.Config, runDir string) {
	ctx := cmd.Context()

	batchID := uuid.NewString()
	var rec reconstruct.Recorder
	if DB != nil {
		if err := DB.EnsureBatch(ctx, batchID, store.KindReconstruct, runDir); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "Failed to register batch")
		} else {
			rec = DB
		}
	}

	r, err := reconstruct.New(reconstructOptions(c), rec, batchID)
	if err != nil {
		utils.Die("Invalid reconstruction geometry", err)
	}

	groups, err := r.Groups(runDir)
	if err != nil {
		utils.Die("Reconstruction aborted", err)
	}
	log.Info(log.Fields{"run": runDir, "images": len(groups), "grid": r.Grid().String()}, "Starting reconstruction")

	bar := progressbar.NewOptions(len(groups),
		progressbar.OptionSetDescription("🧩 Reconstructing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	r.OnDone = func(worker.Result) { bar.Add(1) }

	summary, err := r.Run(ctx, runDir)
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		utils.Die("Reconstruction aborted", err)
	}

	for _, res := range summary.Results {
		fmt.Printf("🖼️  %s: %d tiles, %d boxes -> %s\n", res.Stem, res.Tiles.Pasted, res.Boxes.Drawn, filepath.Base(res.OutputPath))
	}
	fmt.Printf("✅ Saved %d reconstructed image(s) to %s, failed %d\n", summary.Saved, c.Paths.OutputDir, summary.Failed)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/andresmejia3/stitcher/internal/config"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/store"
)

// Options holds the tiling configuration shared by the slice and
// reconstruct commands. Zero values mean "use the config file".
type Options struct {
	TileWidth   int
	TileHeight  int
	Overlap     float64
	TileExt     string
	JPEGQuality int
	Workers     int
}

var (
	// cfg is the loaded configuration with flag overrides applied
	cfg *config.Config
	// DB is the optional history store shared by subcommands. It is nil when
	// no database is configured.
	DB *store.Store

	cfgPath string
	dbURL   string
	logFile string
	verbose bool
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "stitcher",
	Short:   "Slice large images into overlapping tiles and stitch detections back",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Output.Verbose = verbose
		}
		if logFile != "" {
			cfg.Output.LogFile = logFile
		}
		log.Setup(log.Options{Verbose: cfg.Output.Verbose, File: cfg.Output.LogFile})

		url := resolveDBURL()
		if url == "" {
			return nil
		}
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			DB.Close()
		}
	},
}

// resolveDBURL picks the connection string from the --db flag, then
// STITCHER_DB_URL, then the config file, then POSTGRES_* variables.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	if url := os.Getenv("STITCHER_DB_URL"); url != "" {
		return url
	}
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return ""
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "stitcher.yaml", "Path to the YAML config file (defaults are used if it does not exist)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for run history (optional)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// addTilingFlags registers the flags of Options on a command.
func addTilingFlags(flags *pflag.FlagSet, opts *Options) {
	flags.IntVar(&opts.TileWidth, "tile-width", 0, "Tile width in pixels (config: tiling.tileWidth)")
	flags.IntVar(&opts.TileHeight, "tile-height", 0, "Tile height in pixels (config: tiling.tileHeight)")
	flags.Float64VarP(&opts.Overlap, "overlap", "o", 0, "Overlap ratio in [0, 1) applied to both axes (config: tiling.overlapX/Y)")
	flags.StringVar(&opts.TileExt, "ext", "", "Tile file extension (config: tiling.tileExt)")
	flags.IntVarP(&opts.JPEGQuality, "quality", "q", 0, "JPEG quality 1-100 (config: tiling.jpegQuality)")
	flags.IntVarP(&opts.Workers, "workers", "w", 0, "Images processed concurrently (config: processing.workers)")
}

// applyTilingFlags copies the flags that were set onto c.
func applyTilingFlags(flags *pflag.FlagSet, opts Options, c *config.Config) {
	if flags.Changed("tile-width") {
		c.Tiling.TileWidth = opts.TileWidth
	}
	if flags.Changed("tile-height") {
		c.Tiling.TileHeight = opts.TileHeight
	}
	if flags.Changed("overlap") {
		c.Tiling.OverlapX, c.Tiling.OverlapY = opts.Overlap, opts.Overlap
	}
	if flags.Changed("ext") {
		c.Tiling.TileExt = opts.TileExt
	}
	if flags.Changed("quality") {
		c.Tiling.JPEGQuality = opts.JPEGQuality
	}
	if flags.Changed("workers") {
		c.Processing.Workers = opts.Workers
	}
}

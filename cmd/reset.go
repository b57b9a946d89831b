package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/stitcher/internal/utils"
)

var (
	resetDB      bool
	resetTiles   bool
	resetOutputs bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Tiles, Reconstructions)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetTiles && !resetOutputs {
			resetDB = DB != nil
			resetTiles = true
			resetOutputs = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				utils.Die("Cannot reset database", errNoDatabase)
			}
			if confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err)
				}
			}
		}

		if resetTiles {
			if confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete all tiles in %s?", cfg.Paths.TileDir)) {
				fmt.Println("🗑️  Clearing Tiles...")
				removeDir(cfg.Paths.TileDir)
			}
		}

		if resetOutputs {
			if confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete all reconstructions in %s?", cfg.Paths.OutputDir)) {
				fmt.Println("🗑️  Clearing Reconstructions...")
				removeDir(cfg.Paths.OutputDir)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "history", false, "Drop the PostgreSQL history tables")
	resetCmd.Flags().BoolVar(&resetTiles, "tiles", false, "Clear the tile directory")
	resetCmd.Flags().BoolVar(&resetOutputs, "outputs", false, "Clear reconstructed images")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}

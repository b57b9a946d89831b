package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/stitcher/internal/utils"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest detector run folder",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("detect-dir") {
			cfg.Paths.DetectDir = reconDetect
		}
		if cmd.Flags().Changed("prefix") {
			cfg.Paths.RunPrefix = reconPrefix
		}
		runDir, err := resolveRunDir(cfg)
		if err != nil {
			utils.Die("No detector run found", err)
		}
		fmt.Println(runDir)
	},
}

func init() {
	latestCmd.Flags().StringVar(&reconDetect, "detect-dir", "", "Directory holding detector runs (config: paths.detectDir)")
	latestCmd.Flags().StringVar(&reconPrefix, "prefix", "", "Run folder name prefix (config: paths.runPrefix)")
	rootCmd.AddCommand(latestCmd)
}

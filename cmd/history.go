package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/stitcher/internal/utils"
)

var historyLimit int

var errNoDatabase = errors.New("no database configured (use --db, STITCHER_DB_URL or database.url)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded reconstructions, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		runHistory(cmd)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command) {
	if DB == nil {
		utils.Die("History is unavailable", errNoDatabase)
	}
	rows, err := DB.ListReconstructions(cmd.Context(), historyLimit)
	if err != nil {
		utils.Die("Failed to list reconstructions", err)
	}

	if len(rows) == 0 {
		fmt.Println("No reconstructions recorded in database.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CREATED\tBATCH\tIMAGE\tTILES\tMISSING\tBOXES\tREJECTED\tOUTPUT")
	fmt.Fprintln(w, "-------\t-----\t-----\t-----\t-------\t-----\t--------\t------")

	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), utils.ShortID(r.BatchID), r.Stem,
			r.TilesPasted, r.TilesMissing, r.BoxesDrawn, r.BoxesRejected, filepath.Base(r.OutputPath))
	}
	w.Flush()
}

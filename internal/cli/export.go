package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flash-trader/internal/app"
)

var (
	exportPNGPath     string
	exportCSVPath     string
	exportArchivePath string
	exportArchiveMax  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the leaderboard as CSV and/or PNG chart, and the archive as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportArchiveMax < 0 {
			return fmt.Errorf("--archive-limit must not be negative")
		}

		opts := app.ExportOptions{
			CSVPath:        exportCSVPath,
			ArchiveCSVPath: exportArchivePath,
			PNGPath:        exportPNGPath,
			ArchiveLimit:   exportArchiveMax,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the leaderboard PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write the leaderboard CSV")
	exportCmd.Flags().StringVar(&exportArchivePath, "archive-csv", "", "Path to write the archive CSV")
	exportCmd.Flags().IntVar(&exportArchiveMax, "archive-limit", 0, "Maximum archive entries to export (0 for all)")
}

package cli

import (
	"github.com/spf13/cobra"

	"flash-trader/internal/app"
)

var replayDryRun bool

var replayCmd = &cobra.Command{
	Use:   "replay <events.csv>",
	Short: "Replay recorded trades and resets (timestamp,action,value) in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReplayOptions{
			Path:   args[0],
			DryRun: replayDryRun,
		}
		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Replay into a throwaway in-memory store")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flash-trader/internal/app"
)

var (
	showTrader      string
	showOwner       string
	showAllocations bool
	archiveLimit    int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the leaderboard, a trader, a staking account, or allocations",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Trader:      showTrader,
			Owner:       showOwner,
			Allocations: showAllocations,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Display archived cycle rankings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Archive: true, Limit: archiveLimit})
	},
}

func init() {
	showCmd.Flags().StringVar(&showTrader, "trader", "", "Show one trader's counters and rank")
	showCmd.Flags().StringVar(&showOwner, "owner", "", "Show one staking account")
	showCmd.Flags().BoolVar(&showAllocations, "allocations", false, "Show the liquidity allocation table")

	archiveCmd.Flags().IntVar(&archiveLimit, "limit", 20, "Number of entries to display (0 for all)")
}

package cli

import (
	"github.com/spf13/cobra"
)

var resetVolume string

var tradeCmd = &cobra.Command{
	Use:   "trade <wallet>",
	Short: "Record one flash trade signed by wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RecordTrade(cmd.Context(), args[0])
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Distribute rewards, award bonuses, archive and reset the cycle now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, err := volumeFlag(cmd, resetVolume)
		if err != nil {
			return err
		}
		return getApp().ResetCycle(cmd.Context(), volume)
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetVolume, "volume", "", "DEX volume to size the pool (defaults to the configured source)")
}

package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var stakeLock time.Duration

var stakeCmd = &cobra.Command{
	Use:   "stake <owner> <amount>",
	Short: "Stake tokens and recompute the owner's tier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Stake(cmd.Context(), args[0], args[1], stakeLock)
	},
}

var unstakeCmd = &cobra.Command{
	Use:   "unstake <owner> <amount>",
	Short: "Unstake tokens and recompute the owner's tier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Unstake(cmd.Context(), args[0], args[1])
	},
}

var allocateCmd = &cobra.Command{
	Use:   "allocate <owner>",
	Short: "Record the owner's liquidity priority from its staking tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Allocate(cmd.Context(), args[0])
	},
}

func init() {
	stakeCmd.Flags().DurationVar(&stakeLock, "lock", 0, "Requested lock duration (recorded, not enforced)")
}

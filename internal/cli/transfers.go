package cli

import (
	"github.com/spf13/cobra"
)

var flashLoanCmd = &cobra.Command{
	Use:   "flash-loan <borrower> <amount>",
	Short: "Request a flash loan from the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().FlashLoan(cmd.Context(), args[0], args[1])
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn <amount>",
	Short: "Request a buyback-and-burn from the configured vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Burn(cmd.Context(), args[0])
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Retry transfers that are still pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DispatchPending(cmd.Context())
	},
}

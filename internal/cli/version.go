package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flash-trader/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	// Version needs no config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "flashtrader %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
		fmt.Fprintf(out, "user-agent: %s\n", version.UserAgent())
	},
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flash-trader/internal/app"
	"flash-trader/internal/config"
	"flash-trader/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "flashtrader",
	Short:         "Flash-trade leaderboard, reward cycles, staking tiers and transfers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		appHandle.Out = cmd.OutOrStdout()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tradeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(stakeCmd)
	rootCmd.AddCommand(unstakeCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(flashLoanCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

// volumeFlag returns nil when --volume was not given, so the configured source is used.
func volumeFlag(cmd *cobra.Command, value string) (*uint64, error) {
	if !cmd.Flags().Changed("volume") {
		return nil, nil
	}
	v, err := app.ParseVolume(value)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

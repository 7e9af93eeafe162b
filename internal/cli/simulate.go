package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateVolume   string
	simulateAnnounce bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-cycle",
	Short: "预演一次周期结算，不写入任何状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, err := volumeFlag(cmd, simulateVolume)
		if err != nil {
			return err
		}
		return getApp().SimulateCycle(cmd.Context(), volume, simulateAnnounce)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateVolume, "volume", "", "DEX 成交量（默认使用配置的数据源）")
	simulateCmd.Flags().BoolVar(&simulateAnnounce, "announce", false, "同时通过已配置的通道推送预演结果")
}

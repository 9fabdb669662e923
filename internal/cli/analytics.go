package cli

import (
	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

var analyticsTicker string

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print high, low and growth per ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analytics(cmd.Context(), app.AnalyticsOptions{Ticker: analyticsTicker})
	},
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsTicker, "ticker", "", "Restrict output to one ticker")
}

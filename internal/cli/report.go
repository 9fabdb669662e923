package cli

import (
	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

var (
	reportTicker  string
	reportDir     string
	reportHoldout holdoutFlags
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Forecast one ticker and write CSV, chart and summary files",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReportOptions{
			Ticker:  reportTicker,
			Dir:     reportDir,
			Holdout: reportHoldout.options(),
		}
		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportTicker, "ticker", "", "Ticker to report on")
	reportCmd.Flags().StringVar(&reportDir, "out", "", "Output directory (defaults to report.dir)")
	_ = reportCmd.MarkFlagRequired("ticker")
	reportHoldout.register(reportCmd)
}

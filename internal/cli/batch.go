package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

var (
	batchTickers []string
	batchWorkers int
	batchHoldout holdoutFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Forecast many tickers once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchWorkers < 0 {
			return fmt.Errorf("--workers cannot be negative")
		}
		opts := app.BatchOptions{
			Tickers: batchTickers,
			Workers: batchWorkers,
			Holdout: batchHoldout.options(),
		}
		return getApp().Batch(cmd.Context(), opts)
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchTickers, "tickers", nil, "Comma-separated tickers (defaults to batch.tickers, then every ticker)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent forecasts (defaults to batch.workers)")
	batchHoldout.register(batchCmd)
}

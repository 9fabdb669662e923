package cli

import (
	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

var (
	forecastTicker  string
	forecastPersist bool
	forecastHoldout holdoutFlags
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Train a model for one ticker and print holdout predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ForecastOptions{
			Ticker:  forecastTicker,
			Holdout: forecastHoldout.options(),
			Persist: forecastPersist,
		}
		return getApp().Forecast(cmd.Context(), opts)
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastTicker, "ticker", "", "Ticker to forecast")
	forecastCmd.Flags().BoolVar(&forecastPersist, "persist", false, "Store the run in the database")
	_ = forecastCmd.MarkFlagRequired("ticker")
	forecastHoldout.register(forecastCmd)
}

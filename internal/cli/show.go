package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-eye/internal/app"
)

var (
	showLimit  int
	showTicker string
	showPoints bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent forecast runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Ticker: showTicker,
			Limit:  showLimit,
			Points: showPoints,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of runs to display")
	showCmd.Flags().StringVar(&showTicker, "ticker", "", "Restrict to one ticker")
	showCmd.Flags().BoolVar(&showPoints, "points", false, "Also print each run's holdout predictions")
}

package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"market-eye/internal/analytics"
)

// Analytics prints high, low and growth per ticker.
func (a *App) Analytics(ctx context.Context, opts AnalyticsOptions) error {
	s, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}

	years := a.years()
	rows := analytics.Compute(s, years)
	if opts.Ticker != "" {
		row, ok := analytics.Find(rows, opts.Ticker)
		if !ok {
			return fmt.Errorf("ticker %s not found in %s", opts.Ticker, a.Config.Data.Path)
		}
		rows = []analytics.Row{row}
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Ticker\tHigh\tLow\tGrowth %d-%d %%\n", years.Base, years.Eval)
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			row.Ticker,
			row.High.StringFixed(2),
			row.Low.StringFixed(2),
			row.GrowthString(),
		)
	}
	return writer.Flush()
}

package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"market-eye/internal/storage"
)

// Show prints recently persisted forecast runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("cannot show forecast runs: %w", storage.ErrNotConfigured)
	}
	defer closeStore()

	return a.showRuns(ctx, store, opts)
}

func (a *App) showRuns(ctx context.Context, store storage.ForecastStore, opts ShowOptions) error {
	runs, err := store.ListRecentRuns(ctx, opts.Ticker, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, "no forecast runs found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTrained (UTC)\tTicker\tMode\tStatus\tLatest\tPredicted\tRMSE\tGrowth%\tError")
	for _, run := range runs {
		latest := ""
		if run.LatestDate != nil {
			latest = run.LatestDate.Format(time.DateOnly)
		}
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.TrainedAt.UTC().Format(time.RFC3339),
			run.Ticker,
			run.Mode,
			run.Status,
			latest,
			formatDecimal(run.LatestPrice, 2),
			formatDecimal(run.RMSE, 4),
			formatDecimal(run.GrowthPct, 2),
			errMsg,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if !opts.Points {
		return nil
	}
	for _, run := range runs {
		if run.Status != storage.StatusComplete {
			continue
		}
		points, err := store.ListPoints(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "\nrun %d %s\n", run.ID, run.Ticker)
		pw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(pw, "Date\tActual\tPredicted")
		for _, p := range points {
			fmt.Fprintf(pw, "%s\t%s\t%s\n", p.Day.Format(time.DateOnly), p.Actual.StringFixed(2), p.Predicted.StringFixed(2))
		}
		if err := pw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatDecimal(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "n/a"
	}
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"market-eye/internal/advisor"
	"market-eye/internal/analytics"
	"market-eye/internal/forecast"
	"market-eye/internal/report"
	"market-eye/internal/series"
	"market-eye/internal/service"
	"market-eye/internal/storage"
)

// Forecast trains a model for one ticker and prints the holdout predictions.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) error {
	mode, err := a.resolveMode(opts.Holdout)
	if err != nil {
		return err
	}

	s, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}

	var store storage.ForecastStore
	if opts.Persist {
		st, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("--persist requires database.dsn: %w", storage.ErrNotConfigured)
		}
		defer closeStore()
		store = st
	}

	forecaster := service.New(service.Options{Workers: 1, Years: a.years()}, service.Deps{
		Pipeline: a.newPipeline(),
		Store:    store,
	}, a.Logger)

	batch, err := forecaster.ForecastTickers(ctx, s, []string{opts.Ticker}, mode)
	if err != nil {
		return err
	}
	outcome := batch.Outcomes[0]
	if outcome.Err != nil {
		return outcome.Err
	}

	return printForecast(a, outcome.Result, outcome.RunID)
}

func printForecast(a *App, res *forecast.Result, runID int64) error {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tActual\tPredicted")
	for _, row := range res.Rows {
		fmt.Fprintf(writer, "%s\t%.2f\t%.2f\n", row.Date.Format(time.DateOnly), row.Actual, row.Predicted)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "\n%s %s: mse=%.4f rmse=%.4f train=%d test=%d epochs=%d",
		res.Ticker, res.Mode, res.MSE, res.RMSE, res.TrainRows, res.TestRows, res.Epochs)
	if res.StoppedEarly {
		fmt.Fprint(a.Out, " (early stop)")
	}
	if runID > 0 {
		fmt.Fprintf(a.Out, " run=%d", runID)
	}
	fmt.Fprintln(a.Out)
	return nil
}

// Report forecasts one ticker, asks for a recommendation and renders report files.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	mode, err := a.resolveMode(opts.Holdout)
	if err != nil {
		return err
	}

	s, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}

	res, err := a.newPipeline().Run(ctx, s, opts.Ticker, mode)
	if err != nil {
		return err
	}

	doc := a.buildDocument(ctx, s, res)
	artifacts, err := a.newRenderer(opts.Dir).Render(ctx, doc)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("ticker", opts.Ticker).
		Str("csv", artifacts.CSV).
		Str("png", artifacts.PNG).
		Str("summary", artifacts.Summary).
		Msg("report rendered")

	for _, path := range []string{artifacts.CSV, artifacts.PNG, artifacts.Summary} {
		if path != "" {
			fmt.Fprintln(a.Out, path)
		}
	}
	return nil
}

func (a *App) buildDocument(ctx context.Context, s *series.Series, res *forecast.Result) report.Document {
	years := a.years()
	doc := report.Document{
		Ticker:      res.Ticker,
		Company:     res.Ticker,
		Years:       years,
		Result:      res,
		GeneratedAt: time.Now().UTC(),
	}
	if profile, ok := s.Profile(res.Ticker); ok {
		if profile.BrandName != "" {
			doc.Company = profile.BrandName
		}
		doc.Sector = profile.Sector
	}
	if row, ok := analytics.Find(analytics.Compute(s, years), res.Ticker); ok {
		doc.Analytics = &row
	}

	latest, _ := res.Latest()
	in := advisor.Input{
		Ticker:               res.Ticker,
		CompanyName:          doc.Company,
		Sector:               doc.Sector,
		LatestPredictedPrice: latest.Predicted,
		RMSE:                 res.RMSE,
		Horizon:              latest.Date.Format(time.DateOnly),
	}
	if doc.Analytics != nil {
		in.GrowthPct = doc.Analytics.GrowthPct
	}

	text, err := a.newRecommender().Recommend(ctx, in)
	if err != nil {
		a.Logger.Warn().Err(err).Str("ticker", res.Ticker).Msg("recommendation unavailable")
		text = a.Config.Advisor.Fallback
	}
	doc.Recommendation = text
	return doc
}

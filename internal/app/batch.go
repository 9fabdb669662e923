package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"market-eye/internal/metrics"
	"market-eye/internal/scheduler"
	"market-eye/internal/service"
)

// Batch forecasts many tickers once, persisting and notifying when configured.
func (a *App) Batch(ctx context.Context, opts BatchOptions) error {
	mode, err := a.resolveMode(opts.Holdout)
	if err != nil {
		return err
	}

	s, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svcOpts := a.serviceOptions()
	if len(opts.Tickers) > 0 {
		svcOpts.Tickers = opts.Tickers
	}
	if opts.Workers > 0 {
		svcOpts.Workers = opts.Workers
	}
	svcOpts.Mode = mode

	deps := service.Deps{Pipeline: a.newPipeline(), Notifier: a.newNotifier()}
	if store != nil {
		deps.Store = store
	}
	forecaster := service.New(svcOpts, deps, a.Logger)

	batch, err := forecaster.ForecastTickers(ctx, s, svcOpts.Tickers, mode)
	if err != nil {
		return err
	}
	if deps.Notifier != nil {
		if err := deps.Notifier.Notify(ctx, service.Digest(batch)); err != nil {
			a.Logger.Error().Err(err).Msg("failed to dispatch digest")
		}
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tLatest\tPredicted\tActual\tRMSE\tGrowth%\tError")
	for _, o := range batch.Outcomes {
		growth := "n/a"
		if o.Growth != nil {
			growth = o.Growth.StringFixed(2)
		}
		if o.Err != nil {
			fmt.Fprintf(writer, "%s\t\t\t\t\t%s\t%s\n", o.Ticker, growth, sanitizeInline(o.Err.Error()))
			continue
		}
		latest, _ := o.Result.Latest()
		fmt.Fprintf(writer, "%s\t%s\t%.2f\t%.2f\t%.4f\t%s\t\n",
			o.Ticker, latest.Date.Format(time.DateOnly), latest.Predicted, latest.Actual, o.Result.RMSE, growth)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if failed := batch.Failed(); failed == len(batch.Outcomes) && failed > 0 {
		return errors.New("every ticker in the batch failed; check logs")
	}
	return nil
}

// Run executes the long-running scheduled batch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode, err := a.Config.Forecast.HoldoutMode()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	recorder := metrics.New()
	if a.Config.Metrics.Listen != "" {
		srv := a.serveMetrics(recorder)
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	svcOpts := a.serviceOptions()
	svcOpts.Mode = mode
	deps := service.Deps{
		Pipeline:  a.newPipeline(),
		Source:    a.loadSeries,
		Scheduler: sched,
		Notifier:  a.newNotifier(),
		Metrics:   recorder,
	}
	if store != nil {
		deps.Store = store
	}

	svc := service.New(svcOpts, deps, a.Logger)

	a.Logger.Info().Str("mode", mode.Name()).Dur("interval", a.Config.Scheduler.Interval).Msg("starting forecast service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("forecast service stopped")
	return nil
}

func (a *App) serviceOptions() service.Options {
	return service.Options{
		Workers: a.Config.Batch.Workers,
		Tickers: a.Config.Batch.Tickers,
		Years:   a.years(),
		LockKey: a.Config.Scheduler.AdvisoryLockKey,
	}
}

func (a *App) serveMetrics(recorder *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{
		Addr:              a.Config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Str("listen", srv.Addr).Msg("metrics server stopped")
		}
	}()
	a.Logger.Info().Str("listen", srv.Addr).Msg("serving metrics")
	return srv
}

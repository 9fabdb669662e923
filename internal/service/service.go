package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"market-eye/internal/alerting"
	"market-eye/internal/analytics"
	"market-eye/internal/forecast"
	"market-eye/internal/logging"
	"market-eye/internal/metrics"
	"market-eye/internal/scheduler"
	"market-eye/internal/series"
	"market-eye/internal/storage"
)

// SeriesSource loads the price history a batch runs against.
type SeriesSource func(ctx context.Context) (*series.Series, error)

// Options tune the batch forecaster.
type Options struct {
	Workers int
	Tickers []string
	Mode    forecast.Mode
	Years   analytics.Years
	LockKey int64
}

// Deps are the collaborators of a Forecaster. Everything except Pipeline is optional.
type Deps struct {
	Pipeline  *forecast.Pipeline
	Source    SeriesSource
	Scheduler *scheduler.Scheduler
	Store     storage.ForecastStore
	Notifier  alerting.Notifier
	Metrics   *metrics.Recorder
}

// Outcome is the result of forecasting one ticker in a batch.
type Outcome struct {
	Ticker string
	Result *forecast.Result
	Growth *decimal.Decimal
	RunID  int64
	Err    error
}

// Batch collects the outcomes of one ForecastTickers call in ticker order.
type Batch struct {
	Mode     string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Failed counts outcomes that ended in error.
func (b *Batch) Failed() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Forecaster orchestrates multi-ticker forecasting, persistence, and notification.
type Forecaster struct {
	opts     Options
	deps     Deps
	locker   storage.AdvisoryLocker
	logger   zerolog.Logger
	timeFunc func() time.Time
}

// New constructs the batch forecaster.
func New(opts Options, deps Deps, logger zerolog.Logger) *Forecaster {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	var locker storage.AdvisoryLocker
	if l, ok := deps.Store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Forecaster{
		opts:     opts,
		deps:     deps,
		locker:   locker,
		logger:   logging.Component(logger, "service"),
		timeFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the scheduled batch loop.
func (f *Forecaster) Run(ctx context.Context) error {
	if f.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return f.deps.Scheduler.Run(ctx, f.RunOnce)
}

// RunOnce loads the series and forecasts every configured ticker. It is skipped
// when another replica holds the advisory lock.
func (f *Forecaster) RunOnce(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := f.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		f.logger.Debug().Time("bucket", bucket).Msg("skip batch because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	if f.deps.Source == nil {
		return fmt.Errorf("series source not configured")
	}
	s, err := f.deps.Source(ctx)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}

	batch, err := f.ForecastTickers(ctx, s, f.opts.Tickers, f.opts.Mode)
	if err != nil {
		return err
	}

	f.notify(ctx, batch)
	return nil
}

// ForecastTickers runs the pipeline for each ticker with at most Workers runs in
// flight. A failing ticker is recorded in its Outcome and does not stop the
// batch. An empty ticker list means every ticker in the series.
func (f *Forecaster) ForecastTickers(ctx context.Context, s *series.Series, tickers []string, mode forecast.Mode) (*Batch, error) {
	if f.deps.Pipeline == nil {
		return nil, fmt.Errorf("forecast pipeline not configured")
	}
	if mode == nil {
		return nil, fmt.Errorf("holdout mode not configured")
	}
	if len(tickers) == 0 {
		tickers = s.Tickers()
	}

	growth := growthByTicker(s, f.opts.Years)
	batch := &Batch{
		Mode:     mode.Name(),
		Started:  f.timeFunc(),
		Outcomes: make([]Outcome, len(tickers)),
	}

	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			batch.Outcomes[i] = f.forecastOne(ctx, s, ticker, mode, growth[ticker])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch.Finished = f.timeFunc()
	f.deps.Metrics.RecordBatch(batch.Finished.Sub(batch.Started).Seconds(), batch.Finished.Unix())
	f.logger.Info().
		Str("mode", batch.Mode).
		Int("tickers", len(batch.Outcomes)).
		Int("failed", batch.Failed()).
		Dur("elapsed", batch.Finished.Sub(batch.Started)).
		Msg("batch complete")
	return batch, nil
}

func (f *Forecaster) forecastOne(ctx context.Context, s *series.Series, ticker string, mode forecast.Mode, growth *decimal.Decimal) Outcome {
	out := Outcome{Ticker: ticker, Growth: growth}
	started := f.timeFunc()

	res, err := f.deps.Pipeline.Run(ctx, s, ticker, mode)
	if err != nil {
		out.Err = err
		f.deps.Metrics.RecordFailure(ticker, failureKind(err))
		if ctx.Err() == nil {
			f.logger.Warn().Err(err).Str("ticker", ticker).Msg("forecast failed")
		}
	} else {
		out.Result = res
		latest, _ := res.Latest()
		f.deps.Metrics.RecordForecast(ticker, res.Mode, res.Duration.Seconds(), res.Epochs, res.RMSE, latest.Predicted)
		f.logger.Info().
			Str("ticker", ticker).
			Float64("rmse", res.RMSE).
			Float64("predicted", latest.Predicted).
			Int("epochs", res.Epochs).
			Msg("forecast recorded")
	}

	if f.deps.Store != nil && ctx.Err() == nil {
		run, points := toStorageRun(ticker, mode.Name(), started, out)
		saved, err := f.deps.Store.InsertRun(ctx, run, points)
		if err != nil {
			f.logger.Error().Err(err).Str("ticker", ticker).Msg("failed to persist forecast run")
		} else {
			out.RunID = saved.ID
		}
	}
	return out
}

func (f *Forecaster) notify(ctx context.Context, batch *Batch) {
	if f.deps.Notifier == nil || batch == nil {
		return
	}
	if err := f.deps.Notifier.Notify(ctx, Digest(batch)); err != nil {
		f.logger.Error().Err(err).Msg("failed to dispatch digest")
	}
}

// Digest summarises a batch for notification.
func Digest(batch *Batch) alerting.Digest {
	d := alerting.Digest{GeneratedAt: batch.Finished, Mode: batch.Mode}
	for _, o := range batch.Outcomes {
		if o.Err != nil {
			d.Failures = append(d.Failures, alerting.DigestFailure{Ticker: o.Ticker, Reason: o.Err.Error()})
			continue
		}
		latest, ok := o.Result.Latest()
		if !ok {
			continue
		}
		d.Entries = append(d.Entries, alerting.DigestEntry{
			Ticker:     o.Ticker,
			LatestDate: latest.Date,
			Predicted:  latest.Predicted,
			Actual:     latest.Actual,
			RMSE:       o.Result.RMSE,
			GrowthPct:  o.Growth,
		})
	}
	return d
}

func toStorageRun(ticker, mode string, started time.Time, out Outcome) (storage.ForecastRun, []storage.ForecastPoint) {
	run := storage.ForecastRun{
		Ticker:    ticker,
		Mode:      mode,
		Status:    storage.StatusComplete,
		GrowthPct: out.Growth,
		TrainedAt: started,
	}
	if out.Err != nil {
		msg := out.Err.Error()
		run.Status = storage.StatusFailed
		run.Error = &msg
		return run, nil
	}

	res := out.Result
	mse := decimal.NewFromFloat(res.MSE)
	rmse := decimal.NewFromFloat(res.RMSE)
	run.MSE = &mse
	run.RMSE = &rmse
	run.TrainRows = res.TrainRows
	run.TestRows = res.TestRows
	run.Epochs = res.Epochs
	run.StoppedEarly = res.StoppedEarly
	run.Duration = res.Duration
	run.TrainedAt = res.TrainedAt
	if latest, ok := res.Latest(); ok {
		date := latest.Date
		price := decimal.NewFromFloat(latest.Predicted)
		run.LatestDate = &date
		run.LatestPrice = &price
	}

	points := make([]storage.ForecastPoint, 0, len(res.Rows))
	for _, row := range res.Rows {
		points = append(points, storage.ForecastPoint{
			Day:       row.Date,
			Actual:    decimal.NewFromFloat(row.Actual),
			Predicted: decimal.NewFromFloat(row.Predicted),
		})
	}
	return run, points
}

func growthByTicker(s *series.Series, years analytics.Years) map[string]*decimal.Decimal {
	if years.Base == 0 || years.Eval == 0 {
		return nil
	}
	rows := analytics.Compute(s, years)
	out := make(map[string]*decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Ticker] = row.GrowthPct
	}
	return out
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, forecast.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, forecast.ErrEmptyForecastWindow):
		return "empty_window"
	case errors.Is(err, forecast.ErrInvalidHoldout):
		return "invalid_holdout"
	case errors.Is(err, forecast.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func (f *Forecaster) acquireLock(ctx context.Context) (func(), bool, error) {
	if f.opts.LockKey == 0 || f.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := f.locker.TryAdvisoryLock(ctx, f.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

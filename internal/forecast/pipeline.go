package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-eye/internal/logging"
	"market-eye/internal/series"
)

// Config parameterises a forecast pipeline.
type Config struct {
	// HistoryWindow caps how many records before the holdout are featurized.
	HistoryWindow int           `mapstructure:"history_window"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Model         ModelConfig   `mapstructure:"model"`
}

// ForecastRow pairs an actual close with the model's prediction.
type ForecastRow struct {
	Date      time.Time
	Actual    float64
	Predicted float64
}

// Result is the outcome of one pipeline run.
type Result struct {
	Ticker       string
	Mode         string
	Rows         []ForecastRow
	MSE          float64
	RMSE         float64
	TrainRows    int
	TestRows     int
	Epochs       int
	StoppedEarly bool
	TrainedAt    time.Time
	Duration     time.Duration
}

// Latest returns the most recent forecast row.
func (r *Result) Latest() (ForecastRow, bool) {
	if r == nil || len(r.Rows) == 0 {
		return ForecastRow{}, false
	}
	return r.Rows[len(r.Rows)-1], true
}

// Pipeline composes feature building, splitting, scaling, training and
// evaluation. It keeps no state between runs and is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger zerolog.Logger
}

// NewPipeline constructs a pipeline.
func NewPipeline(cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logging.Component(logger, "forecast")}
}

// Run forecasts ticker's holdout under mode. Every run trains a fresh model.
func (p *Pipeline) Run(ctx context.Context, s *series.Series, ticker string, mode Mode) (*Result, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := p.run(ctx, s, ticker, mode)
	if err != nil {
		return nil, fmt.Errorf("forecast %s (%s): %w", ticker, mode.Name(), err)
	}
	res.Duration = time.Since(started)

	p.logger.Debug().
		Str("ticker", ticker).
		Str("mode", res.Mode).
		Int("train_rows", res.TrainRows).
		Int("test_rows", res.TestRows).
		Int("epochs", res.Epochs).
		Float64("rmse", res.RMSE).
		Dur("duration", res.Duration).
		Msg("forecast complete")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, s *series.Series, ticker string, mode Mode) (*Result, error) {
	records := s.ForTicker(ticker)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records for ticker", ErrInsufficientHistory)
	}

	window, err := mode.Window(records, p.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}
	rows, err := BuildFeatures(window)
	if err != nil {
		return nil, err
	}

	train, test, err := mode.Split(rows)
	if err != nil {
		return nil, err
	}

	scaler, err := FitScaler(train)
	if err != nil {
		return nil, err
	}

	model := NewModel(p.cfg.Model)
	report, err := model.Fit(ctx, scaler.TransformFeatures(train), scaler.TransformTarget(train))
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	scaled, err := model.Predict(scaler.TransformFeatures(test))
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	predicted := scaler.InvertTarget(scaled)
	actual := targets(test)

	metrics, err := Evaluate(actual, predicted)
	if err != nil {
		return nil, err
	}

	out := make([]ForecastRow, len(test))
	for i, row := range test {
		out[i] = ForecastRow{Date: row.Date, Actual: actual[i], Predicted: predicted[i]}
	}

	return &Result{
		Ticker:       ticker,
		Mode:         mode.Name(),
		Rows:         out,
		MSE:          metrics.MSE,
		RMSE:         metrics.RMSE,
		TrainRows:    len(train),
		TestRows:     len(test),
		Epochs:       report.Epochs,
		StoppedEarly: report.StoppedEarly,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

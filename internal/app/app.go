package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"market-eye/internal/advisor"
	"market-eye/internal/alerting"
	"market-eye/internal/analytics"
	"market-eye/internal/config"
	"market-eye/internal/fetcher"
	"market-eye/internal/forecast"
	"market-eye/internal/logging"
	"market-eye/internal/report"
	"market-eye/internal/series"
	"market-eye/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output. Logs go to the logger.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

// HoldoutOptions override the configured holdout for a single command.
type HoldoutOptions struct {
	Days int
	From string
	To   string
}

// AnalyticsOptions configure the analytics command.
type AnalyticsOptions struct {
	Ticker string
}

// ForecastOptions configure the forecast command.
type ForecastOptions struct {
	Ticker  string
	Holdout HoldoutOptions
	Persist bool
}

// ReportOptions configure the report command.
type ReportOptions struct {
	Ticker  string
	Holdout HoldoutOptions
	Dir     string
}

// BatchOptions configure a one-shot batch.
type BatchOptions struct {
	Tickers []string
	Workers int
	Holdout HoldoutOptions
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Ticker string
	Limit  int
	Points bool
}

func (a *App) loadSeries(ctx context.Context) (*series.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	src := fetcher.NewSource(a.Config.Data.Path, a.Config.Data.Timeout, a.Config.Data.UserAgent, a.Logger)
	res, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	event := a.Logger.Info()
	if res.Dropped() > 0 {
		event = a.Logger.Warn()
	}
	event.Str("path", a.Config.Data.Path).
		Int("rows", res.Rows).
		Int("records", res.Series.Len()).
		Int("dropped_dates", res.DroppedDates).
		Int("dropped_values", res.DroppedValues).
		Dur("elapsed", time.Since(started)).
		Msg("price history loaded")
	return res.Series, nil
}

func (a *App) years() analytics.Years {
	base, eval := a.Config.AnalyticsYears()
	return analytics.Years{Base: base, Eval: eval}
}

func (a *App) newPipeline() *forecast.Pipeline {
	return forecast.NewPipeline(a.Config.Forecast.Config, a.Logger)
}

// resolveMode applies command-line holdout overrides on top of configuration.
func (a *App) resolveMode(opts HoldoutOptions) (forecast.Mode, error) {
	fc := a.Config.Forecast
	switch {
	case opts.Days > 0:
		if opts.From != "" || opts.To != "" {
			return nil, fmt.Errorf("--holdout-days cannot be combined with --from/--to")
		}
		fc.Mode = config.ModeRolling
		fc.HoldoutDays = opts.Days
	case opts.From != "" || opts.To != "":
		if opts.From == "" || opts.To == "" {
			return nil, fmt.Errorf("--from and --to must be provided together")
		}
		fc.Mode = config.ModeCalendar
		fc.CalendarStart = opts.From
		fc.CalendarEnd = opts.To
	}
	return fc.HoldoutMode()
}

func (a *App) newRecommender() advisor.Recommender {
	cfg := a.Config.Advisor
	if cfg.Endpoint == "" {
		return advisor.StaticRecommender{Message: cfg.Fallback}
	}
	return advisor.NewHTTPRecommender(advisor.HTTPOptions{
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newRenderer(dir string) report.Renderer {
	cfg := a.Config.Report
	if dir == "" {
		dir = cfg.Dir
	}
	return report.NewFileRenderer(report.FileOptions{
		Dir:         dir,
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
		SummaryRows: cfg.SummaryRows,
	})
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

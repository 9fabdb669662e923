package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"market-eye/internal/forecast"
	"market-eye/internal/logging"
)

const (
	// ModeRolling holds out the most recent rows.
	ModeRolling = "rolling"
	// ModeCalendar holds out a fixed date range.
	ModeCalendar = "calendar"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Data      DataConfig      `mapstructure:"data"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Report    ReportConfig    `mapstructure:"report"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DataConfig locates the daily price file: a local path or an http(s) URL.
type DataConfig struct {
	Path      string        `mapstructure:"path"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// AnalyticsConfig selects the years compared by the growth figure.
type AnalyticsConfig struct {
	BaseYear int `mapstructure:"base_year"`
	EvalYear int `mapstructure:"eval_year"`
}

// ForecastConfig holds pipeline settings and the default holdout.
type ForecastConfig struct {
	forecast.Config `mapstructure:",squash"`

	Mode          string `mapstructure:"mode"`
	HoldoutDays   int    `mapstructure:"holdout_days"`
	CalendarStart string `mapstructure:"calendar_start"`
	CalendarEnd   string `mapstructure:"calendar_end"`
}

// BatchConfig drives multi-ticker forecasting.
type BatchConfig struct {
	Tickers []string `mapstructure:"tickers"`
	Workers int      `mapstructure:"workers"`
}

// SchedulerConfig governs batch cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AdvisorConfig points at the recommendation service.
type AdvisorConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Fallback       string        `mapstructure:"fallback"`
}

// ReportConfig sets report rendering output.
type ReportConfig struct {
	Dir         string `mapstructure:"dir"`
	ChartWidth  int    `mapstructure:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height"`
	SummaryRows int    `mapstructure:"summary_rows"`
}

// AlertingConfig defines digest routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig exposes Prometheus metrics while the service runs.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETEYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	model := forecast.DefaultModelConfig()

	v.SetDefault("app.name", "marketeye")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("data.path", "World-Stock-Prices-Dataset.csv")
	v.SetDefault("data.timeout", "2m")
	v.SetDefault("data.user_agent", "marketeye/1.0")

	v.SetDefault("analytics.base_year", 2020)
	v.SetDefault("analytics.eval_year", 2025)

	v.SetDefault("forecast.mode", ModeCalendar)
	v.SetDefault("forecast.holdout_days", 30)
	v.SetDefault("forecast.calendar_start", "2025-01-01")
	v.SetDefault("forecast.calendar_end", "2025-01-31")
	v.SetDefault("forecast.history_window", 365)
	v.SetDefault("forecast.timeout", "0s")
	v.SetDefault("forecast.model.hidden_layers", model.HiddenLayers)
	v.SetDefault("forecast.model.learning_rate", model.LearningRate)
	v.SetDefault("forecast.model.alpha", model.Alpha)
	v.SetDefault("forecast.model.batch_size", model.BatchSize)
	v.SetDefault("forecast.model.max_iter", model.MaxIter)
	v.SetDefault("forecast.model.patience", model.Patience)
	v.SetDefault("forecast.model.tolerance", model.Tolerance)
	v.SetDefault("forecast.model.validation_fraction", model.ValidationFraction)
	v.SetDefault("forecast.model.seed", model.Seed)

	v.SetDefault("batch.tickers", []string{})
	v.SetDefault("batch.workers", 2)

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6d657965))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("advisor.request_timeout", "30s")
	v.SetDefault("advisor.user_agent", "marketeye/1.0")
	v.SetDefault("advisor.fallback", "No recommendation service configured.")

	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.chart_width", 1280)
	v.SetDefault("report.chart_height", 720)
	v.SetDefault("report.summary_rows", 5)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.listen", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if err := c.Forecast.Model.Validate(); err != nil {
		return fmt.Errorf("forecast.model: %w", err)
	}
	if _, err := c.Forecast.HoldoutMode(); err != nil {
		return err
	}
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if c.Forecast.HistoryWindow < 0 {
		return fmt.Errorf("forecast.history_window cannot be negative")
	}
	if c.Analytics.BaseYear <= 0 || c.Analytics.EvalYear <= 0 {
		return fmt.Errorf("analytics.base_year and analytics.eval_year must be set")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// HoldoutMode builds the configured forecast holdout.
func (f ForecastConfig) HoldoutMode() (forecast.Mode, error) {
	switch strings.ToLower(f.Mode) {
	case ModeRolling:
		if f.HoldoutDays <= 0 {
			return nil, fmt.Errorf("forecast.holdout_days must be greater than zero")
		}
		return forecast.RollingHoldout(f.HoldoutDays), nil
	case ModeCalendar:
		start, err := time.Parse(time.DateOnly, f.CalendarStart)
		if err != nil {
			return nil, fmt.Errorf("forecast.calendar_start: %w", err)
		}
		end, err := time.Parse(time.DateOnly, f.CalendarEnd)
		if err != nil {
			return nil, fmt.Errorf("forecast.calendar_end: %w", err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("forecast.calendar_end must not precede forecast.calendar_start")
		}
		return forecast.CalendarHoldout(start, end), nil
	default:
		return nil, fmt.Errorf("forecast.mode must be %q or %q, got %q", ModeRolling, ModeCalendar, f.Mode)
	}
}

// AnalyticsYears returns the configured growth years.
func (c *Config) AnalyticsYears() (int, int) {
	return c.Analytics.BaseYear, c.Analytics.EvalYear
}

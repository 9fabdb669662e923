package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusComplete marks a run that produced forecasts.
	StatusComplete = "complete"
	// StatusFailed marks a run that stopped with an error.
	StatusFailed = "failed"
)

// ForecastRun represents one persisted pipeline execution for a ticker.
type ForecastRun struct {
	ID           int64
	Ticker       string
	Mode         string
	Status       string
	MSE          *decimal.Decimal
	RMSE         *decimal.Decimal
	LatestDate   *time.Time
	LatestPrice  *decimal.Decimal
	GrowthPct    *decimal.Decimal
	TrainRows    int
	TestRows     int
	Epochs       int
	StoppedEarly bool
	Duration     time.Duration
	Error        *string
	TrainedAt    time.Time
	CreatedAt    time.Time
}

// ForecastPoint is one holdout-day prediction belonging to a run.
type ForecastPoint struct {
	Day       time.Time
	Actual    decimal.Decimal
	Predicted decimal.Decimal
}

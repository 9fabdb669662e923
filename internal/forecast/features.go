package forecast

import (
	"fmt"
	"math"
	"time"

	"market-eye/internal/series"
)

const (
	// RollingWindow is the trailing window, inclusive of the current row, for rolling statistics.
	RollingWindow = 7
	// MinHistory is the number of records needed to emit the first valid feature row.
	MinHistory = RollingWindow + 1

	// NumFeatures is the width of FeatureRow.Vector.
	NumFeatures = 9
)

// FeatureNames lists the columns of FeatureRow.Vector in order.
var FeatureNames = [NumFeatures]string{
	"dayofweek", "month", "quarter", "dayofyear", "weekofyear",
	"lag_1", "lag_2", "rolling_mean_7", "rolling_std_7",
}

// FeatureRow is the supervised-learning view of one trading day.
type FeatureRow struct {
	Ticker string
	Date   time.Time

	DayOfWeek  int // Monday = 0
	Month      int
	Quarter    int
	DayOfYear  int
	WeekOfYear int // ISO 8601

	Lag1         float64
	Lag2         float64
	RollingMean7 float64
	RollingStd7  float64

	Target float64
}

// Vector returns the model inputs in FeatureNames order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		float64(r.DayOfWeek),
		float64(r.Month),
		float64(r.Quarter),
		float64(r.DayOfYear),
		float64(r.WeekOfYear),
		r.Lag1,
		r.Lag2,
		r.RollingMean7,
		r.RollingStd7,
	}
}

// BuildFeatures derives one row per record once MinHistory-1 earlier records
// are available. Every history value reads only records at or before the
// row's own position. Records must belong to one ticker in date order.
func BuildFeatures(records []series.Record) ([]FeatureRow, error) {
	if len(records) < MinHistory {
		return nil, fmt.Errorf("%w: need %d records, have %d", ErrInsufficientHistory, MinHistory, len(records))
	}

	closes := make([]float64, len(records))
	for i, rec := range records {
		closes[i] = rec.Close.InexactFloat64()
	}

	rows := make([]FeatureRow, 0, len(records)-MinHistory+1)
	for i := MinHistory - 1; i < len(records); i++ {
		rec := records[i]
		mean, std := rollingStats(closes[i-RollingWindow+1 : i+1])

		row := calendarFeatures(rec.Date)
		row.Ticker = rec.Ticker
		row.Date = rec.Date
		row.Lag1 = closes[i-1]
		row.Lag2 = closes[i-2]
		row.RollingMean7 = mean
		row.RollingStd7 = std
		row.Target = closes[i]
		rows = append(rows, row)
	}
	return rows, nil
}

func calendarFeatures(date time.Time) FeatureRow {
	_, week := date.ISOWeek()
	month := int(date.Month())
	return FeatureRow{
		DayOfWeek:  (int(date.Weekday()) + 6) % 7,
		Month:      month,
		Quarter:    (month-1)/3 + 1,
		DayOfYear:  date.YearDay(),
		WeekOfYear: week,
	}
}

// rollingStats returns the mean and sample standard deviation (n-1) of window.
func rollingStats(window []float64) (float64, float64) {
	n := float64(len(window))
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	mean := sum / n

	if len(window) < 2 {
		return mean, 0
	}
	sumSq := 0.0
	for _, v := range window {
		d := v - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / (n - 1))
}

func targets(rows []FeatureRow) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row.Target
	}
	return out
}

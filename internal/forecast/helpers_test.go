package forecast

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"market-eye/internal/series"
)

var day0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// dailyRecords builds consecutive daily records starting at start.
func dailyRecords(ticker string, start time.Time, closes []float64) []series.Record {
	records := make([]series.Record, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		records[i] = series.Record{
			Ticker:    ticker,
			Date:      start.AddDate(0, 0, i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Sector:    "technology",
			BrandName: ticker,
		}
	}
	return records
}

// wave returns n closes following a gentle trend plus a weekly cycle.
func wave(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.2*float64(i) + 3*math.Sin(float64(i)*2*math.Pi/7)
	}
	return closes
}

func testModelConfig() ModelConfig {
	cfg := DefaultModelConfig()
	cfg.HiddenLayers = []int{16, 8}
	cfg.LearningRate = 0.01
	cfg.BatchSize = 32
	cfg.MaxIter = 200
	return cfg
}

package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBuildFeaturesEightPricesYieldOneRow(t *testing.T) {
	records := dailyRecords("X", day0, []float64{10, 11, 12, 13, 14, 15, 16, 17})

	rows, err := BuildFeatures(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row, got %d", len(rows))
	}

	row := rows[0]
	if !row.Date.Equal(records[7].Date) {
		t.Fatalf("row should be keyed on the 8th day, got %v", row.Date)
	}
	if row.Lag1 != 16 || row.Lag2 != 15 || row.Target != 17 {
		t.Fatalf("unexpected lags/target: %+v", row)
	}
	if math.Abs(row.RollingMean7-14) > 1e-12 {
		t.Fatalf("expected rolling mean 14, got %v", row.RollingMean7)
	}
	wantStd := math.Sqrt(28.0 / 6.0)
	if math.Abs(row.RollingStd7-wantStd) > 1e-12 {
		t.Fatalf("expected rolling std %v, got %v", wantStd, row.RollingStd7)
	}
}

func TestBuildFeaturesInsufficientHistory(t *testing.T) {
	records := dailyRecords("X", day0, []float64{1, 2, 3, 4, 5, 6, 7})
	rows, err := BuildFeatures(records)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestBuildFeaturesCalendarColumns(t *testing.T) {
	// 2024-01-08 is the 8th record and a Monday in ISO week 2.
	rows, err := BuildFeatures(dailyRecords("X", day0, wave(8)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	row := rows[0]
	if row.DayOfWeek != 0 || row.Month != 1 || row.Quarter != 1 || row.DayOfYear != 8 || row.WeekOfYear != 2 {
		t.Fatalf("unexpected calendar features: %+v", row)
	}

	got := calendarFeatures(day0.AddDate(0, 11, 29)) // 2024-12-30, Monday of ISO week 1 of 2025
	if got.Quarter != 4 || got.WeekOfYear != 1 || got.DayOfWeek != 0 || got.DayOfYear != 365 {
		t.Fatalf("unexpected year-end features: %+v", got)
	}
	sunday := calendarFeatures(day0.AddDate(0, 0, 6))
	if sunday.DayOfWeek != 6 {
		t.Fatalf("Sunday should be 6, got %d", sunday.DayOfWeek)
	}
}

func TestBuildFeaturesOrderedAndCausal(t *testing.T) {
	closes := wave(40)
	records := dailyRecords("X", day0, closes)

	base, err := BuildFeatures(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(base) != len(records)-MinHistory+1 {
		t.Fatalf("unexpected row count %d", len(base))
	}
	for i := 1; i < len(base); i++ {
		if !base[i-1].Date.Before(base[i].Date) {
			t.Fatalf("rows not strictly ordered at %d", i)
		}
	}

	// Perturb every close after the 20th record; rows dated at or before it must not change.
	cutoff := records[20].Date
	perturbed := dailyRecords("X", day0, closes)
	for i := 21; i < len(perturbed); i++ {
		perturbed[i].Close = perturbed[i].Close.Mul(decimal.NewFromInt(3))
	}
	after, err := BuildFeatures(perturbed)
	if err != nil {
		t.Fatalf("build perturbed: %v", err)
	}
	for i := range base {
		if base[i].Date.After(cutoff) {
			break
		}
		if base[i] != after[i] {
			t.Fatalf("row %v changed after perturbing future closes:\n%+v\n%+v", base[i].Date, base[i], after[i])
		}
	}
}

func TestFeatureVectorOrder(t *testing.T) {
	row := FeatureRow{DayOfWeek: 1, Month: 2, Quarter: 3, DayOfYear: 4, WeekOfYear: 5, Lag1: 6, Lag2: 7, RollingMean7: 8, RollingStd7: 9}
	vec := row.Vector()
	if len(vec) != NumFeatures || len(FeatureNames) != NumFeatures {
		t.Fatalf("unexpected vector width %d", len(vec))
	}
	for i, v := range vec {
		if v != float64(i+1) {
			t.Fatalf("column %s out of order: %v", FeatureNames[i], vec)
		}
	}
}

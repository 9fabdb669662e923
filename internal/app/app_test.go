package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-eye/internal/config"
	"market-eye/internal/forecast"
	"market-eye/internal/series"
	"market-eye/internal/storage"
)

func writePriceFile(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume,Brand_Name,Ticker,Industry_Tag,Country\n")
	start := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	for _, ticker := range []string{"AAPL", "NKE"} {
		for i := 0; i < 140; i++ {
			day := start.AddDate(0, 0, i)
			c := 100 + 0.1*float64(i) + 2*math.Sin(float64(i))
			fmt.Fprintf(&b, "%s 00:00:00-05:00,%.2f,%.2f,%.2f,%.2f,1000,%s Inc,%s,technology,usa\n",
				day.Format(time.DateOnly), c-1, c+1, c-2, c, strings.ToLower(ticker), ticker)
		}
	}
	b.WriteString("not-a-date,1,1,1,1,1,x,AAPL,technology,usa\n")

	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write prices: %v", err)
	}
	return path
}

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	model := forecast.DefaultModelConfig()
	model.HiddenLayers = []int{8}
	model.LearningRate = 0.01
	model.BatchSize = 32
	model.MaxIter = 40

	cfg := &config.Config{
		Data:      config.DataConfig{Path: writePriceFile(t)},
		Analytics: config.AnalyticsConfig{BaseYear: 2024, EvalYear: 2025},
		Forecast: config.ForecastConfig{
			Config:        forecast.Config{HistoryWindow: 365, Model: model},
			Mode:          config.ModeCalendar,
			HoldoutDays:   10,
			CalendarStart: "2025-01-01",
			CalendarEnd:   "2025-01-31",
		},
		Batch:   config.BatchConfig{Workers: 2},
		Advisor: config.AdvisorConfig{Fallback: "No recommendation service configured."},
		Report:  config.ReportConfig{Dir: t.TempDir(), ChartWidth: 400, ChartHeight: 300, SummaryRows: 5},
	}

	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func TestAnalyticsCommand(t *testing.T) {
	a, out := testApp(t)
	if err := a.Analytics(context.Background(), AnalyticsOptions{}); err != nil {
		t.Fatalf("analytics: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Growth 2024-2025 %") || !strings.Contains(text, "AAPL") || !strings.Contains(text, "NKE") {
		t.Fatalf("unexpected analytics output:\n%s", text)
	}

	if err := a.Analytics(context.Background(), AnalyticsOptions{Ticker: "MSFT"}); err == nil {
		t.Fatal("unknown ticker should fail")
	}
}

func TestForecastCommandCalendarHoldout(t *testing.T) {
	a, out := testApp(t)
	if err := a.Forecast(context.Background(), ForecastOptions{Ticker: "AAPL"}); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "2025-01-31") || strings.Contains(text, "2025-02-01") {
		t.Fatalf("forecast should cover January only:\n%s", text)
	}
	if !strings.Contains(text, "AAPL calendar:2025-01-01..2025-01-31") {
		t.Fatalf("missing summary line:\n%s", text)
	}
}

func TestForecastCommandErrors(t *testing.T) {
	a, _ := testApp(t)
	ctx := context.Background()

	err := a.Forecast(ctx, ForecastOptions{Ticker: "AAPL", Holdout: HoldoutOptions{From: "2031-01-01", To: "2031-01-31"}})
	if !errors.Is(err, forecast.ErrEmptyForecastWindow) {
		t.Fatalf("expected ErrEmptyForecastWindow, got %v", err)
	}
	if err := a.Forecast(ctx, ForecastOptions{Ticker: "AAPL", Persist: true}); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("persist without a database should fail, got %v", err)
	}

	a.Config.Data.Path = filepath.Join(t.TempDir(), "missing.csv")
	if err := a.Forecast(ctx, ForecastOptions{Ticker: "AAPL"}); !errors.Is(err, series.ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
}

func TestResolveMode(t *testing.T) {
	a, _ := testApp(t)

	mode, err := a.resolveMode(HoldoutOptions{})
	if err != nil || mode.Name() != "calendar:2025-01-01..2025-01-31" {
		t.Fatalf("default mode: %v %v", mode, err)
	}
	mode, err = a.resolveMode(HoldoutOptions{Days: 30})
	if err != nil || mode.Name() != "rolling:30" {
		t.Fatalf("rolling override: %v %v", mode, err)
	}
	mode, err = a.resolveMode(HoldoutOptions{From: "2024-12-01", To: "2024-12-31"})
	if err != nil || mode.Name() != "calendar:2024-12-01..2024-12-31" {
		t.Fatalf("calendar override: %v %v", mode, err)
	}
	for _, bad := range []HoldoutOptions{
		{Days: 5, From: "2024-12-01", To: "2024-12-31"},
		{From: "2024-12-01"},
		{From: "2024-12-31", To: "2024-12-01"},
		{From: "12/01/2024", To: "2024-12-31"},
	} {
		if _, err := a.resolveMode(bad); err == nil {
			t.Fatalf("expected %+v to be rejected", bad)
		}
	}
}

func TestReportCommand(t *testing.T) {
	a, out := testApp(t)
	dir := t.TempDir()
	if err := a.Report(context.Background(), ReportOptions{Ticker: "NKE", Dir: dir, Holdout: HoldoutOptions{Days: 10}}); err != nil {
		t.Fatalf("report: %v", err)
	}

	summary, err := os.ReadFile(filepath.Join(dir, "NKE_summary.txt"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, want := range []string{"Market Eye Report: nke Inc (NKE)", "Sector: technology", "No recommendation service configured."} {
		if !strings.Contains(string(summary), want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
	if !strings.Contains(out.String(), "NKE_forecast.png") {
		t.Fatalf("report should print written paths:\n%s", out.String())
	}
}

func TestBatchCommand(t *testing.T) {
	a, out := testApp(t)
	if err := a.Batch(context.Background(), BatchOptions{Holdout: HoldoutOptions{Days: 5}}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "AAPL") || !strings.Contains(text, "NKE") {
		t.Fatalf("batch should list every ticker:\n%s", text)
	}

	out.Reset()
	err := a.Batch(context.Background(), BatchOptions{Tickers: []string{"MSFT"}, Holdout: HoldoutOptions{Days: 5}})
	if err == nil {
		t.Fatal("a batch where every ticker fails should return an error")
	}
}

type fakeStore struct {
	runs   []storage.ForecastRun
	points map[int64][]storage.ForecastPoint
}

func (f *fakeStore) InsertRun(ctx context.Context, run storage.ForecastRun, points []storage.ForecastPoint) (storage.ForecastRun, error) {
	return run, nil
}

func (f *fakeStore) ListRecentRuns(ctx context.Context, ticker string, limit int) ([]storage.ForecastRun, error) {
	return f.runs, nil
}

func (f *fakeStore) ListPoints(ctx context.Context, runID int64) ([]storage.ForecastPoint, error) {
	return f.points[runID], nil
}

func TestShowRuns(t *testing.T) {
	a, out := testApp(t)
	rmse := decimal.RequireFromString("1.23456")
	latest := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	msg := "forecast NEW (rolling:30): insufficient\nhistory"
	store := &fakeStore{
		runs: []storage.ForecastRun{
			{ID: 2, Ticker: "AAPL", Mode: "rolling:30", Status: storage.StatusComplete, RMSE: &rmse, LatestDate: &latest, TrainedAt: latest},
			{ID: 1, Ticker: "NEW", Mode: "rolling:30", Status: storage.StatusFailed, Error: &msg, TrainedAt: latest},
		},
		points: map[int64][]storage.ForecastPoint{
			2: {{Day: latest, Actual: decimal.NewFromInt(10), Predicted: decimal.RequireFromString("10.5")}},
		},
	}

	if err := a.showRuns(context.Background(), store, ShowOptions{Limit: 10, Points: true}); err != nil {
		t.Fatalf("show: %v", err)
	}
	text := out.String()
	for _, want := range []string{"1.2346", "insufficient history", "run 2 AAPL", "10.50"} {
		if !strings.Contains(text, want) {
			t.Fatalf("show output missing %q:\n%s", want, text)
		}
	}

	if err := a.Show(context.Background(), ShowOptions{Limit: 5}); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("show without database should fail with ErrNotConfigured, got %v", err)
	}
	if err := a.Migrate(context.Background()); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("migrate without database should fail with ErrNotConfigured, got %v", err)
	}
}

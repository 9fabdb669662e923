package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-eye/internal/alerting"
	"market-eye/internal/analytics"
	"market-eye/internal/forecast"
	"market-eye/internal/metrics"
	"market-eye/internal/series"
	"market-eye/internal/storage"
)

type memoryStore struct {
	mu     sync.Mutex
	runs   []storage.ForecastRun
	points map[int64][]storage.ForecastPoint
}

func (m *memoryStore) InsertRun(ctx context.Context, run storage.ForecastRun, points []storage.ForecastPoint) (storage.ForecastRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, run)
	if m.points == nil {
		m.points = make(map[int64][]storage.ForecastPoint)
	}
	m.points[run.ID] = points
	return run, nil
}

func (m *memoryStore) ListRecentRuns(ctx context.Context, ticker string, limit int) ([]storage.ForecastRun, error) {
	return m.runs, nil
}

func (m *memoryStore) ListPoints(ctx context.Context, runID int64) ([]storage.ForecastPoint, error) {
	return m.points[runID], nil
}

type lockingStore struct {
	memoryStore
	held bool
}

func (l *lockingStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type captureNotifier struct {
	digests []alerting.Digest
}

func (c *captureNotifier) Notify(ctx context.Context, d alerting.Digest) error {
	c.digests = append(c.digests, d)
	return nil
}

func tickerRecords(ticker string, n int) []series.Record {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	records := make([]series.Record, n)
	for i := range records {
		price := decimal.NewFromFloat(50 + 0.1*float64(i) + 2*math.Sin(float64(i)))
		records[i] = series.Record{
			Ticker: ticker,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
		}
	}
	return records
}

func testSeries() *series.Series {
	records := append(tickerRecords("AAA", 90), tickerRecords("BBB", 90)...)
	records = append(records, tickerRecords("NEW", 5)...)
	return series.NewSeries(records)
}

func testPipeline() *forecast.Pipeline {
	model := forecast.DefaultModelConfig()
	model.HiddenLayers = []int{8}
	model.LearningRate = 0.01
	model.BatchSize = 32
	model.MaxIter = 50
	return forecast.NewPipeline(forecast.Config{HistoryWindow: 365, Model: model}, zerolog.Nop())
}

func TestForecastTickersIsolatesFailures(t *testing.T) {
	store := &memoryStore{}
	f := New(Options{Workers: 2}, Deps{Pipeline: testPipeline(), Store: store, Metrics: metrics.New()}, zerolog.Nop())

	batch, err := f.ForecastTickers(context.Background(), testSeries(), nil, forecast.RollingHoldout(5))
	if err != nil {
		t.Fatalf("forecast tickers: %v", err)
	}
	if len(batch.Outcomes) != 3 || batch.Failed() != 1 {
		t.Fatalf("expected 3 outcomes with 1 failure, got %d/%d", len(batch.Outcomes), batch.Failed())
	}
	for i, want := range []string{"AAA", "BBB", "NEW"} {
		if batch.Outcomes[i].Ticker != want {
			t.Fatalf("outcome %d is %s, want %s", i, batch.Outcomes[i].Ticker, want)
		}
	}
	if !errors.Is(batch.Outcomes[2].Err, forecast.ErrInsufficientHistory) {
		t.Fatalf("short ticker should fail with ErrInsufficientHistory, got %v", batch.Outcomes[2].Err)
	}
	if batch.Outcomes[0].Result == nil || len(batch.Outcomes[0].Result.Rows) != 5 {
		t.Fatalf("expected 5 forecast rows for AAA")
	}

	if len(store.runs) != 3 {
		t.Fatalf("every ticker should be persisted, got %d runs", len(store.runs))
	}
	for _, run := range store.runs {
		switch run.Ticker {
		case "NEW":
			if run.Status != storage.StatusFailed || run.Error == nil {
				t.Fatalf("failed run should carry its error: %+v", run)
			}
		default:
			if run.Status != storage.StatusComplete || run.RMSE == nil || len(store.points[run.ID]) != 5 {
				t.Fatalf("complete run should carry metrics and points: %+v", run)
			}
		}
	}
}

func TestForecastTickersExplicitListAndCancellation(t *testing.T) {
	f := New(Options{Workers: 1}, Deps{Pipeline: testPipeline()}, zerolog.Nop())

	batch, err := f.ForecastTickers(context.Background(), testSeries(), []string{"BBB"}, forecast.RollingHoldout(3))
	if err != nil {
		t.Fatalf("forecast tickers: %v", err)
	}
	if len(batch.Outcomes) != 1 || batch.Outcomes[0].Ticker != "BBB" || batch.Failed() != 0 {
		t.Fatalf("unexpected batch %+v", batch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.ForecastTickers(ctx, testSeries(), nil, forecast.RollingHoldout(3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunOnceNotifiesDigest(t *testing.T) {
	notifier := &captureNotifier{}
	s := testSeries()
	f := New(Options{
		Workers: 2,
		Tickers: []string{"AAA", "NEW"},
		Mode:    forecast.RollingHoldout(4),
		Years:   analytics.Years{Base: 2024, Eval: 2024},
	}, Deps{
		Pipeline: testPipeline(),
		Source:   func(context.Context) (*series.Series, error) { return s, nil },
		Notifier: notifier,
	}, zerolog.Nop())

	if err := f.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(notifier.digests) != 1 {
		t.Fatalf("expected one digest, got %d", len(notifier.digests))
	}
	d := notifier.digests[0]
	if len(d.Entries) != 1 || d.Entries[0].Ticker != "AAA" || len(d.Failures) != 1 {
		t.Fatalf("unexpected digest %+v", d)
	}
	if d.Entries[0].GrowthPct == nil {
		t.Fatal("growth should be attached when analytics years are set")
	}
	if d.Mode != "rolling:4" {
		t.Fatalf("unexpected mode %q", d.Mode)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	store := &lockingStore{held: true}
	called := false
	f := New(Options{LockKey: 7, Mode: forecast.RollingHoldout(3)}, Deps{
		Pipeline: testPipeline(),
		Store:    store,
		Source: func(context.Context) (*series.Series, error) {
			called = true
			return testSeries(), nil
		},
	}, zerolog.Nop())

	if err := f.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if called || len(store.runs) != 0 {
		t.Fatal("batch should be skipped while another replica holds the lock")
	}
}

func TestRunOnceSourceError(t *testing.T) {
	f := New(Options{Mode: forecast.RollingHoldout(3)}, Deps{
		Pipeline: testPipeline(),
		Source: func(context.Context) (*series.Series, error) {
			return nil, series.ErrDataSource
		},
	}, zerolog.Nop())
	if err := f.RunOnce(context.Background(), time.Now()); !errors.Is(err, series.ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
}

func TestFailureKind(t *testing.T) {
	cases := map[string]error{
		"insufficient_history": fmt.Errorf("forecast X: %w", forecast.ErrInsufficientHistory),
		"empty_window":         fmt.Errorf("forecast X: %w", forecast.ErrEmptyForecastWindow),
		"invalid_holdout":      fmt.Errorf("forecast X: %w", forecast.ErrInvalidHoldout),
		"shape_mismatch":       forecast.ErrShapeMismatch,
		"canceled":             context.Canceled,
		"error":                errors.New("boom"),
	}
	for want, err := range cases {
		if got := failureKind(err); got != want {
			t.Fatalf("failureKind(%v) = %q, want %q", err, got, want)
		}
	}
}

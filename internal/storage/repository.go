package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertRunSQL = `INSERT INTO forecast_runs (
        ticker,
        mode,
        status,
        mse,
        rmse,
        latest_date,
        latest_price,
        growth_pct,
        train_rows,
        test_rows,
        epochs,
        stopped_early,
        duration_ms,
        error,
        trained_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
    )
    RETURNING id, created_at;`

	insertPointSQL = `INSERT INTO forecast_points (run_id, seq, day, actual, predicted)
    VALUES ($1,$2,$3,$4,$5);`

	selectRunColumns = `SELECT
        id,
        ticker,
        mode,
        status,
        mse,
        rmse,
        latest_date,
        latest_price,
        growth_pct,
        train_rows,
        test_rows,
        epochs,
        stopped_early,
        duration_ms,
        error,
        trained_at,
        created_at
    FROM forecast_runs`

	listRecentRunsSQL = selectRunColumns + `
    ORDER BY trained_at DESC, id DESC
    LIMIT $1;`

	listRecentRunsForTickerSQL = selectRunColumns + `
    WHERE ticker = $1
    ORDER BY trained_at DESC, id DESC
    LIMIT $2;`

	listPointsSQL = `SELECT day, actual, predicted
    FROM forecast_points
    WHERE run_id = $1
    ORDER BY seq;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ForecastStore defines operations for forecast run persistence.
type ForecastStore interface {
	InsertRun(ctx context.Context, run ForecastRun, points []ForecastPoint) (ForecastRun, error)
	ListRecentRuns(ctx context.Context, ticker string, limit int) ([]ForecastRun, error)
	ListPoints(ctx context.Context, runID int64) ([]ForecastPoint, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store provides access to forecast runs and their points.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// The session lock also drops when the connection closes.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertRun persists a run and its points in one transaction.
func (s *Store) InsertRun(ctx context.Context, run ForecastRun, points []ForecastPoint) (ForecastRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return ForecastRun{}, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ForecastRun{}, fmt.Errorf("begin forecast run tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}
	var latestDate interface{}
	if run.LatestDate != nil {
		latestDate = run.LatestDate.UTC().Format(time.DateOnly)
	}

	if err := tx.QueryRow(ctx, insertRunSQL,
		run.Ticker,
		run.Mode,
		run.Status,
		nullableDecimal(run.MSE),
		nullableDecimal(run.RMSE),
		latestDate,
		nullableDecimal(run.LatestPrice),
		nullableDecimal(run.GrowthPct),
		run.TrainRows,
		run.TestRows,
		run.Epochs,
		run.StoppedEarly,
		run.Duration.Milliseconds(),
		errMsg,
		run.TrainedAt,
	).Scan(&run.ID, &run.CreatedAt); err != nil {
		return ForecastRun{}, fmt.Errorf("insert forecast run: %w", err)
	}

	if len(points) > 0 {
		batch := &pgx.Batch{}
		for i, point := range points {
			batch.Queue(insertPointSQL,
				run.ID,
				i,
				point.Day.UTC().Format(time.DateOnly),
				point.Actual.String(),
				point.Predicted.String(),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return ForecastRun{}, fmt.Errorf("insert forecast points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ForecastRun{}, fmt.Errorf("commit forecast run: %w", err)
	}
	return run, nil
}

// ListRecentRuns lists the most recent runs, optionally restricted to one ticker.
func (s *Store) ListRecentRuns(ctx context.Context, ticker string, limit int) ([]ForecastRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if ticker == "" {
		rows, err = pool.Query(ctx, listRecentRunsSQL, limit)
	} else {
		rows, err = pool.Query(ctx, listRecentRunsForTickerSQL, ticker, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]ForecastRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanForecastRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// ListPoints returns the holdout points of a run in forecast order.
func (s *Store) ListPoints(ctx context.Context, runID int64) ([]ForecastPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listPointsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("list forecast points: %w", err)
	}
	defer rows.Close()

	points := make([]ForecastPoint, 0)
	for rows.Next() {
		var (
			point                   ForecastPoint
			actualStr, predictedStr string
		)
		if err := rows.Scan(&point.Day, &actualStr, &predictedStr); err != nil {
			return nil, err
		}
		if point.Actual, err = decimal.NewFromString(actualStr); err != nil {
			return nil, fmt.Errorf("parse actual: %w", err)
		}
		if point.Predicted, err = decimal.NewFromString(predictedStr); err != nil {
			return nil, fmt.Errorf("parse predicted: %w", err)
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

func scanForecastRun(rows pgx.Rows) (ForecastRun, error) {
	var (
		run        ForecastRun
		mse        *string
		rmse       *string
		latestDate *time.Time
		price      *string
		growth     *string
		durationMS int64
		errMsg     *string
	)

	if err := rows.Scan(
		&run.ID,
		&run.Ticker,
		&run.Mode,
		&run.Status,
		&mse,
		&rmse,
		&latestDate,
		&price,
		&growth,
		&run.TrainRows,
		&run.TestRows,
		&run.Epochs,
		&run.StoppedEarly,
		&durationMS,
		&errMsg,
		&run.TrainedAt,
		&run.CreatedAt,
	); err != nil {
		return ForecastRun{}, err
	}

	var err error
	if run.MSE, err = parseNullableDecimal(mse); err != nil {
		return ForecastRun{}, fmt.Errorf("parse mse: %w", err)
	}
	if run.RMSE, err = parseNullableDecimal(rmse); err != nil {
		return ForecastRun{}, fmt.Errorf("parse rmse: %w", err)
	}
	if run.LatestPrice, err = parseNullableDecimal(price); err != nil {
		return ForecastRun{}, fmt.Errorf("parse latest price: %w", err)
	}
	if run.GrowthPct, err = parseNullableDecimal(growth); err != nil {
		return ForecastRun{}, fmt.Errorf("parse growth pct: %w", err)
	}
	run.LatestDate = latestDate
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Error = errMsg

	return run, nil
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullableDecimal(v *string) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var (
	_ ForecastStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

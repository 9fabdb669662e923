package forecast

import (
	"fmt"
	"time"

	"market-eye/internal/series"
)

// Mode selects the holdout policy of a forecast request.
type Mode interface {
	// Name is a short label used in logs and persisted runs.
	Name() string
	// Window picks the records to featurize from one ticker's history.
	Window(records []series.Record, historyWindow int) ([]series.Record, error)
	// Split partitions feature rows into train and test sets.
	Split(rows []FeatureRow) (train, test []FeatureRow, err error)
}

// Rolling holds out the most recent N feature rows.
type Rolling struct {
	N int
}

// RollingHoldout returns a trailing-window holdout of n rows.
func RollingHoldout(n int) Rolling {
	return Rolling{N: n}
}

// Name implements Mode.
func (r Rolling) Name() string {
	return fmt.Sprintf("rolling:%d", r.N)
}

// Window keeps the last historyWindow records. A non-positive window keeps everything.
func (r Rolling) Window(records []series.Record, historyWindow int) ([]series.Record, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return tail(records, historyWindow), nil
}

func (r Rolling) validate() error {
	if r.N <= 0 {
		return fmt.Errorf("%w: rolling holdout size must be positive, got %d", ErrInvalidHoldout, r.N)
	}
	return nil
}

// Split implements Mode.
func (r Rolling) Split(rows []FeatureRow) ([]FeatureRow, []FeatureRow, error) {
	if err := r.validate(); err != nil {
		return nil, nil, err
	}
	if len(rows) < r.N+1 {
		return nil, nil, fmt.Errorf("%w: rolling holdout of %d needs %d feature rows, have %d", ErrInsufficientHistory, r.N, r.N+1, len(rows))
	}
	cut := len(rows) - r.N
	return rows[:cut:cut], rows[cut:], nil
}

// Calendar holds out every feature row dated within [Start, End].
type Calendar struct {
	Start time.Time
	End   time.Time
}

// CalendarHoldout returns a fixed-date holdout. Bounds are truncated to UTC days.
func CalendarHoldout(start, end time.Time) Calendar {
	return Calendar{Start: day(start), End: day(end)}
}

// Name implements Mode.
func (c Calendar) Name() string {
	return fmt.Sprintf("calendar:%s..%s", c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly))
}

// Window keeps the last historyWindow records dated before Start plus every
// record inside the holdout. Records after End never reach the featurizer.
// A range holding no records fails with ErrEmptyForecastWindow.
func (c Calendar) Window(records []series.Record, historyWindow int) ([]series.Record, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	before := make([]series.Record, 0, len(records))
	inside := make([]series.Record, 0)
	for _, rec := range records {
		d := day(rec.Date)
		switch {
		case d.Before(c.Start):
			before = append(before, rec)
		case !d.After(c.End):
			inside = append(inside, rec)
		}
	}
	if len(inside) == 0 {
		return nil, c.emptyErr()
	}
	window := make([]series.Record, 0, len(inside)+max(historyWindow, 0))
	window = append(window, tail(before, historyWindow)...)
	return append(window, inside...), nil
}

func (c Calendar) validate() error {
	if c.End.Before(c.Start) {
		return fmt.Errorf("%w: calendar end %s precedes start %s", ErrInvalidHoldout, c.End.Format(time.DateOnly), c.Start.Format(time.DateOnly))
	}
	return nil
}

func (c Calendar) emptyErr() error {
	return fmt.Errorf("%w: no rows between %s and %s", ErrEmptyForecastWindow, c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly))
}

// Split implements Mode.
func (c Calendar) Split(rows []FeatureRow) ([]FeatureRow, []FeatureRow, error) {
	if err := c.validate(); err != nil {
		return nil, nil, err
	}

	var train, test []FeatureRow
	for _, row := range rows {
		d := day(row.Date)
		switch {
		case d.Before(c.Start):
			train = append(train, row)
		case !d.After(c.End):
			test = append(test, row)
		}
	}

	if len(test) == 0 {
		return nil, nil, c.emptyErr()
	}
	if len(train) == 0 {
		return nil, nil, fmt.Errorf("%w: no training rows before %s", ErrInsufficientHistory, c.Start.Format(time.DateOnly))
	}
	return train, test, nil
}

func tail(records []series.Record, n int) []series.Record {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var (
	_ Mode = Rolling{}
	_ Mode = Calendar{}
)

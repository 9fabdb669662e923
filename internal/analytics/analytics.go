package analytics

import (
	"github.com/shopspring/decimal"

	"market-eye/internal/series"
)

var hundred = decimal.NewFromInt(100)

// Years selects the base and evaluation calendar years for growth.
type Years struct {
	Base int
	Eval int
}

// Row summarises one ticker's full price history.
type Row struct {
	Ticker string
	High   decimal.Decimal
	Low    decimal.Decimal
	// GrowthPct is nil when either year has no data or the base mean is zero.
	GrowthPct *decimal.Decimal
}

// GrowthDefined reports whether a growth percentage could be computed.
func (r Row) GrowthDefined() bool {
	return r.GrowthPct != nil
}

// GrowthString renders growth with two decimals, or "n/a" when undefined.
func (r Row) GrowthString() string {
	if r.GrowthPct == nil {
		return "n/a"
	}
	return r.GrowthPct.StringFixed(2)
}

// Compute returns one row per ticker in series order.
func Compute(s *series.Series, years Years) []Row {
	tickers := s.Tickers()
	rows := make([]Row, 0, len(tickers))
	for _, ticker := range tickers {
		rows = append(rows, computeTicker(ticker, s.ForTicker(ticker), years))
	}
	return rows
}

// Find returns the row for ticker.
func Find(rows []Row, ticker string) (Row, bool) {
	for _, row := range rows {
		if row.Ticker == ticker {
			return row, true
		}
	}
	return Row{}, false
}

func computeTicker(ticker string, records []series.Record, years Years) Row {
	row := Row{Ticker: ticker}
	if len(records) == 0 {
		return row
	}

	row.High = records[0].High
	row.Low = records[0].Low

	var baseOpen, evalClose mean
	for _, rec := range records {
		if rec.High.GreaterThan(row.High) {
			row.High = rec.High
		}
		if rec.Low.LessThan(row.Low) {
			row.Low = rec.Low
		}
		if rec.Date.Year() == years.Base {
			baseOpen.add(rec.Open)
		}
		if rec.Date.Year() == years.Eval {
			evalClose.add(rec.Close)
		}
	}

	base, okBase := baseOpen.value()
	current, okEval := evalClose.value()
	if !okBase || !okEval || base.IsZero() {
		return row
	}

	growth := current.Sub(base).Div(base).Mul(hundred)
	row.GrowthPct = &growth
	return row
}

type mean struct {
	sum   decimal.Decimal
	count int64
}

func (m *mean) add(v decimal.Decimal) {
	m.sum = m.sum.Add(v)
	m.count++
}

func (m *mean) value() (decimal.Decimal, bool) {
	if m.count == 0 {
		return decimal.Decimal{}, false
	}
	return m.sum.Div(decimal.NewFromInt(m.count)), true
}

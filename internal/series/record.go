package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one daily OHLC observation for a ticker.
type Record struct {
	Ticker    string
	Date      time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Sector    string
	BrandName string
	Country   string
	Volume    *decimal.Decimal
}

// Series holds records ordered by (ticker, date) ascending.
type Series struct {
	records []Record
}

// NewSeries sorts a copy of records by ticker then date. Records sharing a
// (ticker, date) key keep their input order.
func NewSeries(records []Record) *Series {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return &Series{records: sorted}
}

// Len returns the number of records.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Tickers lists distinct tickers in series order.
func (s *Series) Tickers() []string {
	if s == nil {
		return nil
	}
	tickers := make([]string, 0)
	for i, rec := range s.records {
		if i == 0 || s.records[i-1].Ticker != rec.Ticker {
			tickers = append(tickers, rec.Ticker)
		}
	}
	return tickers
}

// ForTicker returns the contiguous, date-ordered records of one ticker.
func (s *Series) ForTicker(ticker string) []Record {
	if s == nil {
		return nil
	}
	start := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].Ticker >= ticker
	})
	end := start
	for end < len(s.records) && s.records[end].Ticker == ticker {
		end++
	}
	if start == end {
		return nil
	}
	return s.records[start:end:end]
}

// Profile describes the company behind a ticker.
type Profile struct {
	Ticker    string
	BrandName string
	Sector    string
	Country   string
}

// Profile returns the descriptive fields of the first record for ticker.
func (s *Series) Profile(ticker string) (Profile, bool) {
	records := s.ForTicker(ticker)
	if len(records) == 0 {
		return Profile{}, false
	}
	first := records[0]
	return Profile{
		Ticker:    first.Ticker,
		BrandName: first.BrandName,
		Sector:    first.Sector,
		Country:   first.Country,
	}, true
}

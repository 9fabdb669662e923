package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrDataSource indicates the price source could not be read or held no usable rows.
	ErrDataSource = errors.New("series: data source unavailable")
)

const (
	colDate    = "Date"
	colTicker  = "Ticker"
	colOpen    = "Open"
	colHigh    = "High"
	colLow     = "Low"
	colClose   = "Close"
	colSector  = "Industry_Tag"
	colBrand   = "Brand_Name"
	colVolume  = "Volume"
	colCountry = "Country"
)

var requiredColumns = []string{colDate, colTicker, colOpen, colHigh, colLow, colClose, colSector, colBrand}

var dateLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadResult reports the prepared series along with rows discarded while parsing.
type LoadResult struct {
	Series        *Series
	Rows          int
	DroppedDates  int
	DroppedValues int
}

// Dropped returns the total number of discarded rows.
func (r LoadResult) Dropped() int {
	return r.DroppedDates + r.DroppedValues
}

// LoadFile reads a CSV price file from disk.
func LoadFile(path string) (LoadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: open %s: %v", ErrDataSource, path, err)
	}
	defer file.Close()

	return Load(file)
}

// Load parses CSV rows with a header line. Rows whose date cannot be parsed
// are skipped and counted rather than failing the load.
func Load(r io.Reader) (LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return LoadResult{}, fmt.Errorf("%w: empty input", ErrDataSource)
		}
		return LoadResult{}, fmt.Errorf("%w: read header: %v", ErrDataSource, err)
	}

	idx := buildColumnIndex(header)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return LoadResult{}, fmt.Errorf("%w: missing column %q", ErrDataSource, col)
		}
	}

	var (
		result  LoadResult
		records []Record
	)
	for {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return LoadResult{}, fmt.Errorf("%w: read row %d: %v", ErrDataSource, result.Rows+1, readErr)
		}
		result.Rows++

		date, ok := parseDate(field(row, idx, colDate))
		if !ok {
			result.DroppedDates++
			continue
		}

		rec, ok := parseRecord(row, idx, date)
		if !ok {
			result.DroppedValues++
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return LoadResult{}, fmt.Errorf("%w: no valid rows (read %d, dropped %d)", ErrDataSource, result.Rows, result.Dropped())
	}

	result.Series = NewSeries(records)
	return result, nil
}

func parseRecord(row []string, idx map[string]int, date time.Time) (Record, bool) {
	ticker := field(row, idx, colTicker)
	if ticker == "" {
		return Record{}, false
	}

	prices := [4]decimal.Decimal{}
	for i, col := range []string{colOpen, colHigh, colLow, colClose} {
		value, err := decimal.NewFromString(field(row, idx, col))
		if err != nil {
			return Record{}, false
		}
		prices[i] = value
	}

	rec := Record{
		Ticker:    ticker,
		Date:      date,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Sector:    field(row, idx, colSector),
		BrandName: field(row, idx, colBrand),
		Country:   field(row, idx, colCountry),
	}
	if raw := field(row, idx, colVolume); raw != "" {
		if volume, err := decimal.NewFromString(raw); err == nil {
			rec.Volume = &volume
		}
	}
	return rec, true
}

func buildColumnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		idx[name] = i
	}
	return idx
}

func field(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseDate accepts the layouts seen in exported price files and normalises to UTC.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

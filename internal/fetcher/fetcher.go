package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-eye/internal/series"
)

// PriceSource retrieves the daily price history.
type PriceSource interface {
	Fetch(ctx context.Context) (series.LoadResult, error)
}

// FileSource reads prices from a local CSV file.
type FileSource struct {
	Path string
}

// Fetch implements PriceSource.
func (f FileSource) Fetch(ctx context.Context) (series.LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return series.LoadResult{}, err
	}
	return series.LoadFile(f.Path)
}

// NewSource picks an HTTP source for http(s) locations and a file source otherwise.
func NewSource(location string, timeout time.Duration, userAgent string, logger zerolog.Logger) PriceSource {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return NewHTTPSource(HTTPOptions{URL: location, Timeout: timeout, UserAgent: userAgent}, logger)
	}
	return FileSource{Path: location}
}

var _ PriceSource = FileSource{}

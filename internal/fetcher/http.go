package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-eye/internal/logging"
	"market-eye/internal/series"
)

// HTTPOptions parameterise the remote price file fetcher.
type HTTPOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	// MaxBytes caps the downloaded body; zero means 512 MiB.
	MaxBytes int64
}

// HTTPSource downloads the price CSV over HTTP.
type HTTPSource struct {
	opts   HTTPOptions
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPSource constructs an HTTP price source.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 512 << 20
	}

	return &HTTPSource{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logging.Component(logger, "price_fetcher"),
	}
}

// Fetch implements PriceSource.
func (h *HTTPSource) Fetch(ctx context.Context) (series.LoadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return series.LoadResult{}, fmt.Errorf("%w: create request: %v", series.ErrDataSource, err)
	}
	req.Header.Set("Accept", "text/csv, */*")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "marketeye/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return series.LoadResult{}, ctx.Err()
		}
		return series.LoadResult{}, fmt.Errorf("%w: fetch %s: %v", series.ErrDataSource, h.opts.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return series.LoadResult{}, parseHTTPError(resp.StatusCode, snippet)
	}

	res, err := series.Load(io.LimitReader(resp.Body, h.opts.MaxBytes))
	if err != nil {
		return series.LoadResult{}, err
	}

	h.logger.Debug().Str("url", h.opts.URL).Int("rows", res.Rows).Msg("price file downloaded")
	return res, nil
}

func parseHTTPError(status int, payload []byte) error {
	if msg := strings.TrimSpace(string(payload)); msg != "" {
		return fmt.Errorf("%w: price source status %d: %s", series.ErrDataSource, status, msg)
	}
	return fmt.Errorf("%w: price source status %d", series.ErrDataSource, status)
}

var _ PriceSource = (*HTTPSource)(nil)

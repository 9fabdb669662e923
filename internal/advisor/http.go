package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-eye/internal/logging"
)

// ErrEmptyRecommendation is returned when the service answers without text.
var ErrEmptyRecommendation = errors.New("advisor: empty recommendation")

// HTTPOptions parameterise the recommendation service client.
type HTTPOptions struct {
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// HTTPRecommender posts forecast figures to a recommendation service.
type HTTPRecommender struct {
	opts     HTTPOptions
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

type recommendRequest struct {
	Ticker        string   `json:"ticker"`
	Company       string   `json:"company"`
	Sector        string   `json:"sector"`
	ForecastPrice float64  `json:"forecast_price"`
	GrowthPct     *float64 `json:"growth_pct"`
	RMSE          float64  `json:"rmse"`
	Horizon       string   `json:"horizon,omitempty"`
	Prompt        string   `json:"prompt"`
}

type recommendResponse struct {
	Recommendation string `json:"recommendation"`
	Error          string `json:"error,omitempty"`
}

// NewHTTPRecommender constructs the service client.
func NewHTTPRecommender(opts HTTPOptions, logger zerolog.Logger) *HTTPRecommender {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPRecommender{
		opts:     opts,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Component(logger, "advisor"),
	}
}

// Recommend implements Recommender.
func (h *HTTPRecommender) Recommend(ctx context.Context, in Input) (string, error) {
	if h.endpoint == "" {
		return "", errors.New("advisor endpoint not configured")
	}

	payload := recommendRequest{
		Ticker:        in.Ticker,
		Company:       in.CompanyName,
		Sector:        in.Sector,
		ForecastPrice: in.LatestPredictedPrice,
		RMSE:          in.RMSE,
		Horizon:       in.Horizon,
		Prompt:        Prompt(in),
	}
	if in.GrowthPct != nil {
		growth := in.GrowthPct.InexactFloat64()
		payload.GrowthPct = &growth
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal recommendation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create recommendation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "marketeye/1.0")
	}
	if h.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send recommendation request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read recommendation response: %w", err)
	}

	var decoded recommendResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("advisor status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("decode recommendation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("advisor status %d: %s", resp.StatusCode, msg)
	}

	text := strings.TrimSpace(decoded.Recommendation)
	if text == "" {
		return "", ErrEmptyRecommendation
	}

	h.logger.Debug().Str("ticker", in.Ticker).Int("chars", len(text)).Msg("recommendation received")
	return text, nil
}

var _ Recommender = (*HTTPRecommender)(nil)

package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-eye/internal/logging"
)

// DigestEntry summarises one ticker's forecast.
type DigestEntry struct {
	Ticker     string
	LatestDate time.Time
	Predicted  float64
	Actual     float64
	RMSE       float64
	GrowthPct  *decimal.Decimal
}

// DigestFailure records a ticker that could not be forecast.
type DigestFailure struct {
	Ticker string
	Reason string
}

// Digest is the message sent after a batch run.
type Digest struct {
	GeneratedAt time.Time
	Mode        string
	Entries     []DigestEntry
	Failures    []DigestFailure
}

// Notifier delivers digests.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// TelegramNotifier pushes digests through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Component(logger, "alert_telegram"),
	}
}

// Notify calls sendMessage with the rendered digest.
func (n *TelegramNotifier) Notify(ctx context.Context, digest Digest) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderDigest(digest),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int("tickers", len(digest.Entries)).
		Int("failed", len(digest.Failures)).
		Msg("digest sent (Telegram)")
	return nil
}

// RenderDigest formats a digest as plain text.
func RenderDigest(d Digest) string {
	var b strings.Builder
	b.WriteString("[Market Eye Forecast]\n")
	if !d.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Run: %s UTC\n", d.GeneratedAt.UTC().Format(time.RFC3339))
	}
	if d.Mode != "" {
		fmt.Fprintf(&b, "Holdout: %s\n", d.Mode)
	}
	for _, e := range d.Entries {
		growth := "n/a"
		if e.GrowthPct != nil {
			growth = e.GrowthPct.StringFixed(2) + "%"
		}
		fmt.Fprintf(&b, "%s %s: predicted %.2f, actual %.2f, rmse %.2f, growth %s\n",
			e.Ticker, e.LatestDate.Format(time.DateOnly), e.Predicted, e.Actual, e.RMSE, growth)
	}
	if len(d.Failures) > 0 {
		fmt.Fprintf(&b, "Failed (%d):\n", len(d.Failures))
		for _, f := range d.Failures {
			fmt.Fprintf(&b, "%s: %s\n", f.Ticker, f.Reason)
		}
	}
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)

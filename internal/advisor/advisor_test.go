package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleInput() Input {
	growth := decimal.RequireFromString("42.5")
	return Input{
		Ticker:               "AAPL",
		CompanyName:          "Apple",
		Sector:               "technology",
		LatestPredictedPrice: 231.456,
		GrowthPct:            &growth,
		RMSE:                 3.21,
		Horizon:              "January 2025",
	}
}

func TestHTTPRecommenderSuccess(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"recommendation": "  Hold.  "})
	}))
	defer srv.Close()

	rec := NewHTTPRecommender(HTTPOptions{Endpoint: srv.URL, APIKey: "secret", Timeout: time.Second}, zerolog.Nop())
	text, err := rec.Recommend(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if text != "Hold." {
		t.Fatalf("expected trimmed recommendation, got %q", text)
	}
	if received["ticker"] != "AAPL" || received["growth_pct"] != 42.5 {
		t.Fatalf("unexpected payload %#v", received)
	}
	if prompt, _ := received["prompt"].(string); !strings.Contains(prompt, "$231.46") {
		t.Fatalf("prompt should carry the rounded forecast price: %q", prompt)
	}
}

func TestHTTPRecommenderUndefinedGrowth(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]string{"recommendation": "Buy"})
	}))
	defer srv.Close()

	in := sampleInput()
	in.GrowthPct = nil
	if _, err := NewHTTPRecommender(HTTPOptions{Endpoint: srv.URL}, zerolog.Nop()).Recommend(context.Background(), in); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if v, ok := received["growth_pct"]; !ok || v != nil {
		t.Fatalf("undefined growth should be sent as null, got %#v", received["growth_pct"])
	}
	if !strings.Contains(Prompt(in), "n/a") {
		t.Fatal("prompt should render undefined growth as n/a")
	}
}

func TestHTTPRecommenderErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "status", status: http.StatusBadGateway, body: `{"error":"upstream down"}`},
		{name: "plain status", status: http.StatusInternalServerError, body: "boom"},
		{name: "empty", status: http.StatusOK, body: `{"recommendation":"   "}`, wantErr: ErrEmptyRecommendation},
		{name: "garbage", status: http.StatusOK, body: "not json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPRecommender(HTTPOptions{Endpoint: srv.URL}, zerolog.Nop()).Recommend(context.Background(), sampleInput())
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if _, err := NewHTTPRecommender(HTTPOptions{}, zerolog.Nop()).Recommend(context.Background(), sampleInput()); err == nil {
		t.Fatal("missing endpoint should fail")
	}
}

func TestStaticRecommender(t *testing.T) {
	rec := StaticRecommender{Message: "No advice."}
	text, err := rec.Recommend(context.Background(), sampleInput())
	if err != nil || text != "No advice." {
		t.Fatalf("unexpected %q %v", text, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rec.Recommend(ctx, sampleInput()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

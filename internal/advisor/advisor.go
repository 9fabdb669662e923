package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Input carries the figures a recommendation is based on.
type Input struct {
	Ticker               string
	CompanyName          string
	Sector               string
	LatestPredictedPrice float64
	GrowthPct            *decimal.Decimal
	RMSE                 float64
	// Horizon names the forecast window, e.g. "January 2025".
	Horizon string
}

// Recommender produces a buy/hold/sell style recommendation.
type Recommender interface {
	Recommend(ctx context.Context, in Input) (string, error)
}

// Prompt renders the request text sent to a language-model backed service.
func Prompt(in Input) string {
	growth := "n/a"
	if in.GrowthPct != nil {
		growth = in.GrowthPct.StringFixed(2) + "%"
	}
	horizon := in.Horizon
	if horizon == "" {
		horizon = "next"
	}

	var b strings.Builder
	b.WriteString("Analyze the following stock and suggest whether to Buy, Hold, or Sell. Give a short recommendation.\n\n")
	fmt.Fprintf(&b, "Company: %s (%s)\n", in.CompanyName, in.Ticker)
	fmt.Fprintf(&b, "Forecasted %s closing price: $%.2f\n", horizon, in.LatestPredictedPrice)
	fmt.Fprintf(&b, "Growth since base year: %s\n", growth)
	fmt.Fprintf(&b, "RMSE of prediction model: %.2f\n", in.RMSE)
	fmt.Fprintf(&b, "Sector: %s\n\n", in.Sector)
	b.WriteString("Give a professional recommendation with clear reasoning. Be precise.")
	return b.String()
}

// StaticRecommender returns a fixed message. Used when no service is configured.
type StaticRecommender struct {
	Message string
}

// Recommend implements Recommender.
func (s StaticRecommender) Recommend(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Message, nil
}

var _ Recommender = StaticRecommender{}

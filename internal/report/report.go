package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"market-eye/internal/analytics"
	"market-eye/internal/forecast"
)

// Document is everything a report shows for one ticker.
type Document struct {
	Ticker         string
	Company        string
	Sector         string
	Years          analytics.Years
	Analytics      *analytics.Row
	Result         *forecast.Result
	Recommendation string
	GeneratedAt    time.Time
}

// Artifacts lists the files written for a document.
type Artifacts struct {
	CSV     string
	PNG     string
	Summary string
}

// Renderer turns a document into report output.
type Renderer interface {
	Render(ctx context.Context, doc Document) (Artifacts, error)
}

// WriteSummary writes the plain-text report body, ending with the last
// tailRows forecast rows.
func WriteSummary(w io.Writer, doc Document, tailRows int) error {
	var b strings.Builder

	title := doc.Ticker
	if doc.Company != "" {
		title = fmt.Sprintf("%s (%s)", doc.Company, doc.Ticker)
	}
	fmt.Fprintf(&b, "Market Eye Report: %s\n", title)
	if doc.Sector != "" {
		fmt.Fprintf(&b, "Sector: %s\n", doc.Sector)
	}
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", doc.GeneratedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")

	if doc.Analytics != nil {
		fmt.Fprintf(&b, "High Price: %s\n", doc.Analytics.High.StringFixed(2))
		fmt.Fprintf(&b, "Low Price: %s\n", doc.Analytics.Low.StringFixed(2))
		growth := doc.Analytics.GrowthString()
		if doc.Analytics.GrowthDefined() {
			growth += "%"
		}
		fmt.Fprintf(&b, "Growth (%d-%d): %s\n\n", doc.Years.Base, doc.Years.Eval, growth)
	}

	if res := doc.Result; res != nil {
		fmt.Fprintf(&b, "Holdout: %s (%d train / %d test rows)\n", res.Mode, res.TrainRows, res.TestRows)
		fmt.Fprintf(&b, "MSE: %.2f\n", res.MSE)
		fmt.Fprintf(&b, "RMSE: %.2f\n\n", res.RMSE)
	}

	if doc.Recommendation != "" {
		b.WriteString("Recommendation:\n")
		b.WriteString(strings.TrimSpace(doc.Recommendation))
		b.WriteString("\n\n")
	}

	if res := doc.Result; res != nil && len(res.Rows) > 0 && tailRows > 0 {
		rows := res.Rows
		if len(rows) > tailRows {
			rows = rows[len(rows)-tailRows:]
		}
		fmt.Fprintf(&b, "Forecast (last %d days):\n", len(rows))
		for _, row := range rows {
			fmt.Fprintf(&b, "%s: Actual=%.2f, Predicted=%.2f\n", row.Date.Format(time.DateOnly), row.Actual, row.Predicted)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

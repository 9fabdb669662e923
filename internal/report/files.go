package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// FileOptions configure the file renderer.
type FileOptions struct {
	Dir         string
	ChartWidth  int
	ChartHeight int
	SummaryRows int
}

// FileRenderer writes a CSV, a PNG chart and a text summary per ticker.
type FileRenderer struct {
	opts FileOptions
}

// NewFileRenderer constructs a FileRenderer with defaults applied.
func NewFileRenderer(opts FileOptions) *FileRenderer {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.ChartWidth <= 0 {
		opts.ChartWidth = 1280
	}
	if opts.ChartHeight <= 0 {
		opts.ChartHeight = 720
	}
	if opts.SummaryRows <= 0 {
		opts.SummaryRows = 5
	}
	return &FileRenderer{opts: opts}
}

// Render implements Renderer.
func (r *FileRenderer) Render(ctx context.Context, doc Document) (Artifacts, error) {
	if doc.Result == nil || len(doc.Result.Rows) == 0 {
		return Artifacts{}, errors.New("report: document has no forecast rows")
	}
	if err := ctx.Err(); err != nil {
		return Artifacts{}, err
	}

	base := filepath.Join(r.opts.Dir, fileStem(doc.Ticker))
	out := Artifacts{
		CSV:     base + "_forecast.csv",
		PNG:     base + "_forecast.png",
		Summary: base + "_summary.txt",
	}

	if err := writeForecastCSV(out.CSV, doc); err != nil {
		return Artifacts{}, fmt.Errorf("write forecast csv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Artifacts{}, err
	}
	// A single point has no drawable range.
	if len(doc.Result.Rows) > 1 {
		if err := r.writeForecastPNG(out.PNG, doc); err != nil {
			return Artifacts{}, fmt.Errorf("write forecast chart: %w", err)
		}
	} else {
		out.PNG = ""
	}
	if err := r.writeSummary(out.Summary, doc); err != nil {
		return Artifacts{}, fmt.Errorf("write summary: %w", err)
	}
	return out, nil
}

func writeForecastCSV(path string, doc Document) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"date", "ticker", "actual_close", "predicted_close"}); err != nil {
		return err
	}

	for _, row := range doc.Result.Rows {
		record := []string{
			row.Date.UTC().Format(time.DateOnly),
			doc.Ticker,
			strconv.FormatFloat(row.Actual, 'f', 4, 64),
			strconv.FormatFloat(row.Predicted, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (r *FileRenderer) writeForecastPNG(path string, doc Document) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	rows := doc.Result.Rows
	x := make([]time.Time, len(rows))
	actual := make([]float64, len(rows))
	predicted := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.Date
		actual[i] = row.Actual
		predicted[i] = row.Predicted
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("%s actual vs predicted close (%s)", doc.Ticker, doc.Result.Mode),
		Width:  r.opts.ChartWidth,
		Height: r.opts.ChartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Close",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Actual",
				XValues: x,
				YValues: actual,
			},
			chart.TimeSeries{
				Name:    "Predicted",
				XValues: x,
				YValues: predicted,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func (r *FileRenderer) writeSummary(path string, doc Document) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSummary(file, doc, r.opts.SummaryRows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func fileStem(ticker string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ticker)
	if stem == "" {
		return "unknown"
	}
	return stem
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var _ Renderer = (*FileRenderer)(nil)

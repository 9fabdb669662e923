package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder instruments forecast runs with Prometheus collectors.
type Recorder struct {
	registry      *prometheus.Registry
	forecasts     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	epochs        prometheus.Histogram
	rmse          *prometheus.GaugeVec
	prediction    *prometheus.GaugeVec
	batchDuration prometheus.Histogram
	lastBatch     prometheus.Gauge
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketeye_forecasts_total",
				Help: "Forecast runs by outcome",
			},
			[]string{"ticker", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketeye_forecast_duration_seconds",
				Help:    "Wall time of a single forecast run",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"mode"},
		),
		epochs: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketeye_training_epochs",
				Help:    "Epochs run before training stopped",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2000},
			},
		),
		rmse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketeye_forecast_rmse",
				Help: "Holdout RMSE of the latest forecast",
			},
			[]string{"ticker"},
		),
		prediction: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketeye_latest_prediction",
				Help: "Predicted close of the most recent holdout day",
			},
			[]string{"ticker"},
		),
		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketeye_batch_duration_seconds",
				Help:    "Wall time of a full batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		lastBatch: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketeye_last_batch_timestamp_seconds",
				Help: "Unix time the last batch finished",
			},
		),
	}
}

// RecordForecast records a successful forecast.
func (r *Recorder) RecordForecast(ticker, mode string, seconds float64, epochs int, rmse, predicted float64) {
	if r == nil {
		return
	}
	r.forecasts.WithLabelValues(ticker, "ok").Inc()
	r.duration.WithLabelValues(mode).Observe(seconds)
	r.epochs.Observe(float64(epochs))
	r.rmse.WithLabelValues(ticker).Set(rmse)
	r.prediction.WithLabelValues(ticker).Set(predicted)
}

// RecordFailure records a forecast that ended in error; kind labels the cause.
func (r *Recorder) RecordFailure(ticker, kind string) {
	if r == nil {
		return
	}
	r.forecasts.WithLabelValues(ticker, kind).Inc()
}

// RecordBatch records the duration and completion time of a batch.
func (r *Recorder) RecordBatch(seconds float64, finishedUnix int64) {
	if r == nil {
		return
	}
	r.batchDuration.Observe(seconds)
	r.lastBatch.Set(float64(finishedUnix))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

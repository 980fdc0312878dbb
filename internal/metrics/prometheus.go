// Package metrics publishes run results to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"math"
	"strconv"

	"github.com/Alias1177/RegimeForecast/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name used for forecast runs
const DefaultJob = "regime_forecast"

// Recorder holds the gauges for one process run on a private registry
type Recorder struct {
	registry *prometheus.Registry
	url      string
	job      string

	mae           *prometheus.GaugeVec
	rmse          *prometheus.GaugeVec
	mape          *prometheus.GaugeVec
	samples       *prometheus.GaugeVec
	excludedZero  *prometheus.GaugeVec
	lastClose     *prometheus.GaugeVec
	forecastPrice *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// New creates a recorder that pushes to the Pushgateway at url
func New(url, job string) *Recorder {
	if job == "" {
		job = DefaultJob
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "regime_forecast",
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Recorder{
		registry:      reg,
		url:           url,
		job:           job,
		mae:           gauge("mae", "Walk-forward mean absolute error", "symbol"),
		rmse:          gauge("rmse", "Walk-forward root mean squared error", "symbol"),
		mape:          gauge("mape_percent", "Walk-forward mean absolute percentage error", "symbol"),
		samples:       gauge("evaluation_samples", "Number of walk-forward predictions", "symbol"),
		excludedZero:  gauge("mape_excluded_rows", "Rows excluded from MAPE because the actual price was zero", "symbol"),
		lastClose:     gauge("last_close", "Last observed closing price", "symbol"),
		forecastPrice: gauge("forecast_price", "Recursive forecast price by horizon day", "symbol", "day"),
		lastRun:       gauge("last_run_timestamp_seconds", "Unix time of the last completed run", "symbol"),
	}
}

// Record sets every gauge from res. An undefined MAPE is not exported.
func (r *Recorder) Record(res *pipeline.Result) {
	sym := res.Symbol
	m := res.Metrics

	r.mae.WithLabelValues(sym).Set(m.MAE)
	r.rmse.WithLabelValues(sym).Set(m.RMSE)
	if !math.IsNaN(m.MAPE) {
		r.mape.WithLabelValues(sym).Set(m.MAPE)
	}
	r.samples.WithLabelValues(sym).Set(float64(m.Samples))
	r.excludedZero.WithLabelValues(sym).Set(float64(m.ExcludedZero))
	if n := len(res.Labeled); n > 0 {
		r.lastClose.WithLabelValues(sym).Set(res.Labeled[n-1].Close)
	}
	for i, f := range res.Forecast {
		r.forecastPrice.WithLabelValues(sym, strconv.Itoa(i+1)).Set(f.PredictedPrice)
	}
	r.lastRun.WithLabelValues(sym).Set(float64(res.RunAt.Unix()))
}

// Name implements pipeline.Reporter
func (r *Recorder) Name() string {
	return "pushgateway"
}

// Report records res and pushes the registry, replacing the job's previous metrics
func (r *Recorder) Report(ctx context.Context, res *pipeline.Result) error {
	r.Record(res)
	return push.New(r.url, r.job).
		Gatherer(r.registry).
		PushContext(ctx)
}

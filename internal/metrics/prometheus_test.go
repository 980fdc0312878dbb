package metrics

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *pipeline.Result {
	day := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		Symbol: "BTC-USD",
		RunAt:  day.Add(26 * time.Hour),
		Labeled: []model.LabeledPrice{
			{Date: day.AddDate(0, 0, -1), Close: 67000, HiddenState: 1},
			{Date: day, Close: 68000, HiddenState: 0},
		},
		Metrics: model.Metrics{Samples: 30, MAE: 812.5, RMSE: 1020.25, MAPE: 1.2, ExcludedZero: 0},
		Forecast: []model.ForecastRecord{
			{Date: day.AddDate(0, 0, 1), PredictedPrice: 68100},
			{Date: day.AddDate(0, 0, 2), PredictedPrice: 68250},
		},
	}
}

func TestRecord(t *testing.T) {
	r := New("http://unused", "")
	res := sampleResult()
	r.Record(res)

	assert.Equal(t, 812.5, testutil.ToFloat64(r.mae.WithLabelValues("BTC-USD")))
	assert.Equal(t, 1020.25, testutil.ToFloat64(r.rmse.WithLabelValues("BTC-USD")))
	assert.Equal(t, 1.2, testutil.ToFloat64(r.mape.WithLabelValues("BTC-USD")))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.samples.WithLabelValues("BTC-USD")))
	assert.Equal(t, 68000.0, testutil.ToFloat64(r.lastClose.WithLabelValues("BTC-USD")))
	assert.Equal(t, 68100.0, testutil.ToFloat64(r.forecastPrice.WithLabelValues("BTC-USD", "1")))
	assert.Equal(t, 68250.0, testutil.ToFloat64(r.forecastPrice.WithLabelValues("BTC-USD", "2")))
	assert.Equal(t, float64(res.RunAt.Unix()), testutil.ToFloat64(r.lastRun.WithLabelValues("BTC-USD")))
}

func TestRecordUndefinedMAPE(t *testing.T) {
	r := New("http://unused", "")
	res := sampleResult()
	res.Metrics.MAPE = math.NaN()
	res.Metrics.ExcludedZero = 30
	r.Record(res)

	assert.Equal(t, 0, testutil.CollectAndCount(r.mape))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.excludedZero.WithLabelValues("BTC-USD")))
}

func TestReportPushes(t *testing.T) {
	var (
		method, path string
		body         []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method, path = req.Method, req.URL.Path
		body, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New(server.URL, "btc")
	assert.Equal(t, "pushgateway", r.Name())
	require.NoError(t, r.Report(context.Background(), sampleResult()))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/btc", path)
	assert.NotEmpty(t, body)
}

func TestReportGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := New(server.URL, "")
	assert.Error(t, r.Report(context.Background(), sampleResult()))
}

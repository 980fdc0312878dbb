package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartPayload = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "BTC-USD", "currency": "USD", "exchangeName": "CCC", "timezone": "UTC"},
      "timestamp": [1717200000, 1717286400, 1717372800],
      "indicators": {
        "quote": [{
          "open":   [67000.1, 67500.2, null],
          "high":   [68000.0, 68100.0, null],
          "low":    [66500.0, 67000.0, null],
          "close":  [67600.5, null, 68900.25],
          "volume": [1000, 2000, null]
        }]
      }
    }],
    "error": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{BaseURL: srv.URL, RequestTimeout: time.Second, RequestsPerSec: 100})
}

func TestFetchDaily(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/BTC-USD", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1717200000", r.URL.Query().Get("period1"))
		assert.Equal(t, "1717459200", r.URL.Query().Get("period2"))
		_, _ = w.Write([]byte(chartPayload))
	})

	candles, err := client.FetchDaily(context.Background(), "BTC-USD", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 2, "null close rows are dropped")

	assert.Equal(t, start, candles[0].Date)
	assert.Equal(t, 67600.5, candles[0].Close)
	assert.Equal(t, int64(1000), candles[0].Volume)
	assert.Equal(t, start.AddDate(0, 0, 2), candles[1].Date)
	assert.Equal(t, 68900.25, candles[1].Close)
	assert.Zero(t, candles[1].Open)
}

func TestFetchDailyEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"indicators":{"quote":[{}]}}],"error":null}}`))
	})

	candles, err := client.FetchDaily(context.Background(), "BTC-USD", time.Now().AddDate(0, 0, -1), time.Now())
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFetchDailyErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{name: "chart error", status: 200, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{name: "not json", status: 200, body: `<html>`, malformed: true},
		{name: "misaligned columns", status: 200, body: `{"chart":{"result":[{"timestamp":[1,2],"indicators":{"quote":[{"close":[1.0]}]}}]}}`, malformed: true},
		{name: "http failure", status: 404, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.FetchDaily(context.Background(), "BTC-USD", time.Now().AddDate(0, 0, -1), time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedResponse))
			assert.Equal(t, tt.malformed, errors.Is(err, market.ErrMalformedData))
		})
	}
}

func TestFetchMisalignedColumnsThroughMarket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1717200000,1717286400],"indicators":{"quote":[{"close":[67600.5]}]}}],"error":null}}`))
	})

	_, err := market.Fetch(context.Background(), client, "BTC-USD", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrMalformedData)
	assert.NotErrorIs(t, err, market.ErrNoData)
}

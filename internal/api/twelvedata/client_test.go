package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "BTC/USD", q.Get("symbol"))
		assert.Equal(t, "1day", q.Get("interval"))
		assert.Equal(t, "2024-06-01", q.Get("start_date"))
		assert.Equal(t, "2024-06-02", q.Get("end_date"))
		assert.Equal(t, "key", q.Get("apikey"))
		_, _ = w.Write([]byte(`{
			"meta": {"symbol": "BTC/USD", "interval": "1day"},
			"values": [
				{"datetime": "2024-06-02", "open": "2", "high": "3", "low": "1", "close": "2.5"},
				{"datetime": "2024-06-01", "open": "1", "high": "2", "low": "0.5", "close": "1.5"}
			],
			"status": "ok"
		}`))
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{APIKey: "key", BaseURL: srv.URL, RequestsPerSec: 100})
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	candles, err := client.FetchDaily(context.Background(), "BTC-USD", start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, start, candles[0].Date)
	assert.Equal(t, 1.5, candles[0].Close)
	assert.Equal(t, 2.5, candles[1].Close)
}

func TestFetchDailyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":401,"message":"invalid api key","status":"error"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{APIKey: "bad", BaseURL: srv.URL, RequestsPerSec: 100})
	_, err := client.FetchDaily(context.Background(), "BTC/USD", time.Now().AddDate(0, 0, -2), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestFetchDailyMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"bad datetime", `{"values":[{"datetime":"06/01/2024","open":"1","high":"2","low":"0.5","close":"1.5"}],"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(ClientOptions{APIKey: "key", BaseURL: srv.URL, RequestsPerSec: 100})
			_, err := market.Fetch(context.Background(), client, "BTC-USD", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 60)
			assert.ErrorIs(t, err, market.ErrMalformedData)
		})
	}
}

func TestToTwelveSymbol(t *testing.T) {
	assert.Equal(t, "BTC/USD", toTwelveSymbol("BTC-USD"))
	assert.Equal(t, "ETH/EUR", toTwelveSymbol("ETH/EUR"))
}

// Package yahoo fetches daily OHLC history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/Alias1177/RegimeForecast/internal/model"
	httpClient "github.com/Alias1177/RegimeForecast/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// ErrMalformedResponse is returned when the chart payload does not have the expected shape.
// It wraps market.ErrMalformedData.
var ErrMalformedResponse = fmt.Errorf("malformed chart response: %w", market.ErrMalformedData)

// Client is the Yahoo Finance chart API client
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Yahoo client
type ClientOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec int
	MaxRetries     int
}

// NewClient creates a new Yahoo Finance client
func NewClient(options ClientOptions) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
			MaxRetries:     options.MaxRetries,
		}),
		logger: log.With().Str("component", "yahoo_client").Logger(),
	}
}

// FetchDaily returns daily candles for symbol in the half-open range [start, end).
// Rows whose close is null are dropped; the remaining columns are flattened into candles.
func (c *Client) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")
	q.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	c.logger.Debug().Str("url", endpoint).Msg("Fetching daily chart")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; regime-forecast/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data model.YahooChartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return flatten(data)
}

func flatten(data model.YahooChartResponse) ([]model.Candle, error) {
	if data.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error %s: %s", data.Chart.Error.Code, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return nil, nil
	}

	result := data.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote block", ErrMalformedResponse)
	}

	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Close) != n {
		return nil, fmt.Errorf("%w: %d timestamps but %d closes", ErrMalformedResponse, n, len(quote.Close))
	}

	candles := make([]model.Candle, 0, n)
	for i, ts := range result.Timestamp {
		if quote.Close[i] == nil {
			continue
		}
		candles = append(candles, model.Candle{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   valueAt(quote.Open, i),
			High:   valueAt(quote.High, i),
			Low:    valueAt(quote.Low, i),
			Close:  *quote.Close[i],
			Volume: volumeAt(quote.Volume, i),
		})
	}

	return candles, nil
}

func valueAt(col []*float64, i int) float64 {
	if i < len(col) && col[i] != nil {
		return *col[i]
	}
	return 0
}

func volumeAt(col []*int64, i int) int64 {
	if i < len(col) && col[i] != nil {
		return *col[i]
	}
	return 0
}

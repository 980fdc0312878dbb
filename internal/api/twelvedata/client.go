package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/Alias1177/RegimeForecast/internal/model"
	httpClient "github.com/Alias1177/RegimeForecast/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	// Apply defaults if not set
	if httpOpts.Timeout == 0 {
		httpOpts.Timeout = 30 * time.Second
	}
	if httpOpts.RequestsPerSec == 0 {
		httpOpts.RequestsPerSec = 5
	}
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// FetchDaily fetches daily candles in [start, end) from the time_series endpoint
func (c *Client) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", toTwelveSymbol(symbol))
	q.Set("interval", "1day")
	q.Set("start_date", start.UTC().Format(model.DateLayout))
	// end_date is inclusive on Twelve Data
	q.Set("end_date", end.UTC().AddDate(0, 0, -1).Format(model.DateLayout))
	q.Set("order", "ASC")
	q.Set("timezone", "UTC")
	q.Set("apikey", c.apiKey)
	endpoint := fmt.Sprintf("%s/time_series?%s", c.baseURL, q.Encode())

	c.logger.Debug().Str("symbol", symbol).Time("start", start).Time("end", end).Msg("Fetching candles")

	// Create a new request with context
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if strings.Contains(string(body), `"status":"error"`) {
		c.logger.Error().Str("response", string(body)).Msg("Twelve Data API error")
		return nil, fmt.Errorf("Twelve Data API error: %s", string(body))
	}

	var data model.TwelveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("%w: parsing JSON: %v", market.ErrMalformedData, err)
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	candles := make([]model.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		date, err := time.Parse(model.DateLayout, v.Datetime[:min(len(v.Datetime), len(model.DateLayout))])
		if err != nil {
			return nil, fmt.Errorf("%w: parsing datetime %q: %v", market.ErrMalformedData, v.Datetime, err)
		}
		candles = append(candles, model.Candle{
			Date:   date,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// toTwelveSymbol converts Yahoo-style pairs (BTC-USD) to Twelve Data pairs (BTC/USD)
func toTwelveSymbol(symbol string) string {
	if strings.Contains(symbol, "/") {
		return symbol
	}
	return strings.Replace(symbol, "-", "/", 1)
}

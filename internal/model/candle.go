package model

import "time"

// DateLayout is the calendar-day format used in every persisted file.
const DateLayout = "2006-01-02"

// Candle represents a single daily price candle
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// TwelveResponse represents the API response from Twelve Data
type TwelveResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   int64   `json:"volume,string,omitempty"`
	} `json:"values"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// YahooChartResponse mirrors the nested column layout of the Yahoo Finance chart API.
// Every OHLCV field is a column array aligned with Timestamp; missing values are null.
type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol       string `json:"symbol"`
				Currency     string `json:"currency"`
				ExchangeName string `json:"exchangeName"`
				Timezone     string `json:"timezone"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Package market acquires the daily closing-price history the pipeline runs on.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoData is returned when the provider yields no usable rows
	ErrNoData = errors.New("market data provider returned no data")
	// ErrMalformedData is returned when provider rows cannot be interpreted
	ErrMalformedData = errors.New("malformed market data")
)

// Source is a market-data provider able to return daily candles in [start, end)
type Source interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Candle, error)
}

// Fetch queries src once for the trailing window of days ending at now and
// returns a normalized, non-empty series.
func Fetch(ctx context.Context, src Source, symbol string, now time.Time, days int) ([]model.Candle, error) {
	end := now.UTC()
	start := end.AddDate(0, 0, -days)

	log.Debug().Str("component", "market").Str("symbol", symbol).
		Time("start", start).Time("end", end).Msg("Downloading price history")

	raw, err := src.FetchDaily(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	candles, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", symbol, err)
	}
	return candles, nil
}

// Normalize orders candles chronologically, collapses duplicate dates (the
// later row wins) and drops rows without a finite close.
func Normalize(raw []model.Candle) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(raw))
	for _, c := range raw {
		if c.Date.IsZero() {
			return nil, fmt.Errorf("%w: row without date", ErrMalformedData)
		}
		if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		c.Date = day(c.Date)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	deduped := out[:0]
	for _, c := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(c.Date) {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	if len(deduped) == 0 {
		return nil, ErrNoData
	}
	return deduped, nil
}

// Closes extracts the closing-price column
func Closes(candles []model.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/scaler"
	"github.com/Alias1177/RegimeForecast/internal/sequence"
	"gonum.org/v1/gonum/mat"
)

// Forecast predicts horizon days past lastDate starting from the last lookback
// raw rows of features. Each prediction is appended to the window and the
// oldest row dropped.
//
// The hidden state of the last real row is held constant for every appended
// row. The regime model is not re-run on predicted prices, so regime changes
// inside the horizon are not modeled.
func Forecast(ctx context.Context, predictor sequence.Model, s scaler.Scaler, features *mat.Dense, lastDate time.Time, lookback, horizon int) ([]model.ForecastRecord, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if horizon <= 0 {
		return nil, nil
	}
	n, c := features.Dims()
	if c != NumFeatures {
		return nil, fmt.Errorf("features have %d columns, want %d", c, NumFeatures)
	}
	if n < lookback {
		return nil, fmt.Errorf("%w: %d rows, lookback %d", ErrInsufficientHistory, n, lookback)
	}

	window := mat.DenseCopyOf(features.Slice(n-lookback, n, 0, NumFeatures))
	label := window.At(lookback-1, 1)

	records := make([]model.ForecastRecord, 0, horizon)
	for i := 0; i < horizon; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scaled, err := s.Transform(window)
		if err != nil {
			return nil, fmt.Errorf("scale window at step %d: %w", i, err)
		}
		y, err := predictor.Predict(ctx, scaled)
		if err != nil {
			return nil, fmt.Errorf("predict at step %d: %w", i, err)
		}
		price, err := scaler.InversePriceOnly(s, y)
		if err != nil {
			return nil, fmt.Errorf("inverse transform at step %d: %w", i, err)
		}

		records = append(records, model.ForecastRecord{
			Date:           lastDate.AddDate(0, 0, i+1),
			PredictedPrice: price,
		})
		window = slide(window, price, label)
	}
	return records, nil
}

// slide drops the first row of window and appends (price, label)
func slide(window *mat.Dense, price, label float64) *mat.Dense {
	r, c := window.Dims()
	next := mat.NewDense(r, c, nil)
	for i := 1; i < r; i++ {
		next.SetRow(i-1, window.RawRowView(i))
	}
	next.Set(r-1, 0, price)
	next.Set(r-1, 1, label)
	return next
}

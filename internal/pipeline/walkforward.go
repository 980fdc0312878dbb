// Package pipeline wires the regime labeler, scaler and sequence model into
// the walk-forward evaluation and the recursive forecast.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/scaler"
	"github.com/Alias1177/RegimeForecast/internal/sequence"
	"gonum.org/v1/gonum/mat"
)

// NumFeatures is the width of the feature matrix: price and hidden state
const NumFeatures = 2

// ErrInsufficientHistory is returned when fewer rows than the lookback are available
var ErrInsufficientHistory = errors.New("insufficient history for lookback window")

// BuildFeatures returns the N x 2 matrix of (close, hidden_state)
func BuildFeatures(labeled []model.LabeledPrice) *mat.Dense {
	if len(labeled) == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, len(labeled)*NumFeatures)
	for _, p := range labeled {
		data = append(data, p.Close, float64(p.HiddenState))
	}
	return mat.NewDense(len(labeled), NumFeatures, data)
}

// WalkForward predicts every day t in [lookback, N) from the scaled window
// [t-lookback, t) and pairs the prediction with the actual close at t.
// It yields exactly N-lookback records. The first failing prediction aborts
// the run; nothing is retried.
func WalkForward(ctx context.Context, predictor sequence.Model, s scaler.Scaler, labeled []model.LabeledPrice, scaled *mat.Dense, lookback int) ([]model.EvaluationRecord, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	n := len(labeled)
	if n < lookback {
		return nil, fmt.Errorf("%w: %d rows, lookback %d", ErrInsufficientHistory, n, lookback)
	}
	if r, c := scaled.Dims(); r != n || c != NumFeatures {
		return nil, fmt.Errorf("scaled features are %dx%d, want %dx%d", r, c, n, NumFeatures)
	}

	records := make([]model.EvaluationRecord, 0, n-lookback)
	for t := lookback; t < n; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window := scaled.Slice(t-lookback, t, 0, NumFeatures)
		y, err := predictor.Predict(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("predict at index %d (%s): %w", t, labeled[t].Date.Format(model.DateLayout), err)
		}
		price, err := scaler.InversePriceOnly(s, y)
		if err != nil {
			return nil, fmt.Errorf("inverse transform at index %d: %w", t, err)
		}

		records = append(records, model.EvaluationRecord{
			Date:      labeled[t].Date,
			Actual:    labeled[t].Close,
			Predicted: price,
		})
	}
	return records, nil
}

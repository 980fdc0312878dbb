// Package regime assigns latent market-regime labels to a price series.
package regime

import (
	"errors"
	"fmt"

	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/Alias1177/RegimeForecast/internal/model"
	"gonum.org/v1/gonum/mat"
)

// Model is a pretrained regime model exposing a single batch-label entry point
type Model interface {
	Predict(obs *mat.Dense) ([]int, error)
}

// Label runs m once over the whole closing-price series and attaches one
// hidden state to each candle.
//
// Labels are decoded in batch, so the state at day t is conditioned on prices
// after t as well. The same labels are later fed to the sequence model as a
// feature; this look-ahead is a known limitation of the approach and is kept
// as is.
//
// When the model returns fewer labels than rows (warm-up), the labels are
// right-aligned and the oldest candles are dropped so that both sequences end
// on the same day.
func Label(m Model, candles []model.Candle) ([]model.LabeledPrice, error) {
	if len(candles) == 0 {
		return nil, errors.New("no prices to label")
	}

	closes := market.Closes(candles)
	obs := mat.NewDense(len(closes), 1, closes)

	states, err := m.Predict(obs)
	if err != nil {
		return nil, fmt.Errorf("regime inference: %w", err)
	}
	if len(states) > len(candles) {
		return nil, fmt.Errorf("regime model returned %d labels for %d prices", len(states), len(candles))
	}
	if len(states) == 0 {
		return nil, errors.New("regime model returned no labels")
	}

	offset := len(candles) - len(states)
	labeled := make([]model.LabeledPrice, len(states))
	for i, s := range states {
		c := candles[offset+i]
		labeled[i] = model.LabeledPrice{
			Date:        c.Date,
			Close:       c.Close,
			HiddenState: s,
		}
	}
	return labeled, nil
}

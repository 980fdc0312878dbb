// Package sequence runs the pretrained next-day price model.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Alias1177/RegimeForecast/internal/artifact"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when an input window does not match the model's input shape
var ErrShape = errors.New("input window shape mismatch")

// Model predicts one scaled value from a lookback x features window.
// The window is the (1, lookback, features) tensor with the batch axis implied.
type Model interface {
	Predict(ctx context.Context, window mat.Matrix) (float64, error)
}

type networkArtifact struct {
	Lookback  int             `json:"lookback"`
	NFeatures int             `json:"n_features"`
	Layers    []layerArtifact `json:"layers"`
}

type layerArtifact struct {
	Type                string      `json:"type"`
	Name                string      `json:"name,omitempty"`
	Units               int         `json:"units,omitempty"`
	Activation          string      `json:"activation,omitempty"`
	RecurrentActivation string      `json:"recurrent_activation,omitempty"`
	ReturnSequences     bool        `json:"return_sequences,omitempty"`
	Rate                float64     `json:"rate,omitempty"`
	Kernel              [][]float64 `json:"kernel,omitempty"`
	RecurrentKernel     [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias                []float64   `json:"bias,omitempty"`
}

// layer maps a (steps x in) sequence to a (steps' x out) sequence
type layer interface {
	forward(x *mat.Dense) *mat.Dense
	// outShape returns the output shape for an input of the given shape
	outShape(steps, in int) (int, int, error)
}

// Network is a Keras Sequential model (LSTM, Dropout, Dense) evaluated in inference mode
type Network struct {
	lookback  int
	nFeatures int
	layers    []layer
}

// LoadNetwork reads a model export from path
func LoadNetwork(path string) (*Network, error) {
	var a networkArtifact
	if err := artifact.LoadJSON("sequence model", path, &a); err != nil {
		return nil, err
	}
	n, err := newNetwork(a)
	if err != nil {
		return nil, fmt.Errorf("sequence model artifact %q: %w", path, err)
	}
	return n, nil
}

func newNetwork(a networkArtifact) (*Network, error) {
	if a.Lookback <= 0 || a.NFeatures <= 0 {
		return nil, fmt.Errorf("invalid input shape (%d, %d)", a.Lookback, a.NFeatures)
	}
	if len(a.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	n := &Network{lookback: a.Lookback, nFeatures: a.NFeatures}
	steps, width := a.Lookback, a.NFeatures
	for i, la := range a.Layers {
		l, err := buildLayer(la)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, la.Type, err)
		}
		if steps, width, err = l.outShape(steps, width); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, la.Type, err)
		}
		n.layers = append(n.layers, l)
	}
	if steps != 1 || width != 1 {
		return nil, fmt.Errorf("model output shape is (%d, %d), want a single scalar", steps, width)
	}
	return n, nil
}

func buildLayer(a layerArtifact) (layer, error) {
	switch a.Type {
	case "lstm":
		return newLSTM(a)
	case "dense":
		return newDense(a)
	case "dropout":
		return dropout{}, nil
	default:
		return nil, fmt.Errorf("unsupported layer type %q", a.Type)
	}
}

// InputShape returns (lookback, features)
func (n *Network) InputShape() (int, int) {
	return n.lookback, n.nFeatures
}

// Predict runs a forward pass over window
func (n *Network) Predict(_ context.Context, window mat.Matrix) (float64, error) {
	r, c := window.Dims()
	if r != n.lookback || c != n.nFeatures {
		return 0, fmt.Errorf("%w: got (%d, %d), want (%d, %d)", ErrShape, r, c, n.lookback, n.nFeatures)
	}

	x := mat.DenseCopyOf(window)
	for _, l := range n.layers {
		x = l.forward(x)
	}
	y := x.At(0, 0)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, errors.New("model produced a non-finite prediction")
	}
	return y, nil
}

type dropout struct{}

func (dropout) forward(x *mat.Dense) *mat.Dense { return x }

func (dropout) outShape(steps, in int) (int, int, error) { return steps, in, nil }

func matrixFrom(rows [][]float64, wantRows, wantCols int, name string) (*mat.Dense, error) {
	if len(rows) != wantRows {
		return nil, fmt.Errorf("%s has %d rows, want %d", name, len(rows), wantRows)
	}
	data := make([]float64, 0, wantRows*wantCols)
	for i, row := range rows {
		if len(row) != wantCols {
			return nil, fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(row), wantCols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(wantRows, wantCols, data), nil
}

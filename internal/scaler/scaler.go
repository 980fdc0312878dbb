// Package scaler applies the pretrained per-column feature normalization.
package scaler

import (
	"errors"
	"fmt"

	"github.com/Alias1177/RegimeForecast/internal/artifact"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFeatureMismatch is returned when a matrix or scaler disagrees with the expected column count
	ErrFeatureMismatch = errors.New("feature count mismatch")
	// ErrNotSeparable is returned by InversePriceOnly for scalers whose inverse mixes columns
	ErrNotSeparable = errors.New("scaler inverse is not separable per column")
)

// Scaler is a fitted feature transform and its inverse
type Scaler interface {
	NumFeatures() int
	Transform(x mat.Matrix) (*mat.Dense, error)
	InverseTransform(x mat.Matrix) (*mat.Dense, error)
	// Separable reports whether column j of the inverse depends on column j only
	Separable() bool
}

// scalerArtifact covers the attributes exported from sklearn MinMaxScaler and StandardScaler
type scalerArtifact struct {
	Kind         string     `json:"kind"`
	NFeaturesIn  int        `json:"n_features_in"`
	FeatureRange [2]float64 `json:"feature_range"`
	DataMin      []float64  `json:"data_min"`
	DataMax      []float64  `json:"data_max"`
	Mean         []float64  `json:"mean"`
	Scale        []float64  `json:"scale"`
}

// Load reads a fitted scaler export from path. A missing file yields an
// *artifact.NotFoundError.
func Load(path string) (Scaler, error) {
	var a scalerArtifact
	if err := artifact.LoadJSON("scaler", path, &a); err != nil {
		return nil, err
	}

	var (
		s   Scaler
		err error
	)
	switch a.Kind {
	case "minmax", "":
		fr := a.FeatureRange
		if fr == [2]float64{} {
			fr = [2]float64{0, 1}
		}
		s, err = NewMinMax(a.DataMin, a.DataMax, fr)
	case "standard":
		s, err = NewStandard(a.Mean, a.Scale)
	default:
		err = fmt.Errorf("unknown scaler kind %q", a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("scaler artifact %q: %w", path, err)
	}

	if a.NFeaturesIn != 0 && a.NFeaturesIn != s.NumFeatures() {
		return nil, fmt.Errorf("scaler artifact %q: n_features_in=%d but parameters cover %d: %w",
			path, a.NFeaturesIn, s.NumFeatures(), ErrFeatureMismatch)
	}
	return s, nil
}

// RequireFeatures fails with ErrFeatureMismatch unless s expects exactly n columns
func RequireFeatures(s Scaler, n int) error {
	if s.NumFeatures() != n {
		return fmt.Errorf("scaler expects %d columns, feature matrix has %d: %w", s.NumFeatures(), n, ErrFeatureMismatch)
	}
	return nil
}

// InversePriceOnly recovers the price coordinate from a single scaled model
// output. The output is padded with zero placeholders for the remaining
// columns, inverse transformed, and only column 0 is kept.
//
// Precondition: s.Separable(). The placeholder values would otherwise leak
// into the recovered price, so non-separable scalers are rejected.
func InversePriceOnly(s Scaler, scaledPrice float64) (float64, error) {
	if !s.Separable() {
		return 0, ErrNotSeparable
	}
	row := mat.NewDense(1, s.NumFeatures(), nil)
	row.Set(0, 0, scaledPrice)

	inv, err := s.InverseTransform(row)
	if err != nil {
		return 0, err
	}
	return inv.At(0, 0), nil
}

// affine is the shared per-column transform x' = x*scale + offset
type affine struct {
	scale  []float64
	offset []float64
}

func (a affine) NumFeatures() int { return len(a.scale) }

func (a affine) Separable() bool { return true }

func (a affine) Transform(x mat.Matrix) (*mat.Dense, error) {
	return a.apply(x, func(v float64, j int) float64 { return v*a.scale[j] + a.offset[j] })
}

func (a affine) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	return a.apply(x, func(v float64, j int) float64 { return (v - a.offset[j]) / a.scale[j] })
}

func (a affine) apply(x mat.Matrix, fn func(v float64, j int) float64) (*mat.Dense, error) {
	r, c := x.Dims()
	if c != len(a.scale) {
		return nil, fmt.Errorf("matrix has %d columns, scaler expects %d: %w", c, len(a.scale), ErrFeatureMismatch)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 { return fn(v, j) }, x)
	return out, nil
}

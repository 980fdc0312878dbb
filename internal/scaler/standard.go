package scaler

import "fmt"

// Standard centers each column on its mean and divides by its scale
type Standard struct {
	affine
}

// NewStandard builds the scaler from fitted means and scales (standard deviations).
// A zero scale is treated as one, matching sklearn.
func NewStandard(mean, scale []float64) (*Standard, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("mean has %d values, scale has %d", len(mean), len(scale))
	}

	n := len(mean)
	a := affine{scale: make([]float64, n), offset: make([]float64, n)}
	for j := 0; j < n; j++ {
		s := scale[j]
		if s == 0 {
			s = 1
		}
		if s < 0 {
			return nil, fmt.Errorf("column %d: negative scale", j)
		}
		a.scale[j] = 1 / s
		a.offset[j] = -mean[j] / s
	}
	return &Standard{affine: a}, nil
}

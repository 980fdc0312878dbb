package scaler

import (
	"errors"
	"fmt"
)

// MinMax maps every column linearly from [data_min, data_max] onto the feature range
type MinMax struct {
	affine
}

// NewMinMax builds the scaler from fitted column bounds. Constant columns
// (zero range) get a unit scale, matching sklearn.
func NewMinMax(dataMin, dataMax []float64, featureRange [2]float64) (*MinMax, error) {
	if len(dataMin) == 0 || len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("data_min has %d values, data_max has %d", len(dataMin), len(dataMax))
	}
	if featureRange[0] >= featureRange[1] {
		return nil, errors.New("feature_range minimum must be smaller than maximum")
	}

	n := len(dataMin)
	a := affine{scale: make([]float64, n), offset: make([]float64, n)}
	for j := 0; j < n; j++ {
		dataRange := dataMax[j] - dataMin[j]
		if dataRange < 0 {
			return nil, fmt.Errorf("column %d: data_max below data_min", j)
		}
		if dataRange == 0 {
			dataRange = 1
		}
		a.scale[j] = (featureRange[1] - featureRange[0]) / dataRange
		a.offset[j] = featureRange[0] - dataMin[j]*a.scale[j]
	}
	return &MinMax{affine: a}, nil
}

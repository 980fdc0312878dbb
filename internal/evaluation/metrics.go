// Package evaluation computes walk-forward error statistics.
package evaluation

import (
	"math"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Compute returns error metrics for paired actual and predicted prices.
// Only the common prefix is used if the slices differ in length.
//
// MAPE is in percent. Rows with a zero actual cannot enter the MAPE average;
// they are skipped and counted in ExcludedZero. If no row remains MAPE is NaN.
func Compute(actual, predicted []float64) model.Metrics {
	n := min(len(actual), len(predicted))
	m := model.Metrics{Samples: n}
	if n == 0 {
		m.MAE, m.RMSE, m.MAPE = math.NaN(), math.NaN(), math.NaN()
		return m
	}

	errs := make([]float64, n)
	floats.SubTo(errs, predicted[:n], actual[:n])

	abs := make([]float64, n)
	sq := make([]float64, n)
	var pct []float64
	for i, e := range errs {
		abs[i] = math.Abs(e)
		sq[i] = e * e
		if actual[i] == 0 {
			m.ExcludedZero++
			continue
		}
		pct = append(pct, math.Abs(e/actual[i]))
	}

	m.MAE = stat.Mean(abs, nil)
	m.RMSE = math.Sqrt(stat.Mean(sq, nil))
	m.MeanError, m.ErrorStdDev = stat.MeanStdDev(errs, nil)
	if n == 1 {
		m.ErrorStdDev = 0
	}

	m.MAPESamples = len(pct)
	if len(pct) == 0 {
		m.MAPE = math.NaN()
	} else {
		m.MAPE = stat.Mean(pct, nil) * 100
	}
	return m
}

// FromRecords computes metrics over walk-forward evaluation records
func FromRecords(records []model.EvaluationRecord) model.Metrics {
	actual := make([]float64, len(records))
	predicted := make([]float64, len(records))
	for i, r := range records {
		actual[i] = r.Actual
		predicted[i] = r.Predicted
	}
	return Compute(actual, predicted)
}

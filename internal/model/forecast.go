package model

import "time"

// LabeledPrice is a closing price together with the hidden regime state assigned to it
type LabeledPrice struct {
	Date        time.Time `json:"date"`
	Close       float64   `json:"close"`
	HiddenState int       `json:"hidden_state"`
}

// EvaluationRecord is one walk-forward comparison point
type EvaluationRecord struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
}

// ForecastRecord is one step of the recursive forecast
type ForecastRecord struct {
	Date           time.Time `json:"date"`
	PredictedPrice float64   `json:"predicted_price"`
}

// Metrics stores the aggregate walk-forward error statistics
type Metrics struct {
	Samples      int     `json:"samples"`
	MAE          float64 `json:"mae"`
	RMSE         float64 `json:"rmse"`
	MAPE         float64 `json:"mape"`          // percent, NaN when no non-zero actuals
	MAPESamples  int     `json:"mape_samples"`  // rows that entered the MAPE average
	ExcludedZero int     `json:"excluded_zero"` // rows dropped from MAPE because actual == 0
	MeanError    float64 `json:"mean_error"`    // predicted - actual, averaged
	ErrorStdDev  float64 `json:"error_std_dev"`
}

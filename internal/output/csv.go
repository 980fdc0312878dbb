// Package output writes the pipeline's CSV files. Existing files are overwritten.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Alias1177/RegimeForecast/internal/model"
)

var (
	labeledHeader    = []string{"date", "close", "hidden_state"}
	evaluationHeader = []string{"date", "actual", "predicted"}
	forecastHeader   = []string{"date", "predicted_price"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLabeled writes date,close,hidden_state rows to path
func WriteLabeled(path string, rows []model.LabeledPrice) error {
	return writeFile(path, func(w io.Writer) error { return EncodeLabeled(w, rows) })
}

// WriteEvaluation writes date,actual,predicted rows to path
func WriteEvaluation(path string, rows []model.EvaluationRecord) error {
	return writeFile(path, func(w io.Writer) error { return EncodeEvaluation(w, rows) })
}

// WriteForecast writes date,predicted_price rows to path
func WriteForecast(path string, rows []model.ForecastRecord) error {
	return writeFile(path, func(w io.Writer) error { return EncodeForecast(w, rows) })
}

// EncodeLabeled writes the labeled CSV, header included, to w
func EncodeLabeled(w io.Writer, rows []model.LabeledPrice) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, labeledHeader)
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format(model.DateLayout),
			formatFloat(r.Close),
			strconv.Itoa(r.HiddenState),
		})
	}
	return csv.NewWriter(w).WriteAll(records)
}

// EncodeEvaluation writes the walk-forward CSV, header included, to w
func EncodeEvaluation(w io.Writer, rows []model.EvaluationRecord) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, evaluationHeader)
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format(model.DateLayout),
			formatFloat(r.Actual),
			formatFloat(r.Predicted),
		})
	}
	return csv.NewWriter(w).WriteAll(records)
}

// EncodeForecast writes the forecast CSV, header included, to w
func EncodeForecast(w io.Writer, rows []model.ForecastRecord) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, forecastHeader)
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format(model.DateLayout),
			formatFloat(r.PredictedPrice),
		})
	}
	return csv.NewWriter(w).WriteAll(records)
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

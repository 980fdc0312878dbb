package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/config"
	"github.com/Alias1177/RegimeForecast/internal/evaluation"
	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/output"
	"github.com/Alias1177/RegimeForecast/internal/regime"
	"github.com/Alias1177/RegimeForecast/internal/scaler"
	"github.com/Alias1177/RegimeForecast/internal/sequence"
	"github.com/rs/zerolog/log"
)

// Pipeline stages, in execution order
const (
	StageFetch    = "fetch"
	StageLabel    = "label"
	StageScale    = "scale"
	StageEvaluate = "evaluate"
	StageForecast = "forecast"
	StageWrite    = "write"
)

// StageError reports which stage of a run failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Result holds everything produced by one run
type Result struct {
	Symbol     string
	RunAt      time.Time
	Labeled    []model.LabeledPrice
	Evaluation []model.EvaluationRecord
	Metrics    model.Metrics
	Forecast   []model.ForecastRecord
}

// Reporter publishes a finished run to an optional sink
type Reporter interface {
	Name() string
	Report(ctx context.Context, res *Result) error
}

// Runner executes the full pipeline against its collaborators
type Runner struct {
	Source market.Source
	Regime regime.Model
	Scaler scaler.Scaler
	Model  sequence.Model
	Config config.Config
}

// Run fetches history ending before now, labels it, evaluates the sequence
// model walk-forward and forecasts ahead. The three CSV outputs are written
// as their stage completes.
func (r *Runner) Run(ctx context.Context, now time.Time) (*Result, error) {
	logger := log.With().Str("component", "pipeline").Str("symbol", r.Config.Symbol).Logger()
	cfg := r.Config

	start := time.Now()
	candles, err := market.Fetch(ctx, r.Source, cfg.Symbol, now, cfg.HistoryDays)
	if err != nil {
		return nil, stageErr(StageFetch, err)
	}
	logger.Info().
		Int("candles", len(candles)).
		Str("first", candles[0].Date.Format(model.DateLayout)).
		Str("last", candles[len(candles)-1].Date.Format(model.DateLayout)).
		Dur("took", time.Since(start)).
		Msg("Fetched price history")

	labeled, err := regime.Label(r.Regime, candles)
	if err != nil {
		return nil, stageErr(StageLabel, err)
	}
	if dropped := len(candles) - len(labeled); dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("Regime model returned fewer labels, oldest prices truncated")
	}
	if err := output.WriteLabeled(cfg.LabeledCSV, labeled); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	logger.Info().Int("rows", len(labeled)).Str("file", cfg.LabeledCSV).Msg("Saved labeled prices")

	if len(labeled) < cfg.Lookback {
		return nil, stageErr(StageEvaluate, fmt.Errorf("%w: %d rows, lookback %d", ErrInsufficientHistory, len(labeled), cfg.Lookback))
	}

	if err := scaler.RequireFeatures(r.Scaler, NumFeatures); err != nil {
		return nil, stageErr(StageScale, err)
	}
	if !r.Scaler.Separable() {
		return nil, stageErr(StageScale, scaler.ErrNotSeparable)
	}
	features := BuildFeatures(labeled)
	scaled, err := r.Scaler.Transform(features)
	if err != nil {
		return nil, stageErr(StageScale, err)
	}

	start = time.Now()
	records, err := WalkForward(ctx, r.Model, r.Scaler, labeled, scaled, cfg.Lookback)
	if err != nil {
		return nil, stageErr(StageEvaluate, err)
	}
	metrics := evaluation.FromRecords(records)
	logger.Info().
		Int("samples", metrics.Samples).
		Float64("mae", metrics.MAE).
		Float64("rmse", metrics.RMSE).
		Float64("mape", metrics.MAPE).
		Dur("took", time.Since(start)).
		Msg("Walk-forward evaluation complete")
	if metrics.ExcludedZero > 0 {
		logger.Warn().Int("excluded", metrics.ExcludedZero).Msg("Zero actual prices excluded from MAPE")
	}
	if err := output.WriteEvaluation(cfg.OutCSV, records); err != nil {
		return nil, stageErr(StageWrite, err)
	}

	lastDate := labeled[len(labeled)-1].Date
	forecast, err := Forecast(ctx, r.Model, r.Scaler, features, lastDate, cfg.Lookback, cfg.ForecastDays)
	if err != nil {
		return nil, stageErr(StageForecast, err)
	}
	if err := output.WriteForecast(cfg.ForecastCSV, forecast); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	logger.Info().Int("days", len(forecast)).Str("file", cfg.ForecastCSV).Msg("Saved forecast")

	return &Result{
		Symbol:     cfg.Symbol,
		RunAt:      now,
		Labeled:    labeled,
		Evaluation: records,
		Metrics:    metrics,
		Forecast:   forecast,
	}, nil
}

// Publish hands res to every reporter. Sink failures are logged and do not
// fail the run; the number of failed reporters is returned.
func Publish(ctx context.Context, res *Result, reporters ...Reporter) int {
	failed := 0
	for _, rep := range reporters {
		if err := rep.Report(ctx, res); err != nil {
			failed++
			log.Error().Err(err).Str("reporter", rep.Name()).Msg("Failed to publish results")
			continue
		}
		log.Info().Str("reporter", rep.Name()).Msg("Published results")
	}
	return failed
}

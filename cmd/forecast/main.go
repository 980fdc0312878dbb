package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/RegimeForecast/internal/api/twelvedata"
	"github.com/Alias1177/RegimeForecast/internal/api/yahoo"
	"github.com/Alias1177/RegimeForecast/internal/artifact"
	"github.com/Alias1177/RegimeForecast/internal/config"
	"github.com/Alias1177/RegimeForecast/internal/database"
	"github.com/Alias1177/RegimeForecast/internal/market"
	"github.com/Alias1177/RegimeForecast/internal/metrics"
	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/notify"
	"github.com/Alias1177/RegimeForecast/internal/pipeline"
	"github.com/Alias1177/RegimeForecast/internal/regime"
	"github.com/Alias1177/RegimeForecast/internal/scaler"
	"github.com/Alias1177/RegimeForecast/internal/sequence"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	setupSignalHandling(cancel)

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting regime forecast")

	// 3. Print configuration
	printConfig(cfg)

	// 4. Load pretrained artifacts
	hmm, err := regime.LoadGaussianHMM(cfg.HMMPath)
	if err != nil {
		fatalArtifact(err, "regime model")
	}
	sc, err := scaler.Load(cfg.ScalerPath)
	if err != nil {
		fatalArtifact(err, "scaler")
	}
	predictor, err := loadSequenceModel(cfg)
	if err != nil {
		fatalArtifact(err, "sequence model")
	}

	// 5. Run the pipeline
	runner := &pipeline.Runner{
		Source: newSource(cfg),
		Regime: hmm,
		Scaler: sc,
		Model:  predictor,
		Config: cfg,
	}
	res, err := runner.Run(ctx, time.Now())
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			log.Fatal().Err(stageErr.Err).Str("stage", stageErr.Stage).Msg("Pipeline failed")
		}
		log.Fatal().Err(err).Msg("Pipeline failed")
	}

	// 6. Print results
	printSummary(res)

	// 7. Optional sinks
	db := connectDatabase(ctx, cfg)
	if db != nil {
		defer db.Close()
		comparePreviousRun(ctx, db, res)
	}
	reporters := setupReporters(cfg, db)
	if failed := pipeline.Publish(ctx, res, reporters...); failed > 0 {
		log.Warn().Int("failed", failed).Msg("Some reporters failed, CSV outputs are unaffected")
	}
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, cancelling run...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg config.Config) {
	log.Info().
		Str("Provider", cfg.Provider).
		Str("Symbol", cfg.Symbol).
		Int("HistoryDays", cfg.HistoryDays).
		Int("Lookback", cfg.Lookback).
		Int("ForecastDays", cfg.ForecastDays).
		Str("HMMPath", cfg.HMMPath).
		Str("ScalerPath", cfg.ScalerPath).
		Str("ModelPath", cfg.ModelPath).
		Str("ModelURL", cfg.ModelURL).
		Bool("Postgres", cfg.Database.Enabled()).
		Bool("Pushgateway", cfg.PushgatewayURL != "").
		Bool("Telegram", cfg.TelegramToken != "").
		Msg("Configuration loaded")
}

// fatalArtifact separates missing files from corrupt or incompatible ones
func fatalArtifact(err error, kind string) {
	var notFound *artifact.NotFoundError
	if errors.As(err, &notFound) {
		log.Fatal().Str("stage", "load").Str("path", notFound.Path).Msgf("%s artifact not found", kind)
	}
	log.Fatal().Err(err).Str("stage", "load").Msgf("Failed to load %s", kind)
}

// newSource selects the market-data provider. Requests are never retried.
func newSource(cfg config.Config) market.Source {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	switch cfg.Provider {
	case config.ProviderTwelveData:
		return twelvedata.NewClient(twelvedata.ClientOptions{
			APIKey:         cfg.TwelveAPIKey,
			RequestTimeout: timeout,
			RequestsPerSec: 5,
		})
	default:
		return yahoo.NewClient(yahoo.ClientOptions{
			RequestTimeout: timeout,
			RequestsPerSec: 5,
		})
	}
}

// loadSequenceModel uses the serving endpoint when configured, the local export otherwise
func loadSequenceModel(cfg config.Config) (sequence.Model, error) {
	if cfg.ModelURL != "" {
		log.Info().Str("url", cfg.ModelURL).Str("model", cfg.ModelName).Msg("Using remote sequence model")
		return sequence.NewRemoteModel(sequence.RemoteOptions{
			BaseURL:        cfg.ModelURL,
			ModelName:      cfg.ModelName,
			RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		}), nil
	}

	network, err := sequence.LoadNetwork(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	lookback, features := network.InputShape()
	if lookback != cfg.Lookback || features != pipeline.NumFeatures {
		return nil, fmt.Errorf("model expects input (%d, %d), pipeline is configured for (%d, %d)",
			lookback, features, cfg.Lookback, pipeline.NumFeatures)
	}
	return network, nil
}

// connectDatabase opens Postgres when configured. It returns nil when the sink is disabled or unreachable.
func connectDatabase(ctx context.Context, cfg config.Config) *database.DB {
	if !cfg.Database.Enabled() {
		return nil
	}
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return nil
	}
	return db
}

// setupReporters builds the sinks enabled in cfg. A sink that cannot start is skipped.
func setupReporters(cfg config.Config, db *database.DB) []pipeline.Reporter {
	var reporters []pipeline.Reporter

	if db != nil {
		reporters = append(reporters, db)
	}

	if cfg.PushgatewayURL != "" {
		reporters = append(reporters, metrics.New(cfg.PushgatewayURL, metrics.DefaultJob))
	}

	if cfg.TelegramToken != "" {
		client := &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, tgbotapi.APIEndpoint, client)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Telegram notifier")
		} else {
			reporters = append(reporters, tg)
		}
	}

	return reporters
}

// comparePreviousRun logs how this run's error compares with the last stored one
func comparePreviousRun(ctx context.Context, db *database.DB, res *pipeline.Result) {
	prev, err := db.LatestRun(ctx, res.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load previous run")
		return
	}
	if prev == nil {
		return
	}
	log.Info().
		Time("previous_run", prev.RunAt).
		Float64("previous_mae", prev.MAE).
		Float64("mae_change", res.Metrics.MAE-prev.MAE).
		Msg("Compared with previous run")
}

// printSummary outputs the evaluation metrics and the forecast
func printSummary(res *pipeline.Result) {
	m := res.Metrics

	fmt.Println("\n===== WALK-FORWARD EVALUATION =====")
	fmt.Printf("Samples: %d\n", m.Samples)
	fmt.Printf("MAE: %.2f\n", m.MAE)
	fmt.Printf("RMSE: %.2f\n", m.RMSE)
	if math.IsNaN(m.MAPE) {
		fmt.Println("MAPE: n/a (no non-zero actual prices)")
	} else {
		fmt.Printf("MAPE: %.2f%%\n", m.MAPE)
	}
	if m.ExcludedZero > 0 {
		fmt.Printf("Rows excluded from MAPE: %d\n", m.ExcludedZero)
	}
	fmt.Printf("Bias: %.2f | Error std-dev: %.2f\n", m.MeanError, m.ErrorStdDev)

	fmt.Println("\n===== FORECAST =====")
	for _, f := range res.Forecast {
		fmt.Printf("%s: %.2f\n", f.Date.Format(model.DateLayout), f.PredictedPrice)
	}
	fmt.Println()
}

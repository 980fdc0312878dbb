package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Market data providers
const (
	ProviderYahoo      = "yahoo"
	ProviderTwelveData = "twelvedata"
)

// Config holds all application configuration. It is built once by Load and
// passed by value into every pipeline stage.
type Config struct {
	Provider     string `env:"MARKET_PROVIDER" envDefault:"yahoo"`
	Symbol       string `env:"SYMBOL" envDefault:"BTC-USD"`
	TwelveAPIKey string `env:"TWELVE_API_KEY" envDefault:"-"`
	HistoryDays  int    `env:"HISTORY_DAYS" envDefault:"60"`

	ModelPath  string `env:"MODEL_PATH" envDefault:"model.json"`
	ModelURL   string `env:"MODEL_URL" envDefault:""` // TensorFlow Serving base URL, overrides ModelPath
	ModelName  string `env:"MODEL_NAME" envDefault:"btc_lstm"`
	ScalerPath string `env:"SCALER_PATH" envDefault:"minmax_scaler.json"`
	HMMPath    string `env:"HMM_PATH" envDefault:"hmm_btc_2024.json"`

	Lookback     int `env:"LOOKBACK" envDefault:"30"`
	ForecastDays int `env:"FORECAST_DAYS" envDefault:"1"`

	LabeledCSV  string `env:"LABELED_CSV" envDefault:"bitcoin_with_hidden_states.csv"`
	OutCSV      string `env:"OUT_CSV" envDefault:"predict.csv"`
	ForecastCSV string `env:"FORECAST_CSV" envDefault:"future_prediction_results.csv"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds

	Database       DatabaseConfig
	PushgatewayURL string `env:"PUSHGATEWAY_URL" envDefault:""`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN" envDefault:""`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID" envDefault:"0"`
}

// DatabaseConfig holds the optional Postgres sink parameters
type DatabaseConfig struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether a Postgres sink was configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// Default returns the configuration with every value at its default
func Default() Config {
	return Config{
		Provider:       ProviderYahoo,
		Symbol:         "BTC-USD",
		HistoryDays:    60,
		ModelPath:      "model.json",
		ModelName:      "btc_lstm",
		ScalerPath:     "minmax_scaler.json",
		HMMPath:        "hmm_btc_2024.json",
		Lookback:       30,
		ForecastDays:   1,
		LabeledCSV:     "bitcoin_with_hidden_states.csv",
		OutCSV:         "predict.csv",
		ForecastCSV:    "future_prediction_results.csv",
		LogLevel:       "info",
		RequestTimeout: 30,
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "disable",
		},
	}
}

// Load initializes configuration from environment variables
func Load() (Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	def := Default()
	var cfg Config

	cfg.Provider = strings.ToLower(getEnvWithDefault("MARKET_PROVIDER", def.Provider))
	cfg.Symbol = getEnvWithDefault("SYMBOL", def.Symbol)
	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.HistoryDays = getEnvIntWithDefault("HISTORY_DAYS", def.HistoryDays)

	cfg.ModelPath = getEnvWithDefault("MODEL_PATH", def.ModelPath)
	cfg.ModelURL = os.Getenv("MODEL_URL")
	cfg.ModelName = getEnvWithDefault("MODEL_NAME", def.ModelName)
	cfg.ScalerPath = getEnvWithDefault("SCALER_PATH", def.ScalerPath)
	cfg.HMMPath = getEnvWithDefault("HMM_PATH", def.HMMPath)

	cfg.Lookback = getEnvIntWithDefault("LOOKBACK", def.Lookback)
	cfg.ForecastDays = getEnvIntWithDefault("FORECAST_DAYS", def.ForecastDays)

	cfg.LabeledCSV = getEnvWithDefault("LABELED_CSV", def.LabeledCSV)
	cfg.OutCSV = getEnvWithDefault("OUT_CSV", def.OutCSV)
	cfg.ForecastCSV = getEnvWithDefault("FORECAST_CSV", def.ForecastCSV)

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", def.LogLevel)
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", def.RequestTimeout)

	cfg.Database = DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", def.Database.Port),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", def.Database.SSLMode),
	}
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderYahoo:
	case ProviderTwelveData:
		if c.TwelveAPIKey == "" {
			errs = append(errs, errors.New("TWELVE_API_KEY is required for the twelvedata provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown market provider %q", c.Provider))
	}
	if c.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.Lookback <= 0 {
		errs = append(errs, fmt.Errorf("lookback must be positive, got %d", c.Lookback))
	}
	if c.ForecastDays < 0 {
		errs = append(errs, fmt.Errorf("forecast days must not be negative, got %d", c.ForecastDays))
	}
	if c.HistoryDays <= c.Lookback {
		errs = append(errs, fmt.Errorf("history days (%d) must exceed lookback (%d)", c.HistoryDays, c.Lookback))
	}
	if c.ModelPath == "" && c.ModelURL == "" {
		errs = append(errs, errors.New("either MODEL_PATH or MODEL_URL is required"))
	}
	if c.ScalerPath == "" || c.HMMPath == "" {
		errs = append(errs, errors.New("scaler and hmm artifact paths are required"))
	}
	if c.LabeledCSV == "" || c.OutCSV == "" || c.ForecastCSV == "" {
		errs = append(errs, errors.New("all three output paths are required"))
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}

	return errors.Join(errs...)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

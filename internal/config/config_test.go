package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MARKET_PROVIDER", "SYMBOL", "TWELVE_API_KEY", "HISTORY_DAYS",
		"MODEL_PATH", "MODEL_URL", "MODEL_NAME", "SCALER_PATH", "HMM_PATH",
		"LOOKBACK", "FORECAST_DAYS", "LABELED_CSV", "OUT_CSV", "FORECAST_CSV",
		"LOG_LEVEL", "REQUEST_TIMEOUT", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "PUSHGATEWAY_URL",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30, cfg.Lookback)
	assert.Equal(t, 1, cfg.ForecastDays)
	assert.Equal(t, 60, cfg.HistoryDays)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MARKET_PROVIDER", "TwelveData")
	t.Setenv("TWELVE_API_KEY", "secret")
	t.Setenv("SYMBOL", "BTC/USD")
	t.Setenv("FORECAST_DAYS", "7")
	t.Setenv("LOOKBACK", "not-a-number")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderTwelveData, cfg.Provider)
	assert.Equal(t, "BTC/USD", cfg.Symbol)
	assert.Equal(t, 7, cfg.ForecastDays)
	assert.Equal(t, 30, cfg.Lookback, "invalid integers fall back to the default")
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "twelvedata without key",
			mutate:  func(c *Config) { c.Provider = ProviderTwelveData },
			wantErr: "TWELVE_API_KEY",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "binance" },
			wantErr: "unknown market provider",
		},
		{
			name:    "history shorter than lookback",
			mutate:  func(c *Config) { c.HistoryDays = 20 },
			wantErr: "must exceed lookback",
		},
		{
			name:    "negative horizon",
			mutate:  func(c *Config) { c.ForecastDays = -1 },
			wantErr: "forecast days",
		},
		{
			name:    "no model source",
			mutate:  func(c *Config) { c.ModelPath = "" },
			wantErr: "MODEL_PATH or MODEL_URL",
		},
		{
			name:   "remote model only",
			mutate: func(c *Config) { c.ModelPath = ""; c.ModelURL = "http://serving:8501" },
		},
		{
			name:    "telegram half configured",
			mutate:  func(c *Config) { c.TelegramToken = "token" },
			wantErr: "must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

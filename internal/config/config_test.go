package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Arbitrage.Execution = "pretend"
	cfg.Arbitrage.MinConfidence = 1.5
	cfg.Arbitrage.BudgetFraction = 0
	cfg.Server.Port = 99999

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "turbo"`,
		`unknown log_level "loud"`,
		`unknown execution "pretend"`,
		"min_confidence must be in [0,1]",
		"budget_fraction must be in (0,1]",
		"port must be 1-65535",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateTriangularPathArity(t *testing.T) {
	cfg := Defaults()
	cfg.Arbitrage.Triangular.Paths = [][]string{{"BTC/USDT", "ETH/BTC"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 3 legs")
}

func TestValidateAllowsEmptyVenues(t *testing.T) {
	// An empty venue list must not fail validation; the engine handles it by
	// degrading to a no-op scanner instead of crashing the process.
	cfg := Defaults()
	cfg.Venues.Enabled = nil
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 5*time.Second, cfg.Arbitrage.ScanInterval.Duration)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "scan"

[arbitrage]
min_profit_pct = 0.25
scan_interval = "12s"

[venues]
enabled = ["binance", "bybit"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("ARBOT_ARBITRAGE_MIN_PROFIT_PCT", "0.5")
	t.Setenv("ARBOT_VENUE_BINANCE_API_KEY", "k-123")
	t.Setenv("ARBOT_VENUE_BINANCE_API_SECRET", "s-456")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 12*time.Second, cfg.Arbitrage.ScanInterval.Duration)
	// Env wins over file.
	assert.Equal(t, 0.5, cfg.Arbitrage.MinProfitPct)
	assert.Equal(t, []string{"binance", "bybit"}, cfg.Venues.Enabled)
	assert.Equal(t, "k-123", cfg.Venues.Credentials["binance"].ApiKey)
	assert.Equal(t, "s-456", cfg.Venues.Credentials["binance"].ApiSecret)
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Venues.Credentials = map[string]VenueCredentials{
		"binance": {ApiKey: "key", ApiSecret: "secret"},
	}

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.Venues.Credentials["binance"].ApiKey)
	assert.Equal(t, "***", red.Venues.Credentials["binance"].ApiSecret)
	// Original stays intact.
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, "secret", cfg.Venues.Credentials["binance"].ApiSecret)
}

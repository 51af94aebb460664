package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. A missing file is not an error — the bot can run
// entirely from defaults plus environment. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setStringSlice(&cfg.Venues.Enabled, "ARBOT_VENUES_ENABLED")
	setDuration(&cfg.Venues.Timeout, "ARBOT_VENUES_TIMEOUT")
	setFloat64(&cfg.Venues.RateLimitRPS, "ARBOT_VENUES_RATE_LIMIT_RPS")
	setInt(&cfg.Venues.RateBurst, "ARBOT_VENUES_RATE_BURST")
	setStr(&cfg.Venues.EncryptedKeyPath, "ARBOT_VENUES_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Venues.KeyPassphrase, "ARBOT_VENUES_KEY_PASSPHRASE")
	setVenueCredentials(cfg)

	// ── Arbitrage ──
	setStringSlice(&cfg.Arbitrage.Symbols, "ARBOT_ARBITRAGE_SYMBOLS")
	setDuration(&cfg.Arbitrage.ScanInterval, "ARBOT_ARBITRAGE_SCAN_INTERVAL")
	setStr(&cfg.Arbitrage.Execution, "ARBOT_ARBITRAGE_EXECUTION")
	setFloat64(&cfg.Arbitrage.MinProfitPct, "ARBOT_ARBITRAGE_MIN_PROFIT_PCT")
	setFloat64(&cfg.Arbitrage.MinConfidence, "ARBOT_ARBITRAGE_MIN_CONFIDENCE")
	setInt(&cfg.Arbitrage.MaxExecutionsPerCycle, "ARBOT_ARBITRAGE_MAX_EXECUTIONS_PER_CYCLE")
	setFloat64(&cfg.Arbitrage.MinTradeSize, "ARBOT_ARBITRAGE_MIN_TRADE_SIZE")
	setFloat64(&cfg.Arbitrage.BudgetFraction, "ARBOT_ARBITRAGE_BUDGET_FRACTION")
	setFloat64(&cfg.Arbitrage.MinVolume24h, "ARBOT_ARBITRAGE_MIN_VOLUME_24H")
	setFloat64(&cfg.Arbitrage.DefaultFeePct, "ARBOT_ARBITRAGE_DEFAULT_FEE_PCT")
	setBool(&cfg.Arbitrage.CrossExchange.Enabled, "ARBOT_ARBITRAGE_CROSS_EXCHANGE_ENABLED")
	setFloat64(&cfg.Arbitrage.CrossExchange.HighConfidenceSpreadPct, "ARBOT_ARBITRAGE_CROSS_EXCHANGE_HIGH_CONFIDENCE_SPREAD_PCT")
	setBool(&cfg.Arbitrage.Triangular.Enabled, "ARBOT_ARBITRAGE_TRIANGULAR_ENABLED")
	setFloat64(&cfg.Arbitrage.Triangular.Notional, "ARBOT_ARBITRAGE_TRIANGULAR_NOTIONAL")
	setBool(&cfg.Arbitrage.Funding.Enabled, "ARBOT_ARBITRAGE_FUNDING_ENABLED")
	setStringSlice(&cfg.Arbitrage.Funding.Symbols, "ARBOT_ARBITRAGE_FUNDING_SYMBOLS")
	setFloat64(&cfg.Arbitrage.Funding.MinAbsRate, "ARBOT_ARBITRAGE_FUNDING_MIN_ABS_RATE")
	setFloat64(&cfg.Arbitrage.Funding.MaxSize, "ARBOT_ARBITRAGE_FUNDING_MAX_SIZE")
	setBool(&cfg.Arbitrage.Stablecoin.Enabled, "ARBOT_ARBITRAGE_STABLECOIN_ENABLED")
	setStringSlice(&cfg.Arbitrage.Stablecoin.Pairs, "ARBOT_ARBITRAGE_STABLECOIN_PAIRS")
	setFloat64(&cfg.Arbitrage.Stablecoin.DeviationPct, "ARBOT_ARBITRAGE_STABLECOIN_DEVIATION_PCT")
	setFloat64(&cfg.Arbitrage.Stablecoin.FeeAllowancePct, "ARBOT_ARBITRAGE_STABLECOIN_FEE_ALLOWANCE_PCT")
	setFloat64(&cfg.Arbitrage.Stablecoin.MaxSize, "ARBOT_ARBITRAGE_STABLECOIN_MAX_SIZE")

	// ── Allocation ──
	setFloat64(&cfg.Allocation.TotalCapital, "ARBOT_ALLOCATION_TOTAL_CAPITAL")
	setFloat64(&cfg.Allocation.TradingPct, "ARBOT_ALLOCATION_TRADING_PCT")
	setFloat64(&cfg.Allocation.ArbitragePct, "ARBOT_ALLOCATION_ARBITRAGE_PCT")
	setFloat64(&cfg.Allocation.ReservePct, "ARBOT_ALLOCATION_RESERVE_PCT")
	setFloat64(&cfg.Allocation.MinReservePct, "ARBOT_ALLOCATION_MIN_RESERVE_PCT")
	setFloat64(&cfg.Allocation.MaxArbitragePct, "ARBOT_ALLOCATION_MAX_ARBITRAGE_PCT")
	setFloat64(&cfg.Allocation.MaxTradingPct, "ARBOT_ALLOCATION_MAX_TRADING_PCT")
	setDuration(&cfg.Allocation.Interval, "ARBOT_ALLOCATION_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Report ──
	setBool(&cfg.Report.Enabled, "ARBOT_REPORT_ENABLED")
	setStr(&cfg.Report.Cron, "ARBOT_REPORT_CRON")
	setStr(&cfg.Report.MarketRefreshCron, "ARBOT_REPORT_MARKET_REFRESH_CRON")

	// ── Health ──
	setDuration(&cfg.Health.Interval, "ARBOT_HEALTH_INTERVAL")
	setDuration(&cfg.Health.StaleAfter, "ARBOT_HEALTH_STALE_AFTER")

	// ── Log ──
	setStr(&cfg.Log.File, "ARBOT_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "ARBOT_LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "ARBOT_LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "ARBOT_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "ARBOT_LOG_COMPRESS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// setVenueCredentials reads ARBOT_VENUE_<NAME>_API_KEY / _API_SECRET pairs
// for every enabled venue so deploys never write keys into the TOML file.
func setVenueCredentials(cfg *Config) {
	if cfg.Venues.Credentials == nil {
		cfg.Venues.Credentials = map[string]VenueCredentials{}
	}
	for _, venue := range cfg.Venues.Enabled {
		upper := strings.ToUpper(venue)
		creds := cfg.Venues.Credentials[strings.ToLower(venue)]
		setStr(&creds.ApiKey, "ARBOT_VENUE_"+upper+"_API_KEY")
		setStr(&creds.ApiSecret, "ARBOT_VENUE_"+upper+"_API_SECRET")
		if creds.ApiKey != "" || creds.ApiSecret != "" {
			cfg.Venues.Credentials[strings.ToLower(venue)] = creds
		}
	}
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

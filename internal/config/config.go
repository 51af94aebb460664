// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Venues     VenuesConfig     `toml:"venues"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Allocation AllocationConfig `toml:"allocation"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Report     ReportConfig     `toml:"report"`
	Health     HealthConfig     `toml:"health"`
	Log        LogConfig        `toml:"log"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// VenuesConfig lists the exchanges the bot connects to and how.
type VenuesConfig struct {
	Enabled      []string                    `toml:"enabled"`
	Timeout      duration                    `toml:"timeout"`
	RateLimitRPS float64                     `toml:"rate_limit_rps"`
	RateBurst    int                         `toml:"rate_burst"`
	Credentials  map[string]VenueCredentials `toml:"credentials"`
	// EncryptedKeyPath points at a PBKDF2/AES-GCM credential file written by
	// `arbot -encrypt-keys`; when set it takes precedence over plain
	// credentials for the venues it contains.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassphrase    string `toml:"key_passphrase"`
}

// VenueCredentials holds one exchange's API key pair.
type VenueCredentials struct {
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
}

// ArbitrageConfig holds scanner and execution-gate parameters.
type ArbitrageConfig struct {
	Symbols               []string `toml:"symbols"`
	ScanInterval          duration `toml:"scan_interval"`
	Execution             string   `toml:"execution"` // "paper" or "live"
	MinProfitPct          float64  `toml:"min_profit_pct"`
	MinConfidence         float64  `toml:"min_confidence"`
	MaxExecutionsPerCycle int      `toml:"max_executions_per_cycle"`
	MinTradeSize          float64  `toml:"min_trade_size"`
	// BudgetFraction caps each execution at this share of the budget still
	// unreserved within the cycle.
	BudgetFraction  float64            `toml:"budget_fraction"`
	MinVolume24h    float64            `toml:"min_volume_24h"`
	DefaultFeePct   float64            `toml:"default_fee_pct"`
	FeeOverridesPct map[string]float64 `toml:"fee_overrides_pct"`

	CrossExchange CrossExchangeConfig `toml:"cross_exchange"`
	Triangular    TriangularConfig    `toml:"triangular"`
	Funding       FundingConfig       `toml:"funding"`
	Stablecoin    StablecoinConfig    `toml:"stablecoin"`
}

// CrossExchangeConfig holds config for the cross-exchange detector.
type CrossExchangeConfig struct {
	Enabled bool `toml:"enabled"`
	// HighConfidenceSpreadPct is the gross spread above which an opportunity
	// gets the higher confidence tier.
	HighConfidenceSpreadPct float64 `toml:"high_confidence_spread_pct"`
}

// TriangularConfig holds config for the triangular detector.
type TriangularConfig struct {
	Enabled  bool       `toml:"enabled"`
	Notional float64    `toml:"notional"`
	Paths    [][]string `toml:"paths"` // each path is exactly three symbols
}

// FundingConfig holds config for the funding-rate detector.
type FundingConfig struct {
	Enabled bool     `toml:"enabled"`
	Symbols []string `toml:"symbols"`
	// MinAbsRate is the materiality threshold on the signed per-interval
	// funding rate, as a fraction (0.0005 = 0.05% per interval).
	MinAbsRate float64 `toml:"min_abs_rate"`
	MaxSize    float64 `toml:"max_size"`
}

// StablecoinConfig holds config for the stablecoin-depeg detector.
type StablecoinConfig struct {
	Enabled         bool     `toml:"enabled"`
	Pairs           []string `toml:"pairs"`
	DeviationPct    float64  `toml:"deviation_pct"`
	FeeAllowancePct float64  `toml:"fee_allowance_pct"`
	MaxSize         float64  `toml:"max_size"`
}

// AllocationConfig seeds the rule-based capital allocator. The allocator
// clamps the configured split to the reserve floor and bucket ceilings and
// renormalizes to 100 before publishing it.
type AllocationConfig struct {
	TotalCapital    float64  `toml:"total_capital"`
	TradingPct      float64  `toml:"trading_pct"`
	ArbitragePct    float64  `toml:"arbitrage_pct"`
	ReservePct      float64  `toml:"reserve_pct"`
	MinReservePct   float64  `toml:"min_reserve_pct"`
	MaxArbitragePct float64  `toml:"max_arbitrage_pct"`
	MaxTradingPct   float64  `toml:"max_trading_pct"`
	Interval        duration `toml:"interval"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: when it
// is unreachable at startup the bot falls back to in-process state.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ReportConfig schedules the recurring summary report and the daily market
// catalogue refresh, both as cron expressions.
type ReportConfig struct {
	Enabled           bool   `toml:"enabled"`
	Cron              string `toml:"cron"`
	MarketRefreshCron string `toml:"market_refresh_cron"`
}

// HealthConfig controls the loop-liveness monitor.
type HealthConfig struct {
	Interval   duration `toml:"interval"`
	StaleAfter duration `toml:"stale_after"`
}

// LogConfig controls the optional rotating log file. With an empty File the
// bot logs to stdout only.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the bot's stock parameters.
func Defaults() Config {
	return Config{
		Venues: VenuesConfig{
			Enabled:      []string{"binance", "bybit", "okx", "mexc"},
			Timeout:      duration{5 * time.Second},
			RateLimitRPS: 10,
			RateBurst:    20,
			Credentials:  map[string]VenueCredentials{},
		},
		Arbitrage: ArbitrageConfig{
			Symbols:               []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
			ScanInterval:          duration{5 * time.Second},
			Execution:             "paper",
			MinProfitPct:          0.08,
			MinConfidence:         0.7,
			MaxExecutionsPerCycle: 3,
			MinTradeSize:          10,
			BudgetFraction:        0.10,
			MinVolume24h:          1_000_000,
			DefaultFeePct:         0.10,
			FeeOverridesPct:       map[string]float64{},
			CrossExchange: CrossExchangeConfig{
				Enabled:                 true,
				HighConfidenceSpreadPct: 0.2,
			},
			Triangular: TriangularConfig{
				Enabled:  true,
				Notional: 1000,
				Paths: [][]string{
					{"BTC/USDT", "ETH/BTC", "ETH/USDT"},
					{"BTC/USDT", "SOL/BTC", "SOL/USDT"},
					{"ETH/USDT", "SOL/ETH", "SOL/USDT"},
				},
			},
			Funding: FundingConfig{
				Enabled:    true,
				Symbols:    []string{"BTC/USDT", "ETH/USDT"},
				MinAbsRate: 0.0005,
				MaxSize:    10_000,
			},
			Stablecoin: StablecoinConfig{
				Enabled:         true,
				Pairs:           []string{"USDC/USDT", "DAI/USDT", "BUSD/USDT"},
				DeviationPct:    0.2,
				FeeAllowancePct: 0.1,
				MaxSize:         50_000,
			},
		},
		Allocation: AllocationConfig{
			TotalCapital:    10_000,
			TradingPct:      40,
			ArbitragePct:    40,
			ReservePct:      20,
			MinReservePct:   10,
			MaxArbitragePct: 80,
			MaxTradingPct:   70,
			Interval:        duration{60 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"startup", "shutdown", "opportunity_executed", "execution_failed", "allocation", "report", "health"},
		},
		Report: ReportConfig{
			Enabled:           true,
			Cron:              "0 */4 * * *",
			MarketRefreshCron: "0 3 * * *",
		},
		Health: HealthConfig{
			Interval:   duration{60 * time.Second},
			StaleAfter: duration{5 * time.Minute},
		},
		Log: LogConfig{
			File:       "",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true, // engine + allocator + server + reports + health
	"scan":    true, // engine + allocator, no server
	"monitor": true, // server only, no scan loop
	"once":    true, // single scan cycle, print result, exit
}

// validExecutions enumerates the accepted values for Arbitrage.Execution.
var validExecutions = map[string]bool{
	"paper": true,
	"live":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// knownVenues are the exchanges the bot ships adapters or fee entries for.
var knownVenues = map[string]bool{
	"binance": true,
	"bybit":   true,
	"okx":     true,
	"kucoin":  true,
	"gate":    true,
	"mexc":    true,
}

// Validate checks Config for malformed values and returns a combined error
// describing every problem found. An empty venue list is deliberately NOT a
// validation error: the engine starts in a no-op state instead of refusing
// to boot, so a misconfigured deploy still serves health and logs the cause.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, scan, monitor, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validExecutions[strings.ToLower(c.Arbitrage.Execution)] {
		errs = append(errs, fmt.Sprintf("arbitrage: unknown execution %q (valid: paper, live)", c.Arbitrage.Execution))
	}

	// Venues
	for _, v := range c.Venues.Enabled {
		if !knownVenues[strings.ToLower(v)] {
			errs = append(errs, fmt.Sprintf("venues: unknown venue %q", v))
		}
	}
	if c.Venues.Timeout.Duration <= 0 {
		errs = append(errs, "venues: timeout must be > 0")
	}
	if c.Venues.RateLimitRPS <= 0 {
		errs = append(errs, "venues: rate_limit_rps must be > 0")
	}
	if c.Venues.EncryptedKeyPath != "" && c.Venues.KeyPassphrase == "" {
		errs = append(errs, "venues: key_passphrase is required when encrypted_key_path is set")
	}

	// Arbitrage
	if c.Arbitrage.ScanInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: scan_interval must be > 0")
	}
	if c.Arbitrage.MinProfitPct < 0 {
		errs = append(errs, "arbitrage: min_profit_pct must be >= 0")
	}
	if c.Arbitrage.MinConfidence < 0 || c.Arbitrage.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: min_confidence must be in [0,1], got %g", c.Arbitrage.MinConfidence))
	}
	if c.Arbitrage.MaxExecutionsPerCycle < 1 {
		errs = append(errs, "arbitrage: max_executions_per_cycle must be >= 1")
	}
	if c.Arbitrage.MinTradeSize < 0 {
		errs = append(errs, "arbitrage: min_trade_size must be >= 0")
	}
	if c.Arbitrage.BudgetFraction <= 0 || c.Arbitrage.BudgetFraction > 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: budget_fraction must be in (0,1], got %g", c.Arbitrage.BudgetFraction))
	}
	if c.Arbitrage.DefaultFeePct <= 0 {
		errs = append(errs, "arbitrage: default_fee_pct must be > 0 (never assume free trading)")
	}
	for venue, fee := range c.Arbitrage.FeeOverridesPct {
		if fee < 0 {
			errs = append(errs, fmt.Sprintf("arbitrage: fee override for %q must be >= 0", venue))
		}
	}
	for i, path := range c.Arbitrage.Triangular.Paths {
		if len(path) != 3 {
			errs = append(errs, fmt.Sprintf("arbitrage: triangular path %d must have exactly 3 legs, got %d", i, len(path)))
		}
	}
	if c.Arbitrage.Triangular.Enabled && c.Arbitrage.Triangular.Notional <= 0 {
		errs = append(errs, "arbitrage: triangular notional must be > 0 when enabled")
	}
	if c.Arbitrage.Funding.Enabled && c.Arbitrage.Funding.MinAbsRate <= 0 {
		errs = append(errs, "arbitrage: funding min_abs_rate must be > 0 when enabled")
	}
	if c.Arbitrage.Stablecoin.Enabled && c.Arbitrage.Stablecoin.DeviationPct <= 0 {
		errs = append(errs, "arbitrage: stablecoin deviation_pct must be > 0 when enabled")
	}

	// Allocation
	if c.Allocation.TotalCapital < 0 {
		errs = append(errs, "allocation: total_capital must be >= 0")
	}
	for _, p := range []struct {
		name string
		pct  float64
	}{
		{"trading_pct", c.Allocation.TradingPct},
		{"arbitrage_pct", c.Allocation.ArbitragePct},
		{"reserve_pct", c.Allocation.ReservePct},
		{"min_reserve_pct", c.Allocation.MinReservePct},
		{"max_arbitrage_pct", c.Allocation.MaxArbitragePct},
		{"max_trading_pct", c.Allocation.MaxTradingPct},
	} {
		if p.pct < 0 || p.pct > 100 {
			errs = append(errs, fmt.Sprintf("allocation: %s must be in [0,100], got %g", p.name, p.pct))
		}
	}
	if c.Allocation.TradingPct+c.Allocation.ArbitragePct+c.Allocation.ReservePct <= 0 {
		errs = append(errs, "allocation: trading_pct + arbitrage_pct + reserve_pct must be > 0")
	}
	if c.Allocation.Interval.Duration <= 0 {
		errs = append(errs, "allocation: interval must be > 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Health
	if c.Health.Interval.Duration <= 0 {
		errs = append(errs, "health: interval must be > 0")
	}
	if c.Health.StaleAfter.Duration <= c.Health.Interval.Duration {
		errs = append(errs, "health: stale_after must exceed interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

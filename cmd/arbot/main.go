// Command arbot is the arbitrage bot entry point. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// application in the configured mode. With -encrypt-keys it instead encrypts
// the configured venue API keys into a credentials file and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/coinarb/arbot/internal/app"
	"github.com/coinarb/arbot/internal/config"
	"github.com/coinarb/arbot/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptKeys := flag.Bool("encrypt-keys", false, "encrypt configured venue API keys into -key-file and exit")
	keyFile := flag.String("key-file", "credentials.enc", "output path for -encrypt-keys")
	flag.Parse()

	// Bootstrap logger until the config tells us the level and file.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = newLogger(cfg)
	slog.SetDefault(logger)

	if *encryptKeys {
		if err := runEncryptKeys(cfg, *keyFile); err != nil {
			logger.Error("encrypting credentials failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbitrage bot starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("arbitrage bot stopped")
}

// newLogger builds the JSON logger described by the config: stdout, plus a
// size-rotated file when log.file is set.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// runEncryptKeys gathers the venue credentials visible to the current config
// (TOML file plus ARBOT_VENUE_* environment) and writes them, encrypted with
// the key passphrase, to path.
func runEncryptKeys(cfg *config.Config, path string) error {
	if cfg.Venues.KeyPassphrase == "" {
		return errors.New("venues.key_passphrase (or ARBOT_VENUES_KEY_PASSPHRASE) must be set")
	}

	keys := make(crypto.VenueKeys, len(cfg.Venues.Credentials))
	for name, c := range cfg.Venues.Credentials {
		if c.ApiKey == "" && c.ApiSecret == "" {
			continue
		}
		keys[strings.ToLower(name)] = crypto.APIKey{Key: c.ApiKey, Secret: c.ApiSecret}
	}
	if len(keys) == 0 {
		return errors.New("no venue credentials found in config or environment")
	}

	blob, err := crypto.EncryptCredentials(keys, cfg.Venues.KeyPassphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("encrypted credentials for %d venue(s) written to %s\n", len(keys), path)
	return nil
}

package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Venue credentials
	if cfg.Venues.Credentials != nil {
		out.Venues.Credentials = make(map[string]VenueCredentials, len(cfg.Venues.Credentials))
		for venue, creds := range cfg.Venues.Credentials {
			redact(&creds.ApiKey)
			redact(&creds.ApiSecret)
			out.Venues.Credentials[venue] = creds
		}
	}
	redact(&out.Venues.KeyPassphrase)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Venues.Enabled != nil {
		out.Venues.Enabled = append([]string(nil), cfg.Venues.Enabled...)
	}
	if cfg.Arbitrage.Symbols != nil {
		out.Arbitrage.Symbols = append([]string(nil), cfg.Arbitrage.Symbols...)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	if cfg.Arbitrage.FeeOverridesPct != nil {
		out.Arbitrage.FeeOverridesPct = make(map[string]float64, len(cfg.Arbitrage.FeeOverridesPct))
		for k, v := range cfg.Arbitrage.FeeOverridesPct {
			out.Arbitrage.FeeOverridesPct[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

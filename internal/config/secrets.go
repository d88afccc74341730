package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Venue credentials
	out.Venues = cfg.Venues
	redact(&out.Venues.Polymarket.APIKey)
	redact(&out.Venues.Kalshi.APIKey)
	redact(&out.Venues.Limitless.APIKey)
	redact(&out.Venues.Manifold.APIKey)

	// Postgres: the DSN embeds credentials, so mask the whole string.
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Keystore
	out.Keystore = cfg.Keystore
	redact(&out.Keystore.Passphrase)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Venues.Order != nil {
		out.Venues.Order = make([]string, len(cfg.Venues.Order))
		copy(out.Venues.Order, cfg.Venues.Order)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Scan.RPCURLs != nil {
		out.Scan.RPCURLs = make(map[string]string, len(cfg.Scan.RPCURLs))
		for k, v := range cfg.Scan.RPCURLs {
			out.Scan.RPCURLs[k] = v
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

// Package config defines the top-level configuration for the aggregation
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ODDSMUX_* environment
// variables.
type Config struct {
	Venues    VenuesConfig    `toml:"venues"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Scan      ScanConfig      `toml:"scan"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Keystore  KeystoreConfig  `toml:"keystore"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// VenuesConfig holds the per-venue sections plus the declared order in
// which market sync visits them.
type VenuesConfig struct {
	Order      []string    `toml:"order"`
	Polymarket VenueConfig `toml:"polymarket"`
	Kalshi     VenueConfig `toml:"kalshi"`
	Limitless  VenueConfig `toml:"limitless"`
	Manifold   VenueConfig `toml:"manifold"`
}

// Venue returns the section for the named venue and whether the name is
// known.
func (v *VenuesConfig) Venue(name string) (VenueConfig, bool) {
	switch name {
	case "polymarket":
		return v.Polymarket, true
	case "kalshi":
		return v.Kalshi, true
	case "limitless":
		return v.Limitless, true
	case "manifold":
		return v.Manifold, true
	default:
		return VenueConfig{}, false
	}
}

// VenueConfig holds one venue's identity, credentials, and sync tuning.
// APIKey and SealedKeyPath only apply to venues whose API requires a
// credential; venues with public read APIs leave both empty.
type VenueConfig struct {
	Enabled       bool     `toml:"enabled"`
	DisplayName   string   `toml:"display_name"`
	BaseURL       string   `toml:"base_url"`
	ChainID       int64    `toml:"chain_id"` // 0 for venues with no on-chain settlement
	APIKey        string   `toml:"api_key"`
	SealedKeyPath string   `toml:"sealed_key_path"`
	BatchSize     int      `toml:"batch_size"`
	MaxPages      int      `toml:"max_pages"`
	ActiveOnly    bool     `toml:"active_only"`
	PageDelay     duration `toml:"page_delay"`
	PriceCap      int      `toml:"price_cap"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SchedulerConfig holds the sync loop parameters. Enabled controls whether
// the loops start at boot; a stopped scheduler can still be started through
// the API.
type SchedulerConfig struct {
	Enabled            bool     `toml:"enabled"`
	MarketSyncInterval duration `toml:"market_sync_interval"`
	PriceSyncInterval  duration `toml:"price_sync_interval"`
	SyncOnStartup      bool     `toml:"sync_on_startup"`
}

// ScanConfig holds on-chain balance scan parameters. RPCURLs overrides the
// built-in endpoint per chain ID (decimal string key); chains outside the
// built-in set stay unsupported regardless.
type ScanConfig struct {
	Enabled    bool              `toml:"enabled"`
	MinBalance float64           `toml:"min_balance"`
	RPCURLs    map[string]string `toml:"rpc_urls"`
}

// ArchiveConfig holds snapshot archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"` // requests per rate_window, 0 disables
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// KeystoreConfig holds the passphrase for sealed venue credentials. In
// production this comes from ODDSMUX_KEYSTORE_PASSPHRASE, never the file.
type KeystoreConfig struct {
	Passphrase string `toml:"passphrase"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// Venue sections default to each venue's public API root and its
// documented paging limits.
func Defaults() Config {
	return Config{
		Venues: VenuesConfig{
			Order: []string{"polymarket", "kalshi", "limitless", "manifold"},
			Polymarket: VenueConfig{
				Enabled:     true,
				DisplayName: "Polymarket",
				BaseURL:     "https://gamma-api.polymarket.com",
				ChainID:     137,
				BatchSize:   100,
				MaxPages:    10,
				ActiveOnly:  true,
				PageDelay:   duration{500 * time.Millisecond},
				PriceCap:    200,
			},
			Kalshi: VenueConfig{
				Enabled:     true,
				DisplayName: "Kalshi",
				BaseURL:     "https://api.elections.kalshi.com/trade-api/v2",
				BatchSize:   200,
				MaxPages:    5,
				ActiveOnly:  true,
				PageDelay:   duration{500 * time.Millisecond},
				PriceCap:    150,
			},
			Limitless: VenueConfig{
				Enabled:     true,
				DisplayName: "Limitless",
				BaseURL:     "https://api.limitless.exchange",
				ChainID:     8453,
				BatchSize:   50,
				MaxPages:    10,
				ActiveOnly:  true,
				PageDelay:   duration{500 * time.Millisecond},
				PriceCap:    100,
			},
			Manifold: VenueConfig{
				Enabled:     true,
				DisplayName: "Manifold",
				BaseURL:     "https://api.manifold.markets/v0",
				BatchSize:   100,
				MaxPages:    5,
				ActiveOnly:  true,
				PageDelay:   duration{time.Second},
				PriceCap:    100,
			},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsmux-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			MarketSyncInterval: duration{5 * time.Minute},
			PriceSyncInterval:  duration{time.Minute},
			SyncOnStartup:      true,
		},
		Scan: ScanConfig{
			Enabled:    true,
			MinBalance: 0,
			RPCURLs:    map[string]string{},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"sync_failed", "venue_degraded"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"server":  true,
	"sync":    true,
	"oneshot": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// venueNames enumerates the venues this build knows how to sync.
var venueNames = []string{"polymarket", "kalshi", "limitless", "manifold"}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, sync, oneshot)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venues
	known := make(map[string]bool, len(venueNames))
	for _, name := range venueNames {
		known[name] = true
	}
	seen := map[string]bool{}
	enabled := 0
	for _, name := range c.Venues.Order {
		if !known[name] {
			errs = append(errs, fmt.Sprintf("venues: unknown venue %q in order (valid: %s)", name, strings.Join(venueNames, ", ")))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("venues: venue %q appears twice in order", name))
			continue
		}
		seen[name] = true

		vc, _ := c.Venues.Venue(name)
		if !vc.Enabled {
			continue
		}
		enabled++
		if vc.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: base_url must not be empty", name))
		}
		if vc.BatchSize < 1 {
			errs = append(errs, fmt.Sprintf("venues.%s: batch_size must be >= 1", name))
		}
		if vc.MaxPages < 1 {
			errs = append(errs, fmt.Sprintf("venues.%s: max_pages must be >= 1", name))
		}
		if vc.PriceCap < 1 {
			errs = append(errs, fmt.Sprintf("venues.%s: price_cap must be >= 1", name))
		}
		if vc.APIKey != "" && vc.SealedKeyPath != "" {
			errs = append(errs, fmt.Sprintf("venues.%s: api_key and sealed_key_path are mutually exclusive", name))
		}
		if vc.SealedKeyPath != "" && c.Keystore.Passphrase == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: keystore passphrase is required when sealed_key_path is set", name))
		}
	}
	if enabled == 0 {
		errs = append(errs, "venues: at least one venue in order must be enabled")
	}

	// Scheduler intervals: boot config is validated loudly; only live
	// updates ignore sub-minimum values silently.
	if d := c.Scheduler.MarketSyncInterval.Duration; d != 0 && d < 10*time.Second {
		errs = append(errs, fmt.Sprintf("scheduler: market_sync_interval must be at least 10s, got %s", d))
	}
	if d := c.Scheduler.PriceSyncInterval.Duration; d != 0 && d < 5*time.Second {
		errs = append(errs, fmt.Sprintf("scheduler: price_sync_interval must be at least 5s, got %s", d))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only exercised by archival.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, fmt.Sprintf("archive: retention_days must be >= 1, got %d", c.Archive.RetentionDays))
		}
		if strings.TrimSpace(c.Archive.Cron) == "" {
			errs = append(errs, "archive: cron must not be empty when archive is enabled")
		}
	}

	// Scan
	if c.Scan.MinBalance < 0 {
		errs = append(errs, "scan: min_balance must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

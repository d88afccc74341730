package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration by starting from defaults, layering the
// TOML file at path on top, and finally applying ODDSMUX_* environment
// overrides. A missing file is not an error; the defaults plus environment
// are enough to run against local services. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	// .env files are a development convenience; real environment
	// variables take precedence because godotenv never overwrites.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ODDSMUX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ODDSMUX_MODE")
	setStr(&cfg.LogLevel, "ODDSMUX_LOG_LEVEL")

	// ── Postgres ──
	// ODDSMUX_DATABASE_URL is an alias for the DSN matching what managed
	// Postgres providers hand out.
	setStr(&cfg.Postgres.DSN, "ODDSMUX_DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "ODDSMUX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ODDSMUX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ODDSMUX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ODDSMUX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ODDSMUX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ODDSMUX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ODDSMUX_POSTGRES_SSL_MODE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ODDSMUX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSMUX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSMUX_REDIS_DB")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ODDSMUX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ODDSMUX_S3_REGION")
	setStr(&cfg.S3.Bucket, "ODDSMUX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ODDSMUX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ODDSMUX_S3_SECRET_KEY")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "ODDSMUX_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.MarketSyncInterval, "ODDSMUX_MARKET_SYNC_INTERVAL")
	setDuration(&cfg.Scheduler.PriceSyncInterval, "ODDSMUX_PRICE_SYNC_INTERVAL")
	setBool(&cfg.Scheduler.SyncOnStartup, "ODDSMUX_SYNC_ON_STARTUP")

	// ── Scan ──
	setBool(&cfg.Scan.Enabled, "ODDSMUX_SCAN_ENABLED")
	setFloat64(&cfg.Scan.MinBalance, "ODDSMUX_SCAN_MIN_BALANCE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ODDSMUX_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ODDSMUX_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "ODDSMUX_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSMUX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ODDSMUX_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ODDSMUX_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSMUX_CORS_ORIGINS")

	// ── Venue credentials ──
	setStr(&cfg.Venues.Kalshi.APIKey, "ODDSMUX_KALSHI_API_KEY")

	// ── Notifications ──
	setStr(&cfg.Notify.TelegramToken, "ODDSMUX_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSMUX_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSMUX_DISCORD_WEBHOOK_URL")

	// ── Keystore ──
	setStr(&cfg.Keystore.Passphrase, "ODDSMUX_KEYSTORE_PASSPHRASE")
}

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
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

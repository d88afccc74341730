package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "banana" },
			wantErr: "unknown mode",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "unknown log_level",
		},
		{
			name:    "unknown venue in order",
			mutate:  func(c *Config) { c.Venues.Order = append(c.Venues.Order, "augur") },
			wantErr: "unknown venue",
		},
		{
			name:    "duplicate venue in order",
			mutate:  func(c *Config) { c.Venues.Order = []string{"polymarket", "polymarket"} },
			wantErr: "appears twice",
		},
		{
			name: "no enabled venues",
			mutate: func(c *Config) {
				c.Venues.Polymarket.Enabled = false
				c.Venues.Kalshi.Enabled = false
				c.Venues.Limitless.Enabled = false
				c.Venues.Manifold.Enabled = false
			},
			wantErr: "at least one venue",
		},
		{
			name:    "enabled venue without base url",
			mutate:  func(c *Config) { c.Venues.Polymarket.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "batch size below one",
			mutate:  func(c *Config) { c.Venues.Kalshi.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "max pages below one",
			mutate:  func(c *Config) { c.Venues.Limitless.MaxPages = 0 },
			wantErr: "max_pages",
		},
		{
			name:    "price cap below one",
			mutate:  func(c *Config) { c.Venues.Manifold.PriceCap = -1 },
			wantErr: "price_cap",
		},
		{
			name:    "market sync interval under floor",
			mutate:  func(c *Config) { c.Scheduler.MarketSyncInterval = duration{7 * time.Second} },
			wantErr: "market_sync_interval",
		},
		{
			name:    "price sync interval under floor",
			mutate:  func(c *Config) { c.Scheduler.PriceSyncInterval = duration{3 * time.Second} },
			wantErr: "price_sync_interval",
		},
		{
			name: "api key and sealed path together",
			mutate: func(c *Config) {
				c.Venues.Kalshi.APIKey = "k"
				c.Venues.Kalshi.SealedKeyPath = "/etc/oddsmux/kalshi.sealed.json"
				c.Keystore.Passphrase = "p"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "sealed path without passphrase",
			mutate: func(c *Config) {
				c.Venues.Kalshi.SealedKeyPath = "/etc/oddsmux/kalshi.sealed.json"
			},
			wantErr: "keystore passphrase",
		},
		{
			name: "postgres host missing without dsn",
			mutate: func(c *Config) {
				c.Postgres.DSN = ""
				c.Postgres.Host = ""
			},
			wantErr: "postgres: host",
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.Postgres.Port = 0 },
			wantErr: "postgres: port",
		},
		{
			name: "postgres pool bounds inverted",
			mutate: func(c *Config) {
				c.Postgres.PoolMinConns = 20
				c.Postgres.PoolMaxConns = 10
			},
			wantErr: "pool_min_conns must not exceed",
		},
		{
			name:    "redis addr missing",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis: addr",
		},
		{
			name: "archive enabled without bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.S3.Bucket = ""
			},
			wantErr: "s3: bucket",
		},
		{
			name: "archive retention below one",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.RetentionDays = 0
			},
			wantErr: "retention_days",
		},
		{
			name: "archive cron missing",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Cron = "  "
			},
			wantErr: "archive: cron",
		},
		{
			name:    "negative scan min balance",
			mutate:  func(c *Config) { c.Scan.MinBalance = -0.5 },
			wantErr: "min_balance",
		},
		{
			name:    "server port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server: port",
		},
		{
			name: "rate limit without window",
			mutate: func(c *Config) {
				c.Server.RateLimit = 60
				c.Server.RateWindow = duration{}
			},
			wantErr: "rate_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted a bad config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Allowances(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			// Zero intervals mean "use the scheduler defaults", not "run hot".
			name: "zero sync intervals",
			mutate: func(c *Config) {
				c.Scheduler.MarketSyncInterval = duration{}
				c.Scheduler.PriceSyncInterval = duration{}
			},
		},
		{
			name: "dsn stands in for host and port",
			mutate: func(c *Config) {
				c.Postgres.DSN = "postgres://app@db.internal:6543/oddsmux"
				c.Postgres.Host = ""
				c.Postgres.Port = 0
			},
		},
		{
			name: "disabled server skips port checks",
			mutate: func(c *Config) {
				c.Server.Enabled = false
				c.Server.Port = 0
			},
		},
		{
			// The disabled venue's fields are not inspected.
			name: "disabled venue with empty base url",
			mutate: func(c *Config) {
				c.Venues.Manifold.Enabled = false
				c.Venues.Manifold.BaseURL = ""
			},
		},
		{
			name:   "rate limiting disabled",
			mutate: func(c *Config) { c.Server.RateLimit = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate rejected an acceptable config: %v", err)
			}
		})
	}
}

func TestVenuesConfigLookup(t *testing.T) {
	cfg := Defaults()

	for _, name := range []string{"polymarket", "kalshi", "limitless", "manifold"} {
		vc, ok := cfg.Venues.Venue(name)
		if !ok {
			t.Errorf("Venue(%q) not found", name)
			continue
		}
		if vc.BaseURL == "" {
			t.Errorf("Venue(%q) has no default base url", name)
		}
	}

	if _, ok := cfg.Venues.Venue("augur"); ok {
		t.Error("Venue accepted an unknown name")
	}
}

func TestDurationText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("5m")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.Duration != 5*time.Minute {
		t.Errorf("parsed = %s, want 5m", d.Duration)
	}

	out, err := duration{90 * time.Second}.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(out) != "1m30s" {
		t.Errorf("encoded = %q, want 1m30s", out)
	}

	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}

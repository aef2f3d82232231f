package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Market.OperatorAddress = "0x0000000000000000000000000000000000000A11"
	return cfg
}

func TestDefaults_Validate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults+operator = %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad mode", func(c *Config) { c.Mode = "daemon" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "unknown log_level"},
		{"zero custody", func(c *Config) { c.Market.CustodyAddress = "0x0000000000000000000000000000000000000000" }, "custody_address"},
		{"bad custody hex", func(c *Config) { c.Market.CustodyAddress = "nothex" }, "custody_address"},
		{"no operator", func(c *Config) { c.Market.OperatorAddress = ""; c.Market.OperatorKeyPath = "" }, "operator_address or operator_key_path"},
		{"key without password", func(c *Config) { c.Market.OperatorKeyPath = "/k.json"; c.Market.OperatorKeyPass = "" }, "operator_key_password"},
		{"custody equals operator", func(c *Config) { c.Market.OperatorAddress = c.Market.CustodyAddress }, "must differ"},
		{"bad db port", func(c *Config) { c.Database.Port = 0 }, "database: port"},
		{"pool min over max", func(c *Config) { c.Database.PoolMinConns = 20 }, "pool_min_conns"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "server: port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "serve"
log_level = "debug"

[market]
operator_address = "0x0000000000000000000000000000000000000A11"

[server]
port = 9100
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MARKETD_SERVER_PORT", "9200")
	t.Setenv("MARKETD_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("MARKETD_NOTIFY_EVENTS", "sale, withdraw")
	t.Setenv("MARKETD_MARKET_REQUIRE_SIGNATURES", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Env beats file.
	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if len(cfg.Notify.Events) != 2 || cfg.Notify.Events[0] != "sale" || cfg.Notify.Events[1] != "withdraw" {
		t.Errorf("Notify.Events = %v", cfg.Notify.Events)
	}
	if !cfg.Market.RequireSignatures {
		t.Error("RequireSignatures not overridden")
	}
	// Untouched defaults survive.
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want default 5432", cfg.Database.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after Load = %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "hunter2"
	cfg.Server.APIKey = "key"
	cfg.Notify.WebhookSecret = "whsec"

	red := RedactedConfig(&cfg)
	if red.Database.Password != "***" || red.Server.APIKey != "***" || red.Notify.WebhookSecret != "***" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	// The original is untouched.
	if cfg.Database.Password != "hunter2" {
		t.Error("RedactedConfig mutated the original")
	}
	// Empty secrets stay empty rather than becoming "***".
	if red.Redis.Password != "" {
		t.Errorf("empty secret redacted to %q", red.Redis.Password)
	}
}

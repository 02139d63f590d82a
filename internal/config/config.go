// Package config defines the top-level configuration for the marker auction
// service and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCTEBID_* environment variables.
type Config struct {
	Listener         ListenerConfig           `toml:"listener"`
	Auctions         AuctionConfig            `toml:"auctions"`
	Triggers         map[string]TriggerConfig `toml:"triggers"`
	ContextModifiers map[string]float64       `toml:"context_modifiers"`
	Settlement       SettlementConfig         `toml:"settlement"`
	Storage          StorageConfig            `toml:"storage"`
	Postgres         PostgresConfig           `toml:"postgres"`
	Redis            RedisConfig              `toml:"redis"`
	S3               S3Config                 `toml:"s3"`
	Server           ServerConfig             `toml:"server"`
	Notify           NotifyConfig             `toml:"notify"`
	Mode             string                   `toml:"mode"`
	LogLevel         string                   `toml:"log_level"`
}

// ListenerConfig holds the UDP marker listener parameters.
type ListenerConfig struct {
	Enabled         bool     `toml:"enabled"`
	BindAddress     string   `toml:"bind_address"`
	UDPPort         int      `toml:"udp_port"`
	BufferSize      int      `toml:"buffer_size"`
	ReceiveTimeout  duration `toml:"receive_timeout"`
	Workers         int      `toml:"workers"`
	QueueSize       int      `toml:"queue_size"`
	RateLimitPerSec int      `toml:"rate_limit_per_sec"`
	DedupWindow     duration `toml:"dedup_window"`
	RecentMarkers   int      `toml:"recent_markers"`
}

// Addr returns the host:port the listener binds to.
func (l ListenerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.BindAddress, l.UDPPort)
}

// AuctionConfig holds admission, lifecycle and resolution parameters.
type AuctionConfig struct {
	AutoExecute       bool     `toml:"auto_execute"`
	ActivationDelay   duration `toml:"activation_delay"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	LoadShedRatio     float64  `toml:"load_shed_ratio"`
	MinValue          float64  `toml:"min_value"`
	DefaultDurationMs int64    `toml:"default_duration_ms"`
	MinDurationMs     int64    `toml:"min_duration_ms"`
	MaxDurationMs     int64    `toml:"max_duration_ms"`
	ReserveRatio      float64  `toml:"reserve_ratio"`
	IncrementRatio    float64  `toml:"increment_ratio"`
	MinIncrement      float64  `toml:"min_increment"`
	MaxRounds         int      `toml:"max_rounds"`
	SweepInterval     duration `toml:"sweep_interval"`
	LockTTL           duration `toml:"lock_ttl"`
}

// TriggerConfig is the valuation entry for one trigger type.
type TriggerConfig struct {
	BaseValue  float64 `toml:"base_value"`
	Importance string  `toml:"importance"`
	Multiplier float64 `toml:"multiplier"`
}

// SettlementConfig holds revenue split rates.
type SettlementConfig struct {
	CommissionRate       float64 `toml:"commission_rate"`
	BroadcasterRate      float64 `toml:"broadcaster_rate"`
	PlatformRate         float64 `toml:"platform_rate"`
	InitialPaymentStatus string  `toml:"initial_payment_status"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
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

// RedisConfig holds Redis connection parameters. When disabled the service
// uses in-process locks, bus and rate limiter.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
	Namespace    string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	QueueSize      int    `toml:"queue_size"`
	BatchCron      string `toml:"batch_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "100ms", "1s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	APIKeyHash      string   `toml:"api_key_hash"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebhookURL        string   `toml:"webhook_url"`
	WebhookSecret     string   `toml:"webhook_secret"`
	Events            []string `toml:"events"`
}

// DefaultTriggers returns the built-in valuation table keyed by trigger type.
func DefaultTriggers() map[string]TriggerConfig {
	return map[string]TriggerConfig{
		"goal_scored":       {BaseValue: 5000, Importance: "critical", Multiplier: 1.0},
		"assist":            {BaseValue: 2000, Importance: "high", Multiplier: 0.4},
		"penalty":           {BaseValue: 1500, Importance: "normal", Multiplier: 1.0},
		"save":              {BaseValue: 2500, Importance: "high", Multiplier: 1.0},
		"fight":             {BaseValue: 3500, Importance: "high", Multiplier: 1.2},
		"power_play":        {BaseValue: 2000, Importance: "normal", Multiplier: 1.0},
		"power_play_goal":   {BaseValue: 6000, Importance: "critical", Multiplier: 1.3},
		"short_handed_goal": {BaseValue: 7000, Importance: "critical", Multiplier: 1.5},
		"overtime":          {BaseValue: 4000, Importance: "high", Multiplier: 1.5},
		"shootout":          {BaseValue: 3000, Importance: "high", Multiplier: 1.2},
		"shootout_goal":     {BaseValue: 8000, Importance: "critical", Multiplier: 2.0},
		"commercial_break":  {BaseValue: 500, Importance: "low", Multiplier: 1.0},
		"instant_replay":    {BaseValue: 3000, Importance: "high", Multiplier: 1.1},
		"highlight":         {BaseValue: 2500, Importance: "high", Multiplier: 1.0},
	}
}

// DefaultContextModifiers returns the built-in context multipliers.
func DefaultContextModifiers() map[string]float64 {
	return map[string]float64{
		"is_overtime":   1.5,
		"is_playoffs":   2.0,
		"is_finals":     3.0,
		"star_player":   1.25,
		"rival_teams":   1.3,
		"late_period":   1.2,
		"close_game":    1.4,
		"sellout_crowd": 1.1,
	}
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Listener: ListenerConfig{
			Enabled:         true,
			BindAddress:     "0.0.0.0",
			UDPPort:         9999,
			BufferSize:      4096,
			ReceiveTimeout:  duration{time.Second},
			Workers:         4,
			QueueSize:       256,
			RateLimitPerSec: 0,
			DedupWindow:     duration{0},
			RecentMarkers:   50,
		},
		Auctions: AuctionConfig{
			AutoExecute:       true,
			ActivationDelay:   duration{100 * time.Millisecond},
			MaxConcurrent:     10,
			LoadShedRatio:     0.8,
			MinValue:          100,
			DefaultDurationMs: 500,
			MinDurationMs:     100,
			MaxDurationMs:     5000,
			ReserveRatio:      0.7,
			IncrementRatio:    0.1,
			MinIncrement:      50,
			MaxRounds:         1000,
			SweepInterval:     duration{time.Second},
			LockTTL:           duration{5 * time.Second},
		},
		Triggers:         DefaultTriggers(),
		ContextModifiers: DefaultContextModifiers(),
		Settlement: SettlementConfig{
			CommissionRate:       0.05,
			BroadcasterRate:      0.85,
			PlatformRate:         0.10,
			InitialPaymentStatus: "pending",
		},
		Storage: StorageConfig{
			Driver:     "memory",
			SQLitePath: "data/scteauction.db",
		},
		Postgres: PostgresConfig{
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
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
			Namespace:    "scte",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "scteauction-archive",
			ForcePathStyle: true,
			Prefix:         "auctions",
			QueueSize:      256,
			BatchCron:      "5 0 * * *",
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 0,
		},
		Notify: NotifyConfig{
			Events: []string{"auction_won", "auction_no_sale", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"ingest": true,
	"api":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
}

var validImportance = map[string]bool{
	"low":      true,
	"normal":   true,
	"high":     true,
	"critical": true,
}

var validPaymentStatus = map[string]bool{
	"pending":   true,
	"completed": true,
	"failed":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, ingest, api)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Listener
	if c.Listener.Enabled {
		if c.Listener.UDPPort <= 0 || c.Listener.UDPPort > 65535 {
			errs = append(errs, fmt.Sprintf("listener: udp_port must be 1-65535, got %d", c.Listener.UDPPort))
		}
		if c.Listener.BufferSize < 14 {
			errs = append(errs, "listener: buffer_size must be >= 14")
		}
		if c.Listener.ReceiveTimeout.Duration <= 0 {
			errs = append(errs, "listener: receive_timeout must be > 0")
		}
		if c.Listener.Workers < 1 {
			errs = append(errs, "listener: workers must be >= 1")
		}
		if c.Listener.QueueSize < 1 {
			errs = append(errs, "listener: queue_size must be >= 1")
		}
	}
	if c.Listener.RateLimitPerSec < 0 {
		errs = append(errs, "listener: rate_limit_per_sec must be >= 0")
	}
	if c.Listener.DedupWindow.Duration < 0 {
		errs = append(errs, "listener: dedup_window must be >= 0")
	}
	if c.Listener.RecentMarkers < 1 {
		errs = append(errs, "listener: recent_markers must be >= 1")
	}

	// Auctions
	a := c.Auctions
	if a.MaxConcurrent < 1 {
		errs = append(errs, "auctions: max_concurrent must be >= 1")
	}
	if a.LoadShedRatio <= 0 || a.LoadShedRatio > 1 {
		errs = append(errs, "auctions: load_shed_ratio must be in (0, 1]")
	}
	if a.MinValue < 0 {
		errs = append(errs, "auctions: min_value must be >= 0")
	}
	if a.MinDurationMs <= 0 {
		errs = append(errs, "auctions: min_duration_ms must be > 0")
	}
	if a.MinDurationMs > a.DefaultDurationMs || a.DefaultDurationMs > a.MaxDurationMs {
		errs = append(errs, "auctions: durations must satisfy min_duration_ms <= default_duration_ms <= max_duration_ms")
	}
	if a.ReserveRatio < 0 {
		errs = append(errs, "auctions: reserve_ratio must be >= 0")
	}
	if a.IncrementRatio <= 0 && a.MinIncrement <= 0 {
		errs = append(errs, "auctions: increment_ratio or min_increment must be > 0")
	}
	if a.MaxRounds < 1 {
		errs = append(errs, "auctions: max_rounds must be >= 1")
	}
	if a.ActivationDelay.Duration < 0 {
		errs = append(errs, "auctions: activation_delay must be >= 0")
	}
	if a.SweepInterval.Duration <= 0 {
		errs = append(errs, "auctions: sweep_interval must be > 0")
	}
	if a.LockTTL.Duration <= 0 {
		errs = append(errs, "auctions: lock_ttl must be > 0")
	}

	// Triggers
	for name, t := range c.Triggers {
		if t.BaseValue < 0 {
			errs = append(errs, fmt.Sprintf("triggers.%s: base_value must be >= 0", name))
		}
		if !validImportance[t.Importance] {
			errs = append(errs, fmt.Sprintf("triggers.%s: unknown importance %q", name, t.Importance))
		}
		if t.Multiplier <= 0 {
			errs = append(errs, fmt.Sprintf("triggers.%s: multiplier must be > 0", name))
		}
	}
	for name, m := range c.ContextModifiers {
		if m <= 0 {
			errs = append(errs, fmt.Sprintf("context_modifiers.%s must be > 0", name))
		}
	}

	// Settlement
	s := c.Settlement
	if s.CommissionRate < 0 || s.BroadcasterRate < 0 || s.PlatformRate < 0 {
		errs = append(errs, "settlement: rates must be >= 0")
	}
	if sum := s.CommissionRate + s.BroadcasterRate + s.PlatformRate; math.Abs(sum-1.0) > 1e-9 {
		errs = append(errs, fmt.Sprintf("settlement: commission_rate + broadcaster_rate + platform_rate must equal 1.0, got %g", sum))
	}
	if !validPaymentStatus[s.InitialPaymentStatus] {
		errs = append(errs, fmt.Sprintf("settlement: unknown initial_payment_status %q", s.InitialPaymentStatus))
	}

	// Storage
	if !validDrivers[c.Storage.Driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres, sqlite)", c.Storage.Driver))
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLitePath == "" {
		errs = append(errs, "storage: sqlite_path must not be empty for driver sqlite")
	}
	if c.Storage.Driver == "postgres" {
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
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.QueueSize < 1 {
			errs = append(errs, "s3: queue_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimitPerMin < 0 {
		errs = append(errs, "server: rate_limit_per_min must be >= 0")
	}

	if c.Mode == "ingest" && !c.Listener.Enabled {
		errs = append(errs, "listener: must be enabled for mode ingest")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

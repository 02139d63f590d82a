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
// built-in defaults, applies SCTEBID_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated.
//
// Trigger entries in the file are merged per type, so a file that only sets
// [triggers.goal_scored] keeps the remaining default types.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, err
		}
		fillTriggerDefaults(&cfg, md)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// fillTriggerDefaults completes trigger entries the file only partially
// defined. The decoder keeps untouched map keys but zeroes unset fields of a
// table it decodes, so those fields fall back to the built-in entry for the
// type, or to {1000, normal, 1.0} for types without one.
func fillTriggerDefaults(cfg *Config, md toml.MetaData) {
	defaults := DefaultTriggers()
	for name, t := range cfg.Triggers {
		def, ok := defaults[name]
		if !ok {
			def = TriggerConfig{BaseValue: 1000, Importance: "normal", Multiplier: 1.0}
		}
		if !md.IsDefined("triggers", name, "base_value") {
			t.BaseValue = def.BaseValue
		}
		if !md.IsDefined("triggers", name, "importance") {
			t.Importance = def.Importance
		}
		if !md.IsDefined("triggers", name, "multiplier") {
			t.Multiplier = def.Multiplier
		}
		cfg.Triggers[name] = t
	}
}

// applyEnvOverrides reads well-known SCTEBID_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Listener ──
	setBool(&cfg.Listener.Enabled, "SCTEBID_LISTENER_ENABLED")
	setStr(&cfg.Listener.BindAddress, "SCTEBID_LISTENER_BIND_ADDRESS")
	setInt(&cfg.Listener.UDPPort, "SCTEBID_LISTENER_UDP_PORT")
	setInt(&cfg.Listener.BufferSize, "SCTEBID_LISTENER_BUFFER_SIZE")
	setDuration(&cfg.Listener.ReceiveTimeout, "SCTEBID_LISTENER_RECEIVE_TIMEOUT")
	setInt(&cfg.Listener.Workers, "SCTEBID_LISTENER_WORKERS")
	setInt(&cfg.Listener.QueueSize, "SCTEBID_LISTENER_QUEUE_SIZE")
	setInt(&cfg.Listener.RateLimitPerSec, "SCTEBID_LISTENER_RATE_LIMIT_PER_SEC")
	setDuration(&cfg.Listener.DedupWindow, "SCTEBID_LISTENER_DEDUP_WINDOW")
	setInt(&cfg.Listener.RecentMarkers, "SCTEBID_LISTENER_RECENT_MARKERS")

	// ── Auctions ──
	setBool(&cfg.Auctions.AutoExecute, "SCTEBID_AUCTIONS_AUTO_EXECUTE")
	setDuration(&cfg.Auctions.ActivationDelay, "SCTEBID_AUCTIONS_ACTIVATION_DELAY")
	setInt(&cfg.Auctions.MaxConcurrent, "SCTEBID_AUCTIONS_MAX_CONCURRENT")
	setFloat64(&cfg.Auctions.MinValue, "SCTEBID_AUCTIONS_MIN_VALUE")
	setInt64(&cfg.Auctions.DefaultDurationMs, "SCTEBID_AUCTIONS_DEFAULT_DURATION_MS")
	setInt64(&cfg.Auctions.MinDurationMs, "SCTEBID_AUCTIONS_MIN_DURATION_MS")
	setInt64(&cfg.Auctions.MaxDurationMs, "SCTEBID_AUCTIONS_MAX_DURATION_MS")
	setInt(&cfg.Auctions.MaxRounds, "SCTEBID_AUCTIONS_MAX_ROUNDS")
	setDuration(&cfg.Auctions.SweepInterval, "SCTEBID_AUCTIONS_SWEEP_INTERVAL")

	// ── Settlement ──
	setFloat64(&cfg.Settlement.CommissionRate, "SCTEBID_SETTLEMENT_COMMISSION_RATE")
	setFloat64(&cfg.Settlement.BroadcasterRate, "SCTEBID_SETTLEMENT_BROADCASTER_RATE")
	setFloat64(&cfg.Settlement.PlatformRate, "SCTEBID_SETTLEMENT_PLATFORM_RATE")
	setStr(&cfg.Settlement.InitialPaymentStatus, "SCTEBID_SETTLEMENT_INITIAL_PAYMENT_STATUS")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "SCTEBID_STORAGE_DRIVER")
	setStr(&cfg.Storage.SQLitePath, "SCTEBID_STORAGE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SCTEBID_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SCTEBID_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCTEBID_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCTEBID_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCTEBID_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCTEBID_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCTEBID_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SCTEBID_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SCTEBID_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SCTEBID_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SCTEBID_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SCTEBID_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCTEBID_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCTEBID_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCTEBID_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCTEBID_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SCTEBID_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "SCTEBID_REDIS_STREAM_MAX_LEN")
	setStr(&cfg.Redis.Namespace, "SCTEBID_REDIS_NAMESPACE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SCTEBID_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SCTEBID_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SCTEBID_S3_REGION")
	setStr(&cfg.S3.Bucket, "SCTEBID_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SCTEBID_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SCTEBID_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SCTEBID_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SCTEBID_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "SCTEBID_S3_PREFIX")
	setInt(&cfg.S3.QueueSize, "SCTEBID_S3_QUEUE_SIZE")
	setStr(&cfg.S3.BatchCron, "SCTEBID_S3_BATCH_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCTEBID_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCTEBID_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SCTEBID_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SCTEBID_SERVER_API_KEY")
	setStr(&cfg.Server.APIKeyHash, "SCTEBID_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimitPerMin, "SCTEBID_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCTEBID_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCTEBID_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SCTEBID_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "SCTEBID_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookSecret, "SCTEBID_NOTIFY_WEBHOOK_SECRET")
	setStringSlice(&cfg.Notify.Events, "SCTEBID_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SCTEBID_MODE")
	setStr(&cfg.LogLevel, "SCTEBID_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9999, cfg.Listener.UDPPort)
	assert.Equal(t, "0.0.0.0", cfg.Listener.BindAddress)
	assert.Equal(t, 4096, cfg.Listener.BufferSize)
	assert.Equal(t, 50, cfg.Listener.RecentMarkers)
	assert.Equal(t, time.Second, cfg.Listener.ReceiveTimeout.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Auctions.ActivationDelay.Duration)
	assert.Equal(t, 10, cfg.Auctions.MaxConcurrent)
	assert.Equal(t, 1000, cfg.Auctions.MaxRounds)
	assert.Equal(t, "pending", cfg.Settlement.InitialPaymentStatus)
	assert.Zero(t, cfg.Listener.DedupWindow.Duration)
	assert.Equal(t, 1.5, cfg.ContextModifiers["is_overtime"])
	assert.Equal(t, TriggerConfig{BaseValue: 5000, Importance: "critical", Multiplier: 1.0}, cfg.Triggers["goal_scored"])
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Settlement.PlatformRate = 0.2
	cfg.Auctions.MaxConcurrent = 0
	cfg.Storage.Driver = "mongo"
	cfg.Triggers["goal_scored"] = TriggerConfig{BaseValue: 1, Importance: "urgent", Multiplier: 1}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "must equal 1.0")
	assert.Contains(t, msg, "max_concurrent")
	assert.Contains(t, msg, `unknown driver "mongo"`)
	assert.Contains(t, msg, `triggers.goal_scored: unknown importance "urgent"`)
}

func TestValidateDurationOrdering(t *testing.T) {
	cfg := Defaults()
	cfg.Auctions.DefaultDurationMs = 6000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_duration_ms <= default_duration_ms <= max_duration_ms")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "ingest"

[listener]
udp_port = 10001
dedup_window = "250ms"

[auctions]
activation_delay = "0s"
max_concurrent = 3

[triggers.goal_scored]
base_value = 6000

[triggers.faceoff]
base_value = 200
importance = "low"

[context_modifiers]
is_playoffs = 2.5
home_opener = 1.1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, 10001, cfg.Listener.UDPPort)
	assert.Equal(t, 4096, cfg.Listener.BufferSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Listener.DedupWindow.Duration)
	assert.Zero(t, cfg.Auctions.ActivationDelay.Duration)
	assert.Equal(t, 3, cfg.Auctions.MaxConcurrent)

	// Partially defined entries keep the built-in fields they omit.
	assert.Equal(t, TriggerConfig{BaseValue: 6000, Importance: "critical", Multiplier: 1.0}, cfg.Triggers["goal_scored"])
	assert.Equal(t, TriggerConfig{BaseValue: 200, Importance: "low", Multiplier: 1.0}, cfg.Triggers["faceoff"])
	assert.Equal(t, DefaultTriggers()["assist"], cfg.Triggers["assist"])

	assert.Equal(t, 2.5, cfg.ContextModifiers["is_playoffs"])
	assert.Equal(t, 1.1, cfg.ContextModifiers["home_opener"])
	assert.Equal(t, 1.5, cfg.ContextModifiers["is_overtime"])
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o600))

	t.Setenv("SCTEBID_LISTENER_UDP_PORT", "12000")
	t.Setenv("SCTEBID_AUCTIONS_AUTO_EXECUTE", "false")
	t.Setenv("SCTEBID_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SCTEBID_LISTENER_DEDUP_WINDOW", "2s")
	t.Setenv("SCTEBID_REDIS_STREAM_MAX_LEN", "not-a-number")
	t.Setenv("SCTEBID_REDIS_NAMESPACE", "scte-staging")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 12000, cfg.Listener.UDPPort)
	assert.False(t, cfg.Auctions.AutoExecute)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.Listener.DedupWindow.Duration)
	assert.Equal(t, int64(10000), cfg.Redis.StreamMaxLen, "unparseable values are ignored")
	assert.Equal(t, "scte-staging", cfg.Redis.Namespace)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Notify.WebhookSecret = "secret"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.WebhookSecret)
	assert.Empty(t, out.Redis.Password)

	out.Triggers["goal_scored"] = TriggerConfig{}
	assert.Equal(t, 5000.0, cfg.Triggers["goal_scored"].BaseValue)
	assert.Equal(t, "pw", cfg.Postgres.Password)
}

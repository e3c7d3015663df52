package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hardhatKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsNeedOnlyAKey(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")

	cfg.Wallet.PrivateKey = hardhatKey
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	path := writeTOML(t, `
mode = "derive"

[wallet]
private_key = "`+hardhatKey+`"

[reconcile]
interval = "500ms"
timeout = "10s"

[server]
port = 9100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeDerive, cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconcile.Interval.Duration)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.Timeout.Duration)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POLYTRADE_WALLET_PRIVATE_KEY", hardhatKey)
	t.Setenv("POLYTRADE_SERVER_PORT", "9200")
	t.Setenv("POLYTRADE_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("POLYTRADE_RECONCILE_TIMEOUT", "1m")
	t.Setenv("POLYTRADE_POSTGRES_ENABLED", "true")
	t.Setenv("POLYTRADE_SERVER_RATE_LIMIT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, hardhatKey, cfg.Wallet.PrivateKey)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.Reconcile.Timeout.Duration)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, 120, cfg.Server.RateLimit, "unparsable values keep the default")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POLYTRADE_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("POLYTRADE_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Wallet.EncryptedKeyPath = "/keys/k.json"
	cfg.Polymarket.ProxyFactory = "nope"
	cfg.Reconcile.Timeout = duration{time.Second}
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		"key_password is required",
		"proxy_factory",
		"timeout must not be shorter",
		"telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestServerOnlyChecksApplyToServerMode(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = hardhatKey
	cfg.Redis.Addr = ""
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg.Mode = ModeInspect
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = hardhatKey
	cfg.Server.APIKey = "api"
	cfg.Postgres.DSN = "postgres://u:p@h/db"

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Wallet.PrivateKey)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Equal(t, redacted, out.Postgres.DSN)
	assert.Empty(t, out.Wallet.KeyPassword, "empty secrets stay empty")
	assert.Equal(t, hardhatKey, cfg.Wallet.PrivateKey, "original untouched")

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	t.Chdir(t.TempDir())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

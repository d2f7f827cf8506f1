package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ResponderSimulator, cfg.Responder.Kind)
	assert.Equal(t, 60*time.Second, cfg.Responder.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Responder.Delay)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, []string{"tenant-1", "tenant-2", "tenant-3"}, cfg.Catalog.Tenants)
	assert.False(t, cfg.SeedDemo)
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_REDIS", "redis://localhost:6379/2")
	t.Setenv("RAGCHAT_TEST_KEY", "sk-test")

	path := writeConfig(t, `
logging:
  level: debug
  dir: /tmp/ragchat-logs
telemetry:
  enabled: true
store:
  driver: sqlite
  dsn: ragchat.db
responder:
  kind: llm
  timeout: 30s
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: ${RAGCHAT_TEST_KEY}
cache:
  enabled: true
  driver: redis
  url: ${RAGCHAT_TEST_REDIS}
  ttl: 10m
catalog:
  tenants: [acme]
  entities: [invoices, contracts]
seed_demo: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/ragchat-logs", cfg.Logging.Dir)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "ragchat", cfg.Telemetry.ServiceName, "unset fields keep defaults")
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Responder.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Responder.Delay)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Cache.URL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "ragchat:reply:", cfg.Cache.Prefix)
	assert.Equal(t, []string{"acme"}, cfg.Catalog.Tenants)
	assert.Equal(t, []string{"invoices", "contracts"}, cfg.Catalog.Entities)
	assert.True(t, cfg.SeedDemo)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"bad yaml":          {"logging: [", "parsing config file"},
		"bad duration":      {"responder:\n  timeout: soon", `parsing responder.timeout "soon"`},
		"bad level":         {"logging:\n  level: loud", `unknown logging.level "loud"`},
		"bad store":         {"store:\n  driver: postgres", `unknown store.driver "postgres"`},
		"sqlite needs dsn":  {"store:\n  driver: sqlite", "store.dsn is required"},
		"bad kind":          {"responder:\n  kind: oracle", `unknown responder.kind "oracle"`},
		"bad provider":      {"responder:\n  kind: llm\nllm:\n  provider: gemini", `unknown llm.provider "gemini"`},
		"mcp needs servers": {"responder:\n  kind: mcp", "mcp.servers is required"},
		"redis needs url":   {"cache:\n  enabled: true\n  driver: redis", "cache.url is required"},
		"bad cache":         {"cache:\n  enabled: true\n  driver: memcached", `unknown cache.driver "memcached"`},
		"empty tenants":     {"catalog:\n  tenants: []", "catalog.tenants must not be empty"},
		"negative timeout":  {"responder:\n  timeout: -1s", "responder.timeout must not be negative"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParse_DisabledCacheIgnoresDriver(t *testing.T) {
	cfg, err := Parse([]byte("cache:\n  driver: memcached"))
	require.NoError(t, err)
	assert.False(t, cfg.Cache.Enabled)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_HOST", "docs.internal")
	os.Unsetenv("RAGCHAT_TEST_UNSET")

	assert.Equal(t, "ws://docs.internal/mcp", expandEnvVars("ws://${RAGCHAT_TEST_HOST}/mcp"))
	assert.Equal(t, "key: ", expandEnvVars("key: ${RAGCHAT_TEST_UNSET}"))
	assert.Equal(t, "$HOME stays", expandEnvVars("$HOME stays"))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestFinalize_AfterOverride(t *testing.T) {
	cfg := Default()
	cfg.Responder.DelayRaw = "250ms"
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, 250*time.Millisecond, cfg.Responder.Delay)
}

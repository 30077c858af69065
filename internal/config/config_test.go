package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, 1, cfg.Dispatcher.MinWorkers)
	require.Equal(t, 10, cfg.Dispatcher.MaxWorkers)
	require.Equal(t, 10*time.Second, cfg.Dispatcher.IdleTimeout)
	require.Zero(t, cfg.Dispatcher.QueueDepth)
	require.Equal(t, 8, cfg.Sync.PhaseConcurrency)
	require.Zero(t, cfg.Sync.Limit)
	require.Equal(t, []string{"Codeforces", "AtCoder", "Dummy"}, cfg.Providers)
	require.Equal(t, KindMemory, cfg.Catalog.Kind)
	require.Equal(t, KindMemory, cfg.Progress.Kind)
	require.False(t, cfg.PubSub.Enabled())
	require.False(t, cfg.Fetch.RespectRobots)
	require.Equal(t, map[string]float64{"codeforces.com": 0.5}, cfg.Fetch.HostRPS())

	require.Equal(t, RetryConfig{MaxAttempts: 3, Delay: 5 * time.Second}, cfg.Fetch.PolicyFor("Codeforces"))
	require.Equal(t, RetryConfig{MaxAttempts: 5, Delay: 3 * time.Second}, cfg.Fetch.PolicyFor("AtCoder"))
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 0
logging:
  development: false
dispatcher:
  min_workers: 2
  max_workers: 4
  idle_timeout: 30s
  pool_queue_depth: 16
sync:
  namespace: judge
  limit: 25
  phase_concurrency: 3
fetch:
  max_attempts: 2
  delay: 1s
  timeout: 5s
  user_agent: test-agent
  rate_per_host: 0.5
  burst: 2
  respect_robots: true
  host_limits:
    - host: atcoder.jp
      rps: 1
  policies:
    codeforces:
      max_attempts: 7
      delay: 250ms
providers: ["Dummy"]
catalog:
  kind: blob
storage:
  kind: gcs
  gcs_bucket: problems
  prefix: synced
progress:
  kind: file
  path: /var/lib/judge-sync/progress.json
pubsub:
  project_id: demo
  topic: sync-events
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Zero(t, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, 4, cfg.Dispatcher.MaxWorkers)
	require.Equal(t, 30*time.Second, cfg.Dispatcher.IdleTimeout)
	require.Equal(t, 16, cfg.Dispatcher.QueueDepth)
	require.Equal(t, "judge", cfg.Sync.Namespace)
	require.Equal(t, 25, cfg.Sync.Limit)
	require.Equal(t, 3, cfg.Sync.PhaseConcurrency)
	require.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	require.InDelta(t, 0.5, cfg.Fetch.RatePerHost, 1e-9)
	require.True(t, cfg.Fetch.RespectRobots)
	require.Equal(t, []string{"Dummy"}, cfg.Providers)
	require.Equal(t, map[string]float64{"atcoder.jp": 1}, cfg.Fetch.HostRPS())
	require.Equal(t, KindBlob, cfg.Catalog.Kind)
	require.Equal(t, "problems", cfg.Storage.GCSBucket)
	require.Equal(t, "/var/lib/judge-sync/progress.json", cfg.Progress.Path)
	require.True(t, cfg.PubSub.Enabled())

	require.Equal(t, RetryConfig{MaxAttempts: 7, Delay: 250 * time.Millisecond}, cfg.Fetch.PolicyFor("Codeforces"))
	require.Equal(t, RetryConfig{MaxAttempts: 5, Delay: 3 * time.Second}, cfg.Fetch.PolicyFor("AtCoder"))
	require.Equal(t, RetryConfig{MaxAttempts: 2, Delay: time.Second}, cfg.Fetch.PolicyFor("Dummy"))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JUDGESYNC_SYNC_NAMESPACE", "env-ns")
	t.Setenv("JUDGESYNC_SERVER_PORT", "9191")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "env-ns", cfg.Sync.Namespace)
	require.Equal(t, 9191, cfg.Server.Port)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "negative port", mutate: func(c *Config) { c.Server.Port = -1 }, want: "server.port"},
		{name: "no workers", mutate: func(c *Config) { c.Dispatcher.MaxWorkers = 0 }, want: "dispatcher.max_workers"},
		{
			name:   "min above max",
			mutate: func(c *Config) { c.Dispatcher.MinWorkers = 20 },
			want:   "dispatcher.min_workers",
		},
		{name: "negative limit", mutate: func(c *Config) { c.Sync.Limit = -1 }, want: "sync.limit"},
		{name: "no attempts", mutate: func(c *Config) { c.Fetch.MaxAttempts = 0 }, want: "fetch.max_attempts"},
		{name: "no timeout", mutate: func(c *Config) { c.Fetch.Timeout = 0 }, want: "fetch.timeout"},
		{name: "no providers", mutate: func(c *Config) { c.Providers = nil }, want: "providers"},
		{name: "unknown catalog", mutate: func(c *Config) { c.Catalog.Kind = "ftp" }, want: "catalog.kind"},
		{name: "rest without url", mutate: func(c *Config) { c.Catalog.Kind = KindREST }, want: "catalog.base_url"},
		{
			name: "gcs without bucket",
			mutate: func(c *Config) {
				c.Catalog.Kind = KindBlob
				c.Storage.Kind = KindGCS
			},
			want: "storage.gcs_bucket",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Progress.Kind = KindPostgres
			},
			want: "progress.dsn",
		},
		{name: "half pubsub", mutate: func(c *Config) { c.PubSub.Topic = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

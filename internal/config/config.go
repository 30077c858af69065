// Package config loads and validates judge-sync configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/judge-sync/internal/syncer"
	"github.com/JakeFAU/judge-sync/internal/worker"
)

// Backend kinds.
const (
	KindMemory   = "memory"
	KindREST     = "rest"
	KindBlob     = "blob"
	KindLocal    = "local"
	KindGCS      = "gcs"
	KindFile     = "file"
	KindPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Dispatcher worker.Config  `mapstructure:"dispatcher"`
	Sync       syncer.Config  `mapstructure:"sync"`
	Fetch      FetchConfig    `mapstructure:"fetch"`
	Providers  []string       `mapstructure:"providers"`
	Catalog    CatalogConfig  `mapstructure:"catalog"`
	Storage    StorageConfig  `mapstructure:"storage"`
	Progress   ProgressConfig `mapstructure:"progress"`
	PubSub     PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls the HTTP API. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RetryConfig is the fixed-interval retry budget of a provider's fetches.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// FetchConfig governs the HTTP transport shared by providers.
type FetchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	RatePerHost float64       `mapstructure:"rate_per_host"`
	Burst       int           `mapstructure:"burst"`
	// RespectRobots makes page fetches honor robots.txt.
	RespectRobots bool `mapstructure:"respect_robots"`
	// HostLimits slow down hosts that publish a stricter call limit.
	HostLimits []HostLimit `mapstructure:"host_limits"`
	// Policies overrides MaxAttempts and Delay per provider, keyed by the
	// lower-cased provider name.
	Policies map[string]RetryConfig `mapstructure:"policies"`
}

// HostLimit is the request rate allowed against one host.
type HostLimit struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// HostRPS returns HostLimits keyed by host.
func (f FetchConfig) HostRPS() map[string]float64 {
	out := make(map[string]float64, len(f.HostLimits))
	for _, hl := range f.HostLimits {
		out[hl.Host] = hl.RPS
	}
	return out
}

// PolicyFor returns the retry budget for the named provider.
func (f FetchConfig) PolicyFor(provider string) RetryConfig {
	if p, ok := f.Policies[strings.ToLower(provider)]; ok {
		if p.MaxAttempts <= 0 {
			p.MaxAttempts = f.MaxAttempts
		}
		return p
	}
	return RetryConfig{MaxAttempts: f.MaxAttempts, Delay: f.Delay}
}

// CatalogConfig selects where problems are published.
type CatalogConfig struct {
	Kind    string        `mapstructure:"kind"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the blob store behind the blob catalog: memory,
// local or gcs.
type StorageConfig struct {
	Kind      string `mapstructure:"kind"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ProgressConfig selects where watermarks are persisted.
type ProgressConfig struct {
	Kind  string `mapstructure:"kind"`
	Path  string `mapstructure:"path"`
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for sync notifications. Both fields empty
// keeps notifications in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications go to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JUDGESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("dispatcher.min_workers", 1)
	v.SetDefault("dispatcher.max_workers", 10)
	v.SetDefault("dispatcher.idle_timeout", 10*time.Second)
	v.SetDefault("dispatcher.pool_queue_depth", 0)
	v.SetDefault("sync.namespace", "")
	v.SetDefault("sync.limit", 0)
	v.SetDefault("sync.phase_concurrency", 8)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.delay", 5*time.Second)
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "judge-sync/0.1")
	v.SetDefault("fetch.rate_per_host", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.respect_robots", false)
	// The Codeforces API allows one call every two seconds.
	v.SetDefault("fetch.host_limits", []map[string]any{{"host": "codeforces.com", "rps": 0.5}})
	v.SetDefault("fetch.policies.atcoder.max_attempts", 5)
	v.SetDefault("fetch.policies.atcoder.delay", 3*time.Second)
	v.SetDefault("providers", []string{"Codeforces", "AtCoder", "Dummy"})
	v.SetDefault("catalog.kind", KindMemory)
	v.SetDefault("catalog.timeout", 30*time.Second)
	v.SetDefault("storage.kind", KindLocal)
	v.SetDefault("storage.base_dir", "catalog")
	v.SetDefault("storage.prefix", "catalog")
	v.SetDefault("progress.kind", KindMemory)
	v.SetDefault("progress.path", "progress.json")
	v.SetDefault("progress.table", "provider_progress")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port < 0 {
		return errors.New("server.port must be >= 0")
	}
	if c.Dispatcher.MaxWorkers <= 0 {
		return errors.New("dispatcher.max_workers must be > 0")
	}
	if c.Dispatcher.MinWorkers > c.Dispatcher.MaxWorkers {
		return errors.New("dispatcher.min_workers must not exceed dispatcher.max_workers")
	}
	if c.Dispatcher.QueueDepth < 0 {
		return errors.New("dispatcher.pool_queue_depth must be >= 0")
	}
	if c.Sync.Limit < 0 {
		return errors.New("sync.limit must be >= 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return errors.New("fetch.max_attempts must be > 0")
	}
	if c.Fetch.Delay < 0 {
		return errors.New("fetch.delay must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch.timeout must be > 0")
	}
	if len(c.Providers) == 0 {
		return errors.New("providers must list at least one provider")
	}
	switch c.Catalog.Kind {
	case KindMemory:
	case KindREST:
		if c.Catalog.BaseURL == "" {
			return errors.New("catalog.base_url must be set when catalog.kind is rest")
		}
	case KindBlob:
		if err := c.Storage.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown catalog.kind %q", c.Catalog.Kind)
	}
	switch c.Progress.Kind {
	case KindMemory:
	case KindFile:
		if c.Progress.Path == "" {
			return errors.New("progress.path must be set when progress.kind is file")
		}
	case KindPostgres:
		if c.Progress.DSN == "" {
			return errors.New("progress.dsn must be set when progress.kind is postgres")
		}
	default:
		return fmt.Errorf("unknown progress.kind %q", c.Progress.Kind)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return errors.New("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Kind {
	case KindMemory:
	case KindLocal:
		if s.BaseDir == "" {
			return errors.New("storage.base_dir must be set when storage.kind is local")
		}
	case KindGCS:
		if s.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set when storage.kind is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.kind %q", s.Kind)
	}
	return nil
}

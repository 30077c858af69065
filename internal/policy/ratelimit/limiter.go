// Package ratelimit paces requests per host so a sync never hammers a judge.
// Each host gets its own token bucket; hosts with a published call limit can
// be given a slower rate than the default.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/judge-sync/internal/metrics"
)

// Config holds rate limiter configuration. A non-positive rate means no
// limit for the hosts it applies to.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// HostRPS overrides DefaultRPS for specific hosts, keyed by lower-cased
	// host name without port.
	HostRPS map[string]float64
}

// Limiter hands out one token bucket per host.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.DefaultBurst <= 0 {
		cfg.DefaultBurst = 1
	}
	hosts := make(map[string]float64, len(cfg.HostRPS))
	for host, rps := range cfg.HostRPS {
		hosts[strings.ToLower(host)] = rps
	}
	cfg.HostRPS = hosts
	return &Limiter{cfg: cfg, buckets: make(map[string]*rate.Limiter)}
}

// Wait blocks until the host of rawURL may be called again or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := metrics.SanitizeHost(rawURL)
	bucket := l.bucket(host)

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[host]; ok {
		return b
	}
	rps, ok := l.cfg.HostRPS[host]
	if !ok {
		rps = l.cfg.DefaultRPS
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	b := rate.NewLimiter(limit, l.cfg.DefaultBurst)
	l.buckets[host] = b
	return b
}

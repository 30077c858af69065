// Package collyfetcher implements domain.Fetcher on top of a gocolly
// collector. It is the raw HTTP transport under fetcher.Retrying; it never
// retries on its own.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// RespectRobots makes the collector honor robots.txt of each judge.
	RespectRobots bool
	Timeout       time.Duration
	// Headers are added to every request, e.g. Accept-Language for judges
	// that localize statements.
	Headers http.Header
}

// Waiter throttles requests per target, usually a *ratelimit.Limiter.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher downloads judge pages and API documents.
type Fetcher struct {
	cfg     Config
	limiter Waiter
	base    *colly.Collector
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	// Retries revisit the same URL, so the visited set must not block them.
	base := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	})
	return &Fetcher{cfg: cfg, limiter: limiter, base: base}
}

// visit collects what the collector callbacks observed for one request.
type visit struct {
	status int
	body   []byte
	err    error
}

// Fetch GETs target and returns the body of a 2xx response. Every failure,
// including non-2xx statuses and a canceled ctx, matches domain.ErrIO.
func (f *Fetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target); err != nil {
			metrics.ObserveFetch(target, false)
			return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
		}
	}
	body, err := f.get(ctx, target)
	metrics.ObserveFetch(target, err == nil)
	return body, err
}

// get bounds the collector's request by ctx, so a canceled fetch also aborts
// the in-flight HTTP exchange instead of leaving it to the request timeout.
func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	c := f.collector()
	c.Context = ctx
	var v visit
	c.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, value := range values {
				r.Headers.Add(key, value)
			}
		}
	})
	c.OnResponse(func(r *colly.Response) {
		v.status = r.StatusCode
		v.body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			v.status = r.StatusCode
		}
		v.err = err
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(target) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrIO, target, ctx.Err())
	case err := <-done:
		switch {
		case v.status >= http.StatusBadRequest:
			return nil, fmt.Errorf("%w: GET %s: status %d", domain.ErrIO, target, v.status)
		case err != nil:
			return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrIO, target, err)
		case v.err != nil:
			return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrIO, target, v.err)
		}
		return v.body, nil
	}
}

func (f *Fetcher) collector() *colly.Collector {
	c := f.base.Clone()
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !f.cfg.RespectRobots
	c.SetRequestTimeout(f.cfg.Timeout)
	return c
}

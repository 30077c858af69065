// Package fetcher provides the fixed-interval retry wrapper used by providers
// to read remote pages and APIs.
package fetcher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Func adapts a plain function to domain.Fetcher.
type Func func(ctx context.Context, target string) ([]byte, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, target string) ([]byte, error) {
	return f(ctx, target)
}

// Policy is the attempt budget of a Retrying fetcher. The delay between
// attempts is fixed; there is no exponential growth.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Retrying retries a Fetcher with a fixed delay between attempts.
type Retrying struct {
	next   domain.Fetcher
	policy Policy
	logger *zap.Logger
}

// NewRetrying wraps next with the given policy.
func NewRetrying(next domain.Fetcher, policy Policy, logger *zap.Logger) *Retrying {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

// WithPolicy returns a copy sharing the transport but using another policy.
func (r *Retrying) WithPolicy(policy Policy) *Retrying {
	return NewRetrying(r.next, policy, r.logger)
}

// Fetch tries target up to MaxAttempts times. Cancellation of ctx while
// waiting between attempts ends the loop at once. Every failure is returned
// as *domain.AttemptsExhaustedError.
func (r *Retrying) Fetch(ctx context.Context, target string) ([]byte, error) {
	attempts := 0
	body, err := backoff.Retry(ctx,
		func() ([]byte, error) {
			attempts++
			return r.next.Fetch(ctx, target)
		},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.policy.Delay)),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Info("attempting again",
				zap.String("target", target),
				zap.Int("attempt", attempts),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, &domain.AttemptsExhaustedError{Target: target, Attempts: attempts, Err: err}
	}
	return body, nil
}

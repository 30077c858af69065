package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

func TestRetryingSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := Func(func(_ context.Context, _ string) ([]byte, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return []byte("ok"), nil
	})

	r := NewRetrying(next, Policy{MaxAttempts: 3, Delay: time.Millisecond}, zap.NewNop())
	body, err := r.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, int32(3), calls.Load())
}

func TestRetryingGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := Func(func(_ context.Context, _ string) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	r := NewRetrying(next, Policy{MaxAttempts: 4, Delay: time.Millisecond}, nil)
	_, err := r.Fetch(context.Background(), "https://example.com/p")
	require.Error(t, err)

	var exhausted *domain.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, "https://example.com/p", exhausted.Target)
	require.Equal(t, 4, exhausted.Attempts)
	require.ErrorIs(t, err, domain.ErrIO)
	require.Equal(t, int32(4), calls.Load())
}

func TestRetryingStopsWhenCanceledDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	next := Func(func(_ context.Context, _ string) ([]byte, error) {
		calls.Add(1)
		cancel()
		return nil, errors.New("boom")
	})

	r := NewRetrying(next, Policy{MaxAttempts: 5, Delay: time.Hour}, nil)
	start := time.Now()
	_, err := r.Fetch(ctx, "target")
	require.Less(t, time.Since(start), 5*time.Second)

	var exhausted *domain.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, "target", exhausted.Target)
	require.Equal(t, int32(1), calls.Load())
}

func TestRetryingZeroAttemptsMeansOne(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := Func(func(_ context.Context, _ string) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})
	_, err := NewRetrying(next, Policy{}, nil).Fetch(context.Background(), "t")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

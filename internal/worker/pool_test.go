package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	t.Parallel()

	p := New(Config{MinWorkers: 1, MaxWorkers: 4}, nil)
	var ran atomic.Int32
	var wg sync.WaitGroup
	submitted := 0
	for range 4 {
		wg.Add(1)
		if p.TrySubmit(context.Background(), func(context.Context) {
			defer wg.Done()
			ran.Add(1)
		}) {
			submitted++
		} else {
			wg.Done()
		}
	}
	wg.Wait()
	require.EqualValues(t, submitted, ran.Load())
	require.Positive(t, submitted)
	require.NoError(t, p.Close(context.Background()))
}

func TestPoolSaturationRejects(t *testing.T) {
	t.Parallel()

	p := New(Config{MinWorkers: 1, MaxWorkers: 2}, nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	block := func(context.Context) {
		started <- struct{}{}
		<-release
	}

	require.Eventually(t, func() bool { return p.TrySubmit(context.Background(), block) }, time.Second, time.Millisecond)
	<-started
	require.True(t, p.TrySubmit(context.Background(), block))
	<-started

	require.False(t, p.TrySubmit(context.Background(), block), "pool at max workers must reject")
	require.Equal(t, 2, p.Workers())

	close(release)
	require.NoError(t, p.Close(context.Background()))
	require.False(t, p.TrySubmit(context.Background(), block), "closed pool must reject")
}

func TestPoolIdleWorkersExpire(t *testing.T) {
	t.Parallel()

	p := New(Config{MinWorkers: 1, MaxWorkers: 3, IdleTimeout: 20 * time.Millisecond}, nil)
	release := make(chan struct{})
	for range 3 {
		require.Eventually(t, func() bool {
			return p.TrySubmit(context.Background(), func(context.Context) { <-release })
		}, time.Second, time.Millisecond)
	}
	require.Equal(t, 3, p.Workers())
	close(release)

	require.Eventually(t, func() bool { return p.Workers() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close(context.Background()))
}

func TestPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	p := New(Config{MinWorkers: 1, MaxWorkers: 1}, nil)
	require.Eventually(t, func() bool {
		return p.TrySubmit(context.Background(), func(context.Context) { panic("boom") })
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	require.Eventually(t, func() bool {
		return p.TrySubmit(context.Background(), func(context.Context) { close(done) })
	}, time.Second, time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	require.NoError(t, p.Close(context.Background()))
}

func TestPoolCloseDrainsBufferedTasks(t *testing.T) {
	t.Parallel()

	p := New(Config{MinWorkers: 1, MaxWorkers: 1, QueueDepth: 8}, nil)
	var ran atomic.Int32
	for range 5 {
		require.True(t, p.TrySubmit(context.Background(), func(context.Context) {
			time.Sleep(2 * time.Millisecond)
			ran.Add(1)
		}))
	}
	require.NoError(t, p.Close(context.Background()))
	require.EqualValues(t, 5, ran.Load())
}

func TestRunConvertsPanic(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), func(context.Context) { panic("bad input") })
	require.ErrorIs(t, err, ErrPanic)
	require.ErrorContains(t, err, "bad input")
	require.NoError(t, Run(context.Background(), func(context.Context) {}))
}

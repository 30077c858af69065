package scatter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGatherCollectsValuesAndFailures(t *testing.T) {
	t.Parallel()

	out := Gather(context.Background(), 4, []int{1, 2, 3, 4}, func(_ context.Context, k int) (string, error) {
		if k == 3 {
			return "", errors.New("three")
		}
		return string(rune('a' + k - 1)), nil
	})
	require.Equal(t, map[int]string{1: "a", 2: "b", 4: "d"}, out.Values)
	require.Len(t, out.Failures, 1)
	require.EqualError(t, out.Failures[3], "three")
	require.Equal(t, 3, out.OK())
	require.Equal(t, 1, out.Failed())
}

func TestGatherRespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	keys := make([]int, 20)
	for i := range keys {
		keys[i] = i
	}
	Gather(context.Background(), 3, keys, func(context.Context, int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	require.LessOrEqual(t, peak.Load(), int32(3))
	require.Positive(t, peak.Load())
}

func TestGatherCallsOncePerKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	out := Gather(context.Background(), 0, []string{"x", "x", "y"}, func(context.Context, string) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	require.EqualValues(t, 2, calls.Load())
	require.Len(t, out.Values, 2)
}

func TestGatherRecoversPanics(t *testing.T) {
	t.Parallel()

	out := Gather(context.Background(), 2, []int{1, 2}, func(_ context.Context, k int) (int, error) {
		if k == 1 {
			panic("bad")
		}
		return k, nil
	})
	require.ErrorContains(t, out.Failures[1], "panic: bad")
	require.Equal(t, 2, out.Values[2])
}

func TestGatherEmpty(t *testing.T) {
	t.Parallel()

	out := Gather(context.Background(), 2, nil, func(context.Context, int) (int, error) { return 0, nil })
	require.Empty(t, out.Values)
	require.Empty(t, out.Failures)
}

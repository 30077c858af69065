// Package scatter runs independent operations with bounded concurrency and
// gathers their results into a map. A failing operation leaves its key out
// of Values and never stops its siblings.
package scatter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome is the gathered result of one fan-out.
type Outcome[K comparable, V any] struct {
	Values   map[K]V
	Failures map[K]error
}

// OK reports how many operations succeeded.
func (o Outcome[K, V]) OK() int { return len(o.Values) }

// Failed reports how many operations failed.
func (o Outcome[K, V]) Failed() int { return len(o.Failures) }

// Gather calls fn once per distinct key with at most limit calls in flight
// (limit <= 0 means unbounded) and returns after every call has finished.
// A panic inside fn is reported as that key's failure.
func Gather[K comparable, V any](
	ctx context.Context,
	limit int,
	keys []K,
	fn func(ctx context.Context, key K) (V, error),
) Outcome[K, V] {
	out := Outcome[K, V]{
		Values:   make(map[K]V, len(keys)),
		Failures: make(map[K]error),
	}
	var (
		mu   sync.Mutex
		g    errgroup.Group
		seen = make(map[K]struct{}, len(keys))
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		g.Go(func() error {
			v, err := call(ctx, key, fn)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failures[key] = err
				return nil
			}
			out.Values[key] = v
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func call[K comparable, V any](ctx context.Context, key K, fn func(context.Context, K) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, key)
}

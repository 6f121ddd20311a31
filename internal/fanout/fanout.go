// Package fanout runs one task per key concurrently and collects every
// outcome. A failing task never cancels its siblings.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the settled outcome of one task.
type Result[K comparable, V any] struct {
	Key   K
	Value V
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[K, V]) OK() bool { return r.Err == nil }

// Run calls fn once per key and waits for all of them. At most limit tasks
// run at once when limit > 0. Results are in completion order. emit, when
// non-nil, is called once per result as it settles; calls are serialized.
func Run[K comparable, V any](
	ctx context.Context,
	keys []K,
	limit int,
	fn func(ctx context.Context, key K) (V, error),
	emit func(Result[K, V]),
) []Result[K, V] {
	results := make([]Result[K, V], 0, len(keys))
	if len(keys) == 0 {
		return results
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, key := range keys {
		key := key
		g.Go(func() error {
			v, err := fn(ctx, key)
			r := Result[K, V]{Key: key, Value: v, Err: err}

			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
			if emit != nil {
				emit(r)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Successes returns the values of successful results, in result order.
func Successes[K comparable, V any](results []Result[K, V]) []V {
	out := make([]V, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Value)
		}
	}
	return out
}

// Failures returns the keys of failed results, in result order.
func Failures[K comparable, V any](results []Result[K, V]) []K {
	var out []K
	for _, r := range results {
		if !r.OK() {
			out = append(out, r.Key)
		}
	}
	return out
}

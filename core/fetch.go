package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// FetchFunc loads the value for a key. It must honor ctx cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// erase adapts a typed fetch to the store's untyped values.
func (f FetchFunc[T]) erase() func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return f(ctx)
	}
}

// fetchRequest describes one fetch on behalf of a subscription or a prefetch.
type fetchRequest struct {
	key      string
	label    string
	coalesce bool
	fetch    func(context.Context) (any, error)
}

// run executes req.fetch on ctx, records it and commits a successful value to the store.
func (c *Coordinator) run(ctx context.Context, req fetchRequest) (any, error) {
	seq := c.beginFetch(req.key)
	start := time.Now()
	value, err := callFetch(withFetchInfo(ctx, req.key, req.label), req.fetch)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		// Aborted, not failed, whatever the fetch returned.
		c.finishFetch(req.key, seq, nil, false)
		return nil, ErrSuperseded
	}

	err = asFetchError(req.key, err)
	c.sink.FetchDone(req.label, elapsed, err)
	if err != nil {
		c.logger.Warn("fetch failed",
			slog.String("key", req.key),
			slog.String("label", req.label),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		c.finishFetch(req.key, seq, nil, false)
		return nil, err
	}

	if !c.finishFetch(req.key, seq, value, true) {
		c.logger.Debug("discarding older fetch result", slog.String("key", req.key))
	}
	return value, nil
}

func callFetch(ctx context.Context, fetch func(context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fetch(ctx)
}

// await runs req and waits for it, giving up when token is cancelled.
// Coalesced requests share one fetch per key running on the coordinator context,
// so abandoning a wait never cancels the fetch for the other waiters.
func (c *Coordinator) await(token context.Context, req fetchRequest) (any, error) {
	if !req.coalesce {
		return c.run(token, req)
	}

	ch := c.flight.DoChan(req.key, func() (any, error) {
		return c.run(c.ctx, req)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-token.Done():
		return nil, ErrSuperseded
	}
}

// typed converts a stored value back into T.
func typed[T any](key string, value any) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}
	var zero T
	if value == nil {
		// A nil interface is a valid zero value for pointer, slice and map types.
		return zero, nil
	}
	return zero, &FetchError{Key: key, Err: fmt.Errorf("cached value has type %T, want %T", value, zero)}
}

// Prefetch warms the store for key unless its entry is still fresh for ttl.
// Concurrent prefetches and subscriptions of the same key share one fetch.
func Prefetch[T any](ctx context.Context, c *Coordinator, key string, fetch FetchFunc[T], ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaults.ttl
	}
	if c.store.IsFresh(key, ttl) {
		return nil
	}
	_, err := c.await(ctx, fetchRequest{key: key, label: key, coalesce: true, fetch: fetch.erase()})
	if errors.Is(err, ErrSuperseded) {
		return ctx.Err()
	}
	return err
}

// Package stream provides pull-based event sources and an idle-timeout guard for them.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// Source produces items one at a time. Next returns io.EOF when the source is exhausted.
// the context passed to Next may be canceled to abandon production of the current item.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc[T any] func(ctx context.Context) (T, error)

// Next calls f(ctx).
func (f SourceFunc[T]) Next(ctx context.Context) (T, error) {
	return f(ctx)
}

// ErrIdleTimeout is matched by IdleTimeoutError via errors.Is.
var ErrIdleTimeout = errors.New("idle timeout")

// IdleTimeoutError reports that no item arrived within the configured idle window.
// Idle is the configured window, not the total time spent in the stream.
type IdleTimeoutError struct {
	Idle time.Duration
}

func (e *IdleTimeoutError) Error() string {
	return fmt.Sprintf("session idle timeout: no output received for %s", e.Idle)
}

// Is makes errors.Is(err, ErrIdleTimeout) work for *IdleTimeoutError.
func (e *IdleTimeoutError) Is(target error) bool {
	return target == ErrIdleTimeout
}

// WithIdleTimeout wraps src so that each Next call fails with *IdleTimeoutError when
// the source does not produce an item within idle. the timer restarts for every item.
// a non-positive idle disables the guard and src is returned unchanged.
func WithIdleTimeout[T any](src Source[T], idle time.Duration) Source[T] {
	if idle <= 0 {
		return src
	}
	return &idleGuard[T]{src: src, idle: idle}
}

// idleGuard races every Next of the wrapped source against a fresh timer.
// not safe for concurrent use; the caller owns the single consuming goroutine.
type idleGuard[T any] struct {
	src  Source[T]
	idle time.Duration
	err  error // sticky terminal error; once set, src is never called again
}

type item[T any] struct {
	val T
	err error
}

func (g *idleGuard[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if g.err != nil {
		return zero, g.err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so the producer goroutine never blocks after we stop listening
	res := make(chan item[T], 1)
	go func() {
		v, err := g.src.Next(itemCtx)
		res <- item[T]{val: v, err: err}
	}()

	timer := time.NewTimer(g.idle)
	defer timer.Stop()

	select {
	case r := <-res:
		if r.err != nil && errors.Is(r.err, io.EOF) {
			g.err = io.EOF
		}
		return r.val, r.err
	case <-timer.C:
		g.err = &IdleTimeoutError{Idle: g.idle}
		return zero, g.err
	case <-ctx.Done():
		g.err = ctx.Err()
		return zero, g.err
	}
}

// All adapts src into a sequence for use with range. iteration stops silently at io.EOF;
// any other error is yielded once as the final element with a zero item.
func All[T any](ctx context.Context, src Source[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// FromSlice returns a source yielding items in order and then io.EOF.
func FromSlice[T any](items []T) Source[T] {
	i := 0
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, io.EOF
		}
		v := items[i]
		i++
		return v, nil
	})
}

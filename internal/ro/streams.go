// Package ro wraps the samber/ro operators the engine's realtime stream
// uses, so the stream client deals in small named helpers instead of
// ro.PipeN call chains.
//
// samber/ro is pre-1.0; keep the surface here narrow so an upstream
// breaking change lands in one file.
package ro

import (
	"context"

	"github.com/samber/ro"
)

// StreamFromChannel creates an Observable from a receive-only channel.
// When the channel is closed, the Observable completes.
func StreamFromChannel[T any](ch <-chan T) ro.Observable[T] {
	return ro.FromChannel(ch)
}

// MapStream transforms items from a source Observable using a mapper function.
func MapStream[T, R any](source ro.Observable[T], mapper func(T) R) ro.Observable[R] {
	return ro.Pipe1(source, ro.Map(mapper))
}

// ProcessStream applies a map followed by a filter, the shape the realtime
// read loop uses for accumulate-then-drop-empty framing.
func ProcessStream[T, R any](
	source ro.Observable[T],
	mapper func(T) R,
	filter func(R) bool,
) ro.Observable[R] {
	return ro.Pipe2(
		source,
		ro.Map(mapper),
		ro.Filter(filter),
	)
}

// Collect collects all items from a stream into a slice. Blocks until the
// stream completes or errors.
func Collect[T any](source ro.Observable[T]) ([]T, error) {
	return ro.Collect(source)
}

// CollectWithContext collects all items from a stream, stopping early when
// ctx is canceled.
func CollectWithContext[T any](ctx context.Context, source ro.Observable[T]) ([]T, context.Context, error) {
	return ro.CollectWithContext(ctx, source)
}

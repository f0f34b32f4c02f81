package ro

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/ro"
)

// ShutdownSignals are the OS signals that trigger graceful shutdown.
var ShutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// GracefulShutdown creates an Observable that emits the first shutdown
// signal received and then completes. Canceling the subscriber's context
// before a signal arrives errors the Observable instead; ctx itself is
// not consulted (see GracefulShutdownWithSignals).
func GracefulShutdown(ctx context.Context) ro.Observable[os.Signal] {
	return GracefulShutdownWithSignals(ctx, ShutdownSignals...)
}

// GracefulShutdownWithSignals is GracefulShutdown for an explicit signal
// set. The subscriber's context, not the creation context, governs the
// wait.
func GracefulShutdownWithSignals(_ context.Context, signals ...os.Signal) ro.Observable[os.Signal] {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	return ro.NewObservableWithContext(func(ctx context.Context, observer ro.Observer[os.Signal]) ro.Teardown {
		go func() {
			select {
			case sig := <-ch:
				observer.NextWithContext(ctx, sig)
				observer.CompleteWithContext(ctx)
			case <-ctx.Done():
				observer.ErrorWithContext(ctx, ctx.Err())
			}
		}()

		return func() {
			signal.Stop(ch)
			close(ch)
		}
	})
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is
// canceled, returning the signal or the context error.
func WaitForShutdown(ctx context.Context) (os.Signal, error) {
	results, _, err := CollectWithContext(ctx, GracefulShutdown(ctx))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ctx.Err()
	}
	return results[0], nil
}

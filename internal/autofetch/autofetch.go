// Package autofetch implements the autofetch controller: a
// version-target-chasing fetch retry with a randomized startup delay,
// invoked by the realtime stream when it observes a newer template
// version than the one currently persisted.
package autofetch

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"

	"github.com/rconfig/engine/internal/fetch"
	"github.com/rconfig/engine/internal/rcerrors"
)

// MaxAttempts is the fixed attempt budget of every autofetch chase.
const MaxAttempts = 3

// jitterUpperBoundSeconds is the exclusive upper bound of the randomized
// startup delay. The range is [0, 4): zero is a legal delay.
const jitterUpperBoundSeconds = 4

// Fetcher is the subset of *fetch.Handler autofetch depends on, narrowed
// to keep this package testable without a live HTTP round-trip.
type Fetcher interface {
	Fetch(ctx context.Context, opts fetch.Options) (fetch.Response, error)
}

// Controller drives one version-target-chasing retry chain at a time per
// call. onEvent is invoked once, on every registered listener, when the
// target version is reached; onError is invoked when the attempt budget
// is exhausted first.
type Controller struct {
	fetchHandler Fetcher
	onEvent      func()
	onError      func(error)
	log          zerolog.Logger
}

// New constructs an autofetch Controller.
func New(fetchHandler Fetcher, onEvent func(), onError func(error), log zerolog.Logger) *Controller {
	return &Controller{
		fetchHandler: fetchHandler,
		onEvent:      onEvent,
		onError:      onError,
		log:          log,
	}
}

// AutoFetch runs one chase: a random [0,4)s delay, a forced fetch
// (minInterval=0, still subject to backoff), and recursion on
// remainingAttempts-1 until the target version is reached or the budget
// is exhausted.
func (c *Controller) AutoFetch(ctx context.Context, remainingAttempts int, targetVersion int64) {
	if remainingAttempts == 0 {
		if c.onError != nil {
			c.onError(rcerrors.ErrConfigUpdateNotFetched)
		}
		return
	}

	delay := randomJitterSeconds()
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	attemptNumber := MaxAttempts - (remainingAttempts - 1)
	resp, err := c.fetchHandler.Fetch(ctx, fetch.Options{MinInterval: 0, AttemptNumber: attemptNumber})

	var effectiveVersion int64
	if err == nil {
		switch {
		case resp.Container != nil:
			effectiveVersion = resp.Container.TemplateVersion()
		case resp.Status == fetch.BackendHasNoUpdates:
			effectiveVersion = targetVersion
		default:
			effectiveVersion = 0
		}
	}

	if err == nil && effectiveVersion >= targetVersion {
		if c.onEvent != nil {
			c.onEvent()
		}
		return
	}

	c.AutoFetch(ctx, remainingAttempts-1, targetVersion)
}

// randomJitterSeconds returns a cryptographically random duration
// uniformly distributed in [0, jitterUpperBoundSeconds) seconds.
func randomJitterSeconds() time.Duration {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	seconds := n % jitterUpperBoundSeconds
	return time.Duration(seconds) * time.Second
}

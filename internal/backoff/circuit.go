package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned by Circuit.Allow when the breaker is open.
var ErrCircuitOpen = errors.New("backoff: circuit open")

// errFailure is a sentinel passed to the underlying TwoStepCircuitBreaker's
// done callback to record a failed call; IsSuccessful treats any non-nil,
// non-context.Canceled error as a failure, so the specific value is unused.
var errFailure = errors.New("backoff: call failed")

// CircuitConfig configures a Circuit.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold uint32
	// OpenDuration is how long the breaker stays open before allowing a
	// half-open probe.
	OpenDuration time.Duration
	// HalfOpenProbes is the number of requests allowed through while
	// half-open before deciding to close or re-open.
	HalfOpenProbes uint32
}

// Circuit wraps sony/gobreaker's TwoStepCircuitBreaker as a second,
// independent failure signal layered underneath the persisted State in
// this package: either the State's backoff window or the Circuit being
// open suppresses an outbound call. The fetch handler and the realtime
// stream each own one, named "fetch" and "realtime" respectively.
type Circuit struct {
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]
	name string
}

// NewCircuit creates a named Circuit. If logger is non-nil, state
// transitions are logged (Info, Warn when opening).
func NewCircuit(name string, cfg CircuitConfig, logger *zerolog.Logger) *Circuit {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenProbes,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			if logger == nil {
				return
			}
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.Str("circuit", breakerName).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Circuit{
		cb:   gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		name: name,
	}
}

// Allow checks whether a call is permitted. On success it returns a done
// func that must be invoked with the call's outcome (true = success).
func (c *Circuit) Allow() (done func(success bool), err error) {
	d, err := c.cb.Allow()
	if err != nil {
		return nil, ErrCircuitOpen
	}
	return func(success bool) {
		if success {
			d(nil)
			return
		}
		d(errFailure)
	}, nil
}

// State returns the current breaker state.
func (c *Circuit) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the circuit's name.
func (c *Circuit) Name() string {
	return c.name
}

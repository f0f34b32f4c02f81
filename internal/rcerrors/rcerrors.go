// Package rcerrors defines the engine's error taxonomy as ordinary Go
// error values and types. None of them are used for internal control
// flow; they exist to give callers of the public facade (pkg/remoteconfig)
// something to errors.As/errors.Is against.
package rcerrors

import (
	"errors"
	"fmt"
	"time"
)

// ClientError indicates the request could not be assembled or the local
// network layer failed. It is not retried automatically and never
// changes backoff state.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("remoteconfig: client error (status %d): %s", e.Status, e.Message)
}

// ServerError indicates the backend answered with a non-2xx status other
// than 429 (a 429 is reported as Throttled).
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("remoteconfig: server error (status %d)", e.Status)
}

// Throttled is returned when a call is rejected locally because a
// previously observed failure's backoff window has not yet elapsed, when
// the backend answers 429, and on the second consecutive 502/503/504.
type Throttled struct {
	Until time.Time
}

func (e *Throttled) Error() string {
	return fmt.Sprintf("remoteconfig: throttled until %s", e.Until.Format(time.RFC3339))
}

// ConfigUpdateStreamError wraps a transport-level failure of the realtime
// stream, surfaced to config-update listeners.
type ConfigUpdateStreamError struct {
	Cause error
}

func (e *ConfigUpdateStreamError) Error() string {
	return fmt.Sprintf("remoteconfig: realtime stream error: %v", e.Cause)
}

func (e *ConfigUpdateStreamError) Unwrap() error { return e.Cause }

// configUpdateMessageInvalid marks a single malformed realtime message.
// It never crosses the realtime package boundary: a malformed message is
// a reason to log and continue the read loop, not a listener-visible
// failure.
type configUpdateMessageInvalid struct {
	Cause error
}

func (e *configUpdateMessageInvalid) Error() string {
	return fmt.Sprintf("remoteconfig: malformed realtime message: %v", e.Cause)
}

func (e *configUpdateMessageInvalid) Unwrap() error { return e.Cause }

// NewConfigUpdateMessageInvalid constructs the internal-only malformed
// message error. Exported as a constructor (rather than the type) since
// nothing outside this package should ever need to type-assert it —
// callers needing to recognize it use IsConfigUpdateMessageInvalid.
func NewConfigUpdateMessageInvalid(cause error) error {
	return &configUpdateMessageInvalid{Cause: cause}
}

// IsConfigUpdateMessageInvalid reports whether err is (or wraps) a
// malformed-realtime-message error.
func IsConfigUpdateMessageInvalid(err error) bool {
	var target *configUpdateMessageInvalid
	return errors.As(err, &target)
}

// ErrConfigUpdateNotFetched is delivered to config-update listeners when a
// realtime-triggered autofetch exhausts its attempt budget without
// fetching the announced template version.
var ErrConfigUpdateNotFetched = errors.New("remoteconfig: no fetched or default config available")

// ErrConfigUpdateUnavailable is delivered to config-update listeners when
// the backend sends featureDisabled on the realtime stream; the stream is
// then not restarted for the rest of the process.
var ErrConfigUpdateUnavailable = errors.New("remoteconfig: config update stream unavailable")

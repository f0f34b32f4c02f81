// Package backoff implements the exponential-backoff/jitter table shared
// by the fetch handler and the realtime stream. Both consumers use this
// one table-based formula.
package backoff

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// table holds the base backoff duration, in minutes, indexed by
// min(failureCount, len(table)) - 1.
var table = []int{2, 4, 8, 16, 32, 64, 128, 256}

// State is the persisted (failure-count, backoff-end-time) pair. It is
// returned by value from metadata-store getters to prevent torn reads of
// the pair under concurrent access.
type State struct {
	FailureCount int
	EndTime      time.Time
}

// Active reports whether the backoff window is still open at now.
func (s State) Active(now time.Time) bool {
	return s.EndTime.After(now)
}

// Reset is the zero State: no failures, no backoff window. Any successful
// HTTP response resets to this value.
var Reset = State{}

// Next computes the State that follows a new failure, given the previous
// State and the time the failure was observed. It does not mutate prev.
func Next(prev State, failedAt time.Time) State {
	n := prev.FailureCount + 1
	d := Compute(n)
	return State{
		FailureCount: n,
		EndTime:      failedAt.Add(d),
	}
}

// Compute returns a duration uniformly distributed in [base/2, base+base/2)
// where base is table[min(n, len(table))-1] minutes. n must be >= 1.
//
// Jitter is sourced from crypto/rand rather than math/rand so fleets of
// clients restarting together do not synchronize their retries.
func Compute(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	idx := n
	if idx > len(table) {
		idx = len(table)
	}
	base := time.Duration(table[idx-1]) * time.Minute

	half := base / 2
	jitterRange := base // [half, half+base) has width `base`
	return half + randDuration(jitterRange)
}

// randDuration returns a cryptographically random duration in [0, max).
// It falls back to zero jitter if crypto/rand is unavailable rather than
// panicking on a platform quirk.
func randDuration(max time.Duration) time.Duration { //nolint:predeclared
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	//nolint:gosec // G115: max is always positive here, checked above.
	return time.Duration(n % uint64(max))
}

package backoff

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBackoff_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	base := time.Unix(1700000000, 0)

	// Property 1: the failure counter is strictly monotonic under any
	// sequence of failures.
	properties.Property("failure count strictly increases", prop.ForAll(
		func(failures int) bool {
			state := Reset
			for i := 0; i < failures; i++ {
				next := Next(state, base)
				if next.FailureCount != state.FailureCount+1 {
					return false
				}
				state = next
			}
			return state.FailureCount == failures
		},
		gen.IntRange(1, 20),
	))

	// Property 2: when each failure is observed after the previous backoff
	// window has closed, the backoff end time never moves backwards.
	properties.Property("end time is non-decreasing", prop.ForAll(
		func(failures int, stepSeconds int) bool {
			state := Reset
			now := base
			for i := 0; i < failures; i++ {
				next := Next(state, now)
				if next.EndTime.Before(state.EndTime) {
					return false
				}
				state = next
				now = state.EndTime.Add(time.Duration(stepSeconds) * time.Second)
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 60),
	))

	// Property 3: the computed duration always lands in [base/2, base*3/2)
	// for the table entry the failure count selects.
	properties.Property("duration within jitter bounds", prop.ForAll(
		func(n int) bool {
			idx := n
			if idx > len(table) {
				idx = len(table)
			}
			tableBase := time.Duration(table[idx-1]) * time.Minute

			d := Compute(n)
			return d >= tableBase/2 && d < tableBase+tableBase/2
		},
		gen.IntRange(1, 16),
	))

	// Property 4: a window is active strictly before its end time and
	// inactive at or after it.
	properties.Property("Active matches the window boundary", prop.ForAll(
		func(offsetSeconds int) bool {
			state := State{FailureCount: 1, EndTime: base}
			now := base.Add(time.Duration(offsetSeconds) * time.Second)
			if offsetSeconds < 0 {
				return state.Active(now)
			}
			return !state.Active(now)
		},
		gen.IntRange(-3600, 3600),
	))

	properties.TestingRun(t)
}

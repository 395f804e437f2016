// Package capability holds the shared outcome model for best-effort platform
// capabilities (brightness, volume, sleep inhibition). Chains try a fixed,
// platform-specific strategy list in priority order on every call; the worst
// they report is Degraded, never an error, because an unavailable capability
// is an expected state, not a failure of the system.
package capability

import "strings"

// Outcome of one capability call.
type Outcome int

const (
	OK Outcome = iota
	Degraded
)

func (o Outcome) String() string {
	if o == OK {
		return "ok"
	}
	return "degraded"
}

// Attempt records one strategy tried and why it lost.
type Attempt struct {
	Strategy string
	Err      error
}

// Result is the outcome of walking a strategy chain.
type Result struct {
	Outcome  Outcome
	Strategy string // winning strategy, empty when Degraded
	Attempts []Attempt
}

// AttemptsString renders the attempt list for a log field:
// "brightnessctl: exec: not found; sysfs: permission denied".
func (r Result) AttemptsString() string {
	parts := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		msg := "ok"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		parts = append(parts, a.Strategy+": "+msg)
	}
	return strings.Join(parts, "; ")
}

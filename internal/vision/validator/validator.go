// Package validator implements the per-station timestamp monotonicity
// and wall-clock skew checks described in spec.md §4.6. It never rejects
// outright; it always records the event's timestamp as the new baseline
// and reports whatever violations it observed.
package validator

import (
	"sync"
	"time"

	"github.com/rebar-platform/edgevision/internal/timeutil"
	"github.com/rebar-platform/edgevision/internal/vision/event"
)

// Violation enumerates the kinds of anomaly Validate can report.
type Violation string

const (
	// NonMonotonicTimestamp is reported when an event's timestamp does not
	// strictly exceed the previous event's timestamp for the same station.
	NonMonotonicTimestamp Violation = "non_monotonic_timestamp"
	// ClockSkew is reported when an event's timestamp differs from the
	// validator's wall clock by more than the configured bound.
	ClockSkew Violation = "clock_skew"
)

// Result reports the outcome of validating a single event.
type Result struct {
	Violations []Violation
}

// OK reports whether no violation was found.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// Config bounds the permitted wall-clock skew.
type Config struct {
	MaxSkew time.Duration
}

// Validator tracks, per station, the timestamp of the last event it
// validated, and flags both out-of-order event streams and events whose
// claimed timestamp has drifted too far from the wall clock.
type Validator struct {
	config Config
	clock  timeutil.Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// New constructs a Validator. clock supplies "now" for skew comparisons;
// production callers pass timeutil.RealClock{}.
func New(config Config, clock timeutil.Clock) *Validator {
	return &Validator{
		config:   config,
		clock:    clock,
		lastSeen: make(map[string]time.Time),
	}
}

// Validate checks e against the station's prior timestamp and the
// current wall clock, then unconditionally records e's timestamp as the
// new baseline for its station — state advances regardless of whether a
// violation was found.
func (v *Validator) Validate(e event.Event) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	var result Result

	if prev, ok := v.lastSeen[e.StationID()]; ok {
		if !e.Timestamp().After(prev) {
			result.Violations = append(result.Violations, NonMonotonicTimestamp)
		}
	}

	if v.config.MaxSkew > 0 {
		now := v.clock.Now()
		drift := now.Sub(e.Timestamp())
		if drift < 0 {
			drift = -drift
		}
		if drift > v.config.MaxSkew {
			result.Violations = append(result.Violations, ClockSkew)
		}
	}

	v.lastSeen[e.StationID()] = e.Timestamp()
	return result
}

// Package cutsensor implements the deterministic, stateful per-station
// motion detector described in spec.md §4.3: given a stream of grayscale
// frames, it emits at most one CUT event per physical bar passage through
// a region of interest, rejecting hand motion, transient noise, and rapid
// double-counting.
package cutsensor

import (
	"time"

	"github.com/rebar-platform/edgevision/internal/monitoring"
	"github.com/rebar-platform/edgevision/internal/timeutil"
	"github.com/rebar-platform/edgevision/internal/vision/event"
	"github.com/rebar-platform/edgevision/internal/vision/frame"
)

const (
	motionThreshold  = 25
	motionMaxVal     = 255
	dilateIterations = 2
	backgroundAlpha  = 0.05
)

// state is the sensor's private, per-station internal state (spec.md §3).
type state struct {
	background    *frame.FloatGrid
	motionStart   *time.Time
	lastCentroidY *float64
	lastEventTime *time.Time
}

// Sensor is a stateful, single-station cut detector. It owns its internal
// state for the life of a station session; Config is injected and never
// mutated.
type Sensor struct {
	config    Config
	stationID string
	clock     timeutil.Clock
	state     state
}

// New constructs a Sensor for one station. clock is the injected time
// source; production callers pass timeutil.RealClock{}, tests pass a
// timeutil.MockClock.
func New(config Config, stationID string, clock timeutil.Clock) (*Sensor, error) {
	if stationID == "" {
		return nil, errStationIDRequired
	}
	if err := config.Validate(0, 0); err != nil {
		return nil, err
	}
	return &Sensor{
		config:    config,
		stationID: stationID,
		clock:     clock,
	}, nil
}

var errStationIDRequired = sensorError("cutsensor: station_id is required")

type sensorError string

func (e sensorError) Error() string { return string(e) }

// ProcessFrame consumes one full frame and returns an Event when a
// physical bar passage has just been confirmed, or (Event{}, false)
// otherwise. The sensor never fails on a frame it can process; absence of
// an event is always a valid, non-error outcome.
func (s *Sensor) ProcessFrame(full frame.Grid) (event.Event, bool, error) {
	if err := s.config.ROI.Validate(full.Width, full.Height); err != nil {
		return event.Event{}, false, err
	}
	now := s.clock.Now()
	roi := frame.Crop(full, s.config.ROI)

	// First-ever call: seed the background and emit nothing. Per the
	// reference behavior (spec.md §9), the background is seeded exactly
	// once and never reset thereafter.
	if s.state.background == nil {
		bg := frame.FloatGridFromGrid(roi)
		s.state.background = &bg
		return event.Event{}, false, nil
	}

	motionDetected, maxArea, centroidY := s.detectMotion(roi)

	// Dead-time gate: no updates to motion_start/centroid during cooldown.
	if s.state.lastEventTime != nil {
		if now.Sub(*s.state.lastEventTime) < time.Duration(s.config.StabilizationMS)*time.Millisecond {
			return event.Event{}, false, nil
		}
	}

	if !motionDetected || maxArea < s.config.MinAreaPx {
		s.state.motionStart = nil
		s.state.lastCentroidY = nil
		return event.Event{}, false, nil
	}

	if s.state.motionStart == nil {
		s.state.motionStart = &now
		s.state.lastCentroidY = &centroidY
		return event.Event{}, false, nil
	}

	// Direction gate: with direction=down, reject upward centroid motion
	// (rejects back-and-forth hand motion). Non-strict on the first
	// post-start frame because lastCentroidY was just initialized to the
	// start centroid (spec.md §9 Open Question).
	if s.config.Direction == DirectionDown && centroidY < *s.state.lastCentroidY {
		s.state.motionStart = nil
		s.state.lastCentroidY = &centroidY
		return event.Event{}, false, nil
	}
	s.state.lastCentroidY = &centroidY

	if now.Sub(*s.state.motionStart) >= time.Duration(s.config.PersistenceMS)*time.Millisecond {
		denom := s.config.MinAreaPx
		if denom < 1 {
			denom = 1
		}
		confidence := maxArea / denom
		if confidence > 1.0 {
			confidence = 1.0
		}
		e, err := event.NewCutEvent(s.stationID, confidence, now)
		if err != nil {
			return event.Event{}, false, err
		}
		s.state.motionStart = nil
		s.state.lastCentroidY = nil
		s.state.lastEventTime = &now
		monitoring.Logf("cutsensor[%s]: emitted CUT event_id=%s confidence=%.3f", s.stationID, e.EventID(), confidence)
		return e, true, nil
	}

	return event.Event{}, false, nil
}

// detectMotion computes the binary motion mask for the current ROI against
// the running background, returning whether any contour was found, the
// largest contour's area, and its centroid Y. It also blends the ROI into
// the background whenever motion was detected, independent of whether an
// event is ultimately emitted, so the background stabilizes after an
// event rather than between events (spec.md §4.3 step 12).
func (s *Sensor) detectMotion(roi frame.Grid) (found bool, maxArea float64, centroidY float64) {
	bgAsUint8 := frame.ConvertScaleAbs(*s.state.background)
	delta := frame.AbsDiff(bgAsUint8, roi)
	_, binary := frame.Threshold(delta, motionThreshold, motionMaxVal)
	mask := frame.Dilate(binary, dilateIterations)
	contours := frame.FindContours(mask)

	for _, c := range contours {
		area := frame.ContourArea(c)
		if area > maxArea {
			maxArea = area
			m := frame.ComputeMoments(c)
			if cy, ok := m.CentroidY(); ok {
				centroidY = cy
			}
		}
	}

	if maxArea == 0 {
		return false, 0, 0
	}

	frame.AccumulateWeighted(roi, s.state.background, backgroundAlpha)
	return true, maxArea, centroidY
}

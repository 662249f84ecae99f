package cutsensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebar-platform/edgevision/internal/timeutil"
	"github.com/rebar-platform/edgevision/internal/vision/event"
	"github.com/rebar-platform/edgevision/internal/vision/frame"
)

const frameW, frameH = 120, 100

func blankFrame() frame.Grid {
	return frame.NewGrid(frameW, frameH)
}

func fillRect(g frame.Grid, x, y, w, h int, v uint8) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			g.Set(xx, yy, v)
		}
	}
}

func newTestSensor(t *testing.T, cfg Config, clock timeutil.Clock) *Sensor {
	t.Helper()
	s, err := New(cfg, "station-a", clock)
	require.NoError(t, err)
	return s
}

// Scenario 1: hand motion rejected — a small 5x5 bright patch is below
// min_area_px and never triggers an event.
func TestHandMotionRejected(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 10, Y: 10, Width: 100, Height: 80},
		PersistenceMS:   80,
		MinAreaPx:       400,
		StabilizationMS: 150,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)

	f1 := blankFrame()
	_, emitted, err := s.ProcessFrame(f1)
	require.NoError(t, err)
	require.False(t, emitted)

	for i := 0; i < 2; i++ {
		clock.Advance(50 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 15, 15, 5, 5, 255)
		_, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		assert.False(t, emitted, "small hand-sized blob must not emit")
	}
}

// Scenario 2: a single downward bar passage emits exactly one CUT event.
func TestSingleBarPassageEmitsOneCut(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 10, Y: 10, Width: 100, Height: 80},
		PersistenceMS:   80,
		MinAreaPx:       400,
		StabilizationMS: 150,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)

	f0 := blankFrame()
	_, emitted, err := s.ProcessFrame(f0)
	require.NoError(t, err)
	require.False(t, emitted)

	var events []event.Event
	startY := 15
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 20, startY+i*5, 60, 20, 255)
		e, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		if emitted {
			events = append(events, e)
		}
	}

	require.Len(t, events, 1)
	assert.Equal(t, event.CUT, events[0].EventType())
}

// Scenario 3: rapid downward motion followed by blank frames yields
// exactly one event total, never a double-count.
func TestNoDoubleCountUnderRapidMotion(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 10, Y: 10, Width: 100, Height: 80},
		PersistenceMS:   80,
		MinAreaPx:       400,
		StabilizationMS: 200,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)

	f0 := blankFrame()
	_, _, err := s.ProcessFrame(f0)
	require.NoError(t, err)

	var events []event.Event
	startY := 15
	for i := 0; i < 6; i++ {
		clock.Advance(30 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 20, startY+i*5, 60, 20, 255)
		e, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		if emitted {
			events = append(events, e)
		}
	}
	for i := 0; i < 3; i++ {
		clock.Advance(30 * time.Millisecond)
		_, emitted, err := s.ProcessFrame(blankFrame())
		require.NoError(t, err)
		require.False(t, emitted)
	}

	require.Len(t, events, 1)
}

func TestDeadTimeEnforced(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 10, Y: 10, Width: 100, Height: 80},
		PersistenceMS:   40,
		MinAreaPx:       400,
		StabilizationMS: 500,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)

	_, _, err := s.ProcessFrame(blankFrame())
	require.NoError(t, err)

	var firstEventTime time.Time
	startY := 15
	for i := 0; i < 4; i++ {
		clock.Advance(30 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 20, startY+i*6, 60, 20, 255)
		e, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		if emitted {
			firstEventTime = e.Timestamp()
		}
	}
	require.False(t, firstEventTime.IsZero())

	// Immediately sweep again; still within stabilization window.
	for i := 0; i < 4; i++ {
		clock.Advance(30 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 20, startY+60+i*6, 60, 20, 255)
		_, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		assert.False(t, emitted, "must not emit within stabilization_ms of the prior event")
	}
}

func TestUpwardMotionRejectedInDownMode(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 0, Y: 0, Width: 100, Height: 100},
		PersistenceMS:   60,
		MinAreaPx:       400,
		StabilizationMS: 100,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)

	_, _, err := s.ProcessFrame(blankFrame())
	require.NoError(t, err)

	clock.Advance(30 * time.Millisecond)
	f1 := blankFrame()
	fillRect(f1, 10, 50, 60, 20, 255)
	_, emitted, err := s.ProcessFrame(f1)
	require.NoError(t, err)
	require.False(t, emitted)

	// Move the blob upward (smaller Y): direction gate must reject and
	// reset motion_start, so persistence never accumulates.
	for i := 0; i < 4; i++ {
		clock.Advance(30 * time.Millisecond)
		f := blankFrame()
		fillRect(f, 10, 50-(i+1)*5, 60, 20, 255)
		_, emitted, err := s.ProcessFrame(f)
		require.NoError(t, err)
		assert.False(t, emitted, "upward motion must never satisfy the down-direction gate")
	}
}

func TestFirstCallNeverEmits(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 0, Y: 0, Width: 50, Height: 50},
		PersistenceMS:   10,
		MinAreaPx:       10,
		StabilizationMS: 10,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)
	f := blankFrame()
	fillRect(f, 0, 0, 50, 50, 200)
	_, emitted, err := s.ProcessFrame(f)
	require.NoError(t, err)
	assert.False(t, emitted, "background seeding frame never emits")
}

func TestRejectsROIOutOfBounds(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	cfg := Config{
		ROI:             frame.ROI{X: 90, Y: 90, Width: 50, Height: 50},
		PersistenceMS:   10,
		MinAreaPx:       10,
		StabilizationMS: 10,
		Direction:       DirectionDown,
	}
	s := newTestSensor(t, cfg, clock)
	_, _, err := s.ProcessFrame(blankFrame())
	require.Error(t, err)
}

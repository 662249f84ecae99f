// Package framesource separates frame acquisition from the pure cut
// sensor: a Source produces Grids from wherever frames actually come
// from (a replayed fixture, a camera driver), and the sensor never knows
// which.
package framesource

import (
	"context"
	"errors"

	"github.com/rebar-platform/edgevision/internal/vision/frame"
)

// ErrExhausted is returned by ReplaySource once every frame has been
// delivered.
var ErrExhausted = errors.New("framesource: replay exhausted")

// Source produces one frame at a time, blocking until one is available
// or ctx is canceled.
type Source interface {
	NextFrame(ctx context.Context) (frame.Grid, error)
}

// ReplaySource deals out a fixed, pre-loaded sequence of frames in
// order, for deterministic tests and offline verification runs.
type ReplaySource struct {
	frames []frame.Grid
	next   int
}

// NewReplaySource constructs a ReplaySource over frames, which is played
// back in the given order exactly once.
func NewReplaySource(frames []frame.Grid) *ReplaySource {
	return &ReplaySource{frames: frames}
}

// NextFrame returns the next frame in sequence, or ErrExhausted once the
// sequence is consumed.
func (r *ReplaySource) NextFrame(ctx context.Context) (frame.Grid, error) {
	select {
	case <-ctx.Done():
		return frame.Grid{}, ctx.Err()
	default:
	}
	if r.next >= len(r.frames) {
		return frame.Grid{}, ErrExhausted
	}
	f := r.frames[r.next]
	r.next++
	return f, nil
}

// Remaining reports how many frames are left to deal out.
func (r *ReplaySource) Remaining() int {
	return len(r.frames) - r.next
}

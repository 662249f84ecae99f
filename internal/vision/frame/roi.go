package frame

import "fmt"

// ROI is an axis-aligned rectangle in frame coordinates.
type ROI struct {
	X, Y, Width, Height int
}

// Validate checks the non-negative-origin and within-bounds invariants
// against a frame of the given dimensions.
func (r ROI) Validate(frameWidth, frameHeight int) error {
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("frame: roi origin must be non-negative, got (%d, %d)", r.X, r.Y)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("frame: roi dimensions must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.X+r.Width > frameWidth || r.Y+r.Height > frameHeight {
		return fmt.Errorf("frame: roi (%d,%d,%d,%d) exceeds frame bounds %dx%d",
			r.X, r.Y, r.Width, r.Height, frameWidth, frameHeight)
	}
	return nil
}

// Crop extracts the ROI sub-grid from a full frame. The caller must have
// validated the ROI against the frame's dimensions first.
func Crop(full Grid, r ROI) Grid {
	out := NewGrid(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		srcRow := (r.Y + y) * full.Width
		dstRow := y * r.Width
		copy(out.Pixels[dstRow:dstRow+r.Width], full.Pixels[srcRow+r.X:srcRow+r.X+r.Width])
	}
	return out
}

package framesource

import (
	"context"
	"fmt"

	"github.com/rebar-platform/edgevision/internal/vision/frame"
)

// CameraReader abstracts the underlying grayscale frame grabber so
// CameraSource can be tested without real camera hardware.
type CameraReader interface {
	ReadGrayscale() ([]uint8, int, int, error)
}

// CameraSource adapts a CameraReader into a Source, validating that every
// delivered frame matches the dimensions it started with.
type CameraSource struct {
	reader CameraReader
	width  int
	height int
}

// NewCameraSource constructs a CameraSource expecting width x height
// grayscale frames from reader.
func NewCameraSource(reader CameraReader, width, height int) *CameraSource {
	return &CameraSource{reader: reader, width: width, height: height}
}

// NextFrame reads one frame from the underlying reader.
func (c *CameraSource) NextFrame(ctx context.Context) (frame.Grid, error) {
	select {
	case <-ctx.Done():
		return frame.Grid{}, ctx.Err()
	default:
	}

	pixels, w, h, err := c.reader.ReadGrayscale()
	if err != nil {
		return frame.Grid{}, fmt.Errorf("framesource: reading camera frame: %w", err)
	}
	if w != c.width || h != c.height {
		return frame.Grid{}, fmt.Errorf("framesource: camera frame %dx%d does not match configured %dx%d",
			w, h, c.width, c.height)
	}
	g := frame.NewGrid(w, h)
	copy(g.Pixels, pixels)
	return g, nil
}

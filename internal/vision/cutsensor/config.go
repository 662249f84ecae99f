package cutsensor

import (
	"fmt"

	"github.com/rebar-platform/edgevision/internal/vision/frame"
)

// Direction constrains the sign of centroid motion the sensor requires
// before it will consider a blob a candidate cut. Only "down" is
// supported in this repository (spec.md §4.3 Non-goals).
type Direction string

// DirectionDown is the only supported direction.
const DirectionDown Direction = "down"

// Config is the immutable configuration of a single cut sensor instance.
// It is injected at construction and never mutated afterward.
type Config struct {
	ROI             frame.ROI
	PersistenceMS   int64
	MinAreaPx       float64
	StabilizationMS int64
	Direction       Direction
}

// Validate checks the configuration is internally consistent and, when a
// frame size is known, that the ROI fits within it.
func (c Config) Validate(frameWidth, frameHeight int) error {
	if c.PersistenceMS <= 0 {
		return fmt.Errorf("cutsensor: persistence_ms must be positive, got %d", c.PersistenceMS)
	}
	if c.MinAreaPx <= 0 {
		return fmt.Errorf("cutsensor: min_area_px must be positive, got %v", c.MinAreaPx)
	}
	if c.StabilizationMS < 0 {
		return fmt.Errorf("cutsensor: stabilization_ms must be non-negative, got %d", c.StabilizationMS)
	}
	if c.Direction != DirectionDown {
		return fmt.Errorf("cutsensor: unsupported direction %q", c.Direction)
	}
	if frameWidth > 0 && frameHeight > 0 {
		if err := c.ROI.Validate(frameWidth, frameHeight); err != nil {
			return err
		}
	}
	return nil
}

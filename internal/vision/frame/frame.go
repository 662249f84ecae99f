// Package frame provides deterministic grayscale image primitives used by
// the cut sensor's motion-detection pipeline: absolute difference,
// thresholding, dilation, connected-component contours, moments, and
// exponentially-weighted background accumulation.
package frame

import "math"

// Grid is a dense row-major grayscale image: Pixels[y*Width+x] in [0,255].
type Grid struct {
	Width, Height int
	Pixels        []uint8
}

// NewGrid allocates a zeroed Grid of the given dimensions.
func NewGrid(width, height int) Grid {
	return Grid{Width: width, Height: height, Pixels: make([]uint8, width*height)}
}

// At returns the pixel at (x, y).
func (g Grid) At(x, y int) uint8 {
	return g.Pixels[y*g.Width+x]
}

// Set writes the pixel at (x, y).
func (g Grid) Set(x, y int, v uint8) {
	g.Pixels[y*g.Width+x] = v
}

// Clone returns an independent copy of g.
func (g Grid) Clone() Grid {
	out := NewGrid(g.Width, g.Height)
	copy(out.Pixels, g.Pixels)
	return out
}

// FloatGrid is the floating-point counterpart used for the running
// background, which accumulates fractional weighted updates.
type FloatGrid struct {
	Width, Height int
	Pixels        []float64
}

// NewFloatGrid allocates a zeroed FloatGrid of the given dimensions.
func NewFloatGrid(width, height int) FloatGrid {
	return FloatGrid{Width: width, Height: height, Pixels: make([]float64, width*height)}
}

// FloatGridFromGrid converts g to a float copy, for background seeding.
func FloatGridFromGrid(g Grid) FloatGrid {
	out := NewFloatGrid(g.Width, g.Height)
	for i, v := range g.Pixels {
		out.Pixels[i] = float64(v)
	}
	return out
}

func (g FloatGrid) At(x, y int) float64 {
	return g.Pixels[y*g.Width+x]
}

func (g FloatGrid) Set(x, y int, v float64) {
	g.Pixels[y*g.Width+x] = v
}

func sameDims(aw, ah, bw, bh int) bool {
	return aw == bw && ah == bh
}

func clampUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// AbsDiff computes the elementwise saturated absolute difference |a-b|.
// Panics if a and b differ in dimensions.
func AbsDiff(a, b Grid) Grid {
	if !sameDims(a.Width, a.Height, b.Width, b.Height) {
		panic("frame: AbsDiff dimension mismatch")
	}
	out := NewGrid(a.Width, a.Height)
	for i := range a.Pixels {
		d := int(a.Pixels[i]) - int(b.Pixels[i])
		if d < 0 {
			d = -d
		}
		out.Pixels[i] = clampUint8(d)
	}
	return out
}

// ConvertScaleAbs coerces a floating-point grid into an 8-bit unsigned
// grid via rounding and clamping, used to bring the float background back
// to the integer domain before differencing against a live ROI frame.
func ConvertScaleAbs(g FloatGrid) Grid {
	out := NewGrid(g.Width, g.Height)
	for i, v := range g.Pixels {
		if v < 0 {
			v = -v
		}
		out.Pixels[i] = clampUint8(int(math.Round(v)))
	}
	return out
}

// Threshold produces a binary grid: maxVal where src > thresh, else 0.
// Returns the threshold value used, matching the conventional OpenCV
// two-value return shape.
func Threshold(src Grid, thresh float64, maxVal uint8) (float64, Grid) {
	out := NewGrid(src.Width, src.Height)
	for i, v := range src.Pixels {
		if float64(v) > thresh {
			out.Pixels[i] = maxVal
		}
	}
	return thresh, out
}

// Dilate applies n iterations of a 3x3 max filter with edge-clamped
// padding: standard morphological dilation of a binary grid.
func Dilate(src Grid, iterations int) Grid {
	cur := src.Clone()
	for n := 0; n < iterations; n++ {
		next := NewGrid(cur.Width, cur.Height)
		w, h := cur.Width, cur.Height
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var max uint8
				for dy := -1; dy <= 1; dy++ {
					ny := clampCoord(y+dy, h)
					for dx := -1; dx <= 1; dx++ {
						nx := clampCoord(x+dx, w)
						if v := cur.At(nx, ny); v > max {
							max = v
						}
					}
				}
				next.Set(x, y, max)
			}
		}
		cur = next
	}
	return cur
}

func clampCoord(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}

// Point is a pixel coordinate within a Grid.
type Point struct {
	X, Y int
}

// Contour is an unordered collection of pixel coordinates belonging to one
// connected component of non-zero pixels.
type Contour []Point

// FindContours returns the 8-connected components of non-zero pixels in a
// binary grid. Components are returned in row-major scan order of their
// first-encountered pixel, so the result is stable for a given input.
func FindContours(binary Grid) []Contour {
	w, h := binary.Width, binary.Height
	visited := make([]bool, w*h)
	var contours []Contour

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if binary.Pixels[idx] == 0 || visited[idx] {
				continue
			}
			var component Contour
			stack := []Point{{x, y}}
			visited[idx] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				component = append(component, p)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || nx >= w || ny < 0 || ny >= h {
							continue
						}
						nidx := ny*w + nx
						if visited[nidx] || binary.Pixels[nidx] == 0 {
							continue
						}
						visited[nidx] = true
						stack = append(stack, Point{nx, ny})
					}
				}
			}
			contours = append(contours, component)
		}
	}
	return contours
}

// ContourArea returns the pixel count of a contour, as a real number.
func ContourArea(c Contour) float64 {
	return float64(len(c))
}

// Moments holds the zeroth and first raw moments of a contour.
type Moments struct {
	M00, M10, M01 float64
}

// ComputeMoments returns the zeroth moment (pixel count) and first moments
// (sum of x, sum of y) over a contour. An empty contour yields all zeros.
func ComputeMoments(c Contour) Moments {
	var m Moments
	for _, p := range c {
		m.M00++
		m.M10 += float64(p.X)
		m.M01 += float64(p.Y)
	}
	return m
}

// CentroidY returns m01/m00, or 0 with ok=false when m00 is zero.
func (m Moments) CentroidY() (float64, bool) {
	if m.M00 <= 0 {
		return 0, false
	}
	return m.M01 / m.M00, true
}

// AccumulateWeighted blends src into dst in place:
// dst <- (1-alpha)*dst + alpha*src.
func AccumulateWeighted(src Grid, dst *FloatGrid, alpha float64) {
	if !sameDims(src.Width, src.Height, dst.Width, dst.Height) {
		panic("frame: AccumulateWeighted dimension mismatch")
	}
	for i, v := range src.Pixels {
		dst.Pixels[i] = dst.Pixels[i]*(1-alpha) + float64(v)*alpha
	}
}

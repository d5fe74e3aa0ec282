// Package stereo turns a left/right camera pair into per-pixel disparity and
// converts disparity (or a known object width) into metric distance.
package stereo

import (
	"context"
	"math"

	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// DisparityMap is a dense, row-major grid of disparities with the same
// size as the left frame. A value <= 0 means "no valid match".
type DisparityMap struct {
	Width  int
	Height int
	Data   []float32
}

// NewDisparityMap allocates an all-invalid map.
func NewDisparityMap(width, height int) *DisparityMap {
	return &DisparityMap{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// In reports whether (x, y) lies inside the map.
func (m *DisparityMap) In(x, y int) bool {
	return m != nil && x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At returns the raw disparity at (x, y). The point must be In the map.
func (m *DisparityMap) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// Set stores a disparity at (x, y).
func (m *DisparityMap) Set(x, y int, v float32) {
	m.Data[y*m.Width+x] = v
}

// Valid returns the disparity at (x, y) and whether it can be used for
// triangulation (inside the map, strictly positive and finite).
func (m *DisparityMap) Valid(x, y int) (float64, bool) {
	if !m.In(x, y) {
		return 0, false
	}
	d := float64(m.At(x, y))
	if !(d > 0) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// ValidFraction is the share of pixels holding a usable disparity.
func (m *DisparityMap) ValidFraction() float64 {
	if m == nil || len(m.Data) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Data {
		if v > 0 {
			n++
		}
	}
	return float64(n) / float64(len(m.Data))
}

// Range returns the smallest and largest valid disparity, or (0, 0) if
// the map holds none.
func (m *DisparityMap) Range() (lo, hi float32) {
	first := true
	for _, v := range m.Data {
		if !(v > 0) {
			continue
		}
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	return lo, hi
}

// Source computes a disparity map from a time-aligned frame pair of
// identical dimensions.
type Source interface {
	Disparity(ctx context.Context, left, right frame.Frame) (*DisparityMap, error)
}

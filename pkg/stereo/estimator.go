package stereo

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// ErrInvalidCalibration is returned when focal length or baseline is not positive.
var ErrInvalidCalibration = errors.New("stereo: focal length and baseline must be positive")

// Estimator attaches a distance to a detection. dm may be nil for
// estimators that do not use disparity.
type Estimator interface {
	Estimate(det detection.Detection, dm *DisparityMap) detection.Distance
}

// Triangulate applies the pinhole stereo law Z = f*B/d.
// Non-positive or non-finite disparity yields no distance.
func Triangulate(focalPx, baseline, disparity float64) detection.Distance {
	if !(disparity > 0) || math.IsInf(disparity, 0) {
		return detection.NoDistance
	}
	z := focalPx * baseline / disparity
	if !(z > 0) || math.IsInf(z, 0) {
		return detection.NoDistance
	}
	return detection.At(z)
}

// Sampler reads a disparity for the pixel (x, y).
type Sampler interface {
	Sample(dm *DisparityMap, x, y int) (float64, bool)
}

// PointSampler reads the single pixel at the box center.
type PointSampler struct{}

// Sample implements Sampler.
func (PointSampler) Sample(dm *DisparityMap, x, y int) (float64, bool) {
	return dm.Valid(x, y)
}

// MedianSampler takes the median of the valid disparities in a square
// window centred on (x, y). The window is clipped to the map; the centre
// itself must lie inside the map.
type MedianSampler struct {
	Window int // odd side length in pixels
}

// Sample implements Sampler.
func (s MedianSampler) Sample(dm *DisparityMap, x, y int) (float64, bool) {
	if !dm.In(x, y) {
		return 0, false
	}
	r := s.Window / 2
	if r < 0 {
		r = 0
	}

	vals := make(stats.Float64Data, 0, (2*r+1)*(2*r+1))
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if d, ok := dm.Valid(xx, yy); ok {
				vals = append(vals, d)
			}
		}
	}
	if len(vals) == 0 {
		return 0, false
	}

	med, err := vals.Median()
	if err != nil || !(med > 0) {
		return 0, false
	}
	return med, true
}

// StereoEstimator samples disparity at the detection center and triangulates.
type StereoEstimator struct {
	FocalPx  float64 // focal length in pixels
	Baseline float64 // camera separation, in the unit distances are reported in
	Sampler  Sampler
}

// NewStereoEstimator validates the calibration constants.
// A nil sampler defaults to PointSampler.
func NewStereoEstimator(focalPx, baseline float64, s Sampler) (*StereoEstimator, error) {
	if !(focalPx > 0) || !(baseline > 0) || math.IsInf(focalPx, 0) || math.IsInf(baseline, 0) {
		return nil, fmt.Errorf("%w: focal=%v baseline=%v", ErrInvalidCalibration, focalPx, baseline)
	}
	if s == nil {
		s = PointSampler{}
	}
	return &StereoEstimator{FocalPx: focalPx, Baseline: baseline, Sampler: s}, nil
}

// Estimate implements Estimator.
func (e *StereoEstimator) Estimate(det detection.Detection, dm *DisparityMap) detection.Distance {
	x, y := det.Center()
	return e.EstimateAt(dm, x, y)
}

// EstimateAt rounds (cx, cy) to the nearest pixel and triangulates the
// sampled disparity. Out-of-bounds centers and invalid disparity give no distance.
func (e *StereoEstimator) EstimateAt(dm *DisparityMap, cx, cy float64) detection.Distance {
	if dm == nil || math.IsNaN(cx) || math.IsNaN(cy) {
		return detection.NoDistance
	}
	x, y := math.Round(cx), math.Round(cy)
	if x < 0 || y < 0 || x >= float64(dm.Width) || y >= float64(dm.Height) {
		return detection.NoDistance
	}

	d, ok := e.Sampler.Sample(dm, int(x), int(y))
	if !ok {
		return detection.NoDistance
	}
	return Triangulate(e.FocalPx, e.Baseline, d)
}

// MonocularDistance estimates distance from a known real width:
// Z = W*f/w. A non-positive pixel or real width gives no distance.
func MonocularDistance(realWidth, focalPx, pixelWidth float64) detection.Distance {
	if !(pixelWidth > 0) || !(realWidth > 0) || !(focalPx > 0) {
		return detection.NoDistance
	}
	return detection.At(realWidth * focalPx / pixelWidth)
}

// MonocularEstimator uses per-class real-world widths with a single camera.
// Classes without a registered width get no distance.
type MonocularEstimator struct {
	FocalPx float64
	Widths  map[detection.Class]float64
}

// NewMonocularEstimator copies widths (meters keyed by class name).
func NewMonocularEstimator(focalPx float64, widths map[string]float64) (*MonocularEstimator, error) {
	if !(focalPx > 0) {
		return nil, fmt.Errorf("%w: focal=%v", ErrInvalidCalibration, focalPx)
	}
	m := &MonocularEstimator{FocalPx: focalPx, Widths: make(map[detection.Class]float64, len(widths))}
	for name, w := range widths {
		m.Widths[detection.Class(name)] = w
	}
	return m, nil
}

// Estimate implements Estimator; dm is ignored.
func (m *MonocularEstimator) Estimate(det detection.Detection, _ *DisparityMap) detection.Distance {
	w, ok := m.Widths[det.Class]
	if !ok {
		return detection.NoDistance
	}
	return MonocularDistance(w, m.FocalPx, float64(det.Width()))
}

var (
	_ Estimator = (*StereoEstimator)(nil)
	_ Estimator = (*MonocularEstimator)(nil)
)

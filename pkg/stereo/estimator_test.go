package stereo

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// uniform returns a w x h map filled with d.
func uniform(w, h int, d float32) *DisparityMap {
	m := NewDisparityMap(w, h)
	for i := range m.Data {
		m.Data[i] = d
	}
	return m
}

func TestTriangulate_NonPositiveDisparityIsAbsent(t *testing.T) {
	calibrations := []struct{ f, b float64 }{
		{700, 0.06},
		{1, 1},
		{1e4, 0.5},
		{0.001, 100},
	}
	disparities := []float64{0, -0.0001, -1, -21, -1e9, math.Inf(-1), math.NaN()}

	for _, c := range calibrations {
		for _, d := range disparities {
			got := Triangulate(c.f, c.b, d)
			assert.False(t, got.Valid, "f=%v b=%v d=%v", c.f, c.b, d)
		}
	}
}

func TestTriangulate_Formula(t *testing.T) {
	tests := []struct {
		f, b, d float64
	}{
		{700, 0.06, 21},
		{700, 0.06, 1},
		{650, 0.12, 0.5},
		{1200, 0.1, 64},
	}
	for _, tt := range tests {
		got := Triangulate(tt.f, tt.b, tt.d)
		require.True(t, got.Valid)
		assert.InDelta(t, tt.f*tt.b/tt.d, got.Meters, 1e-12)
		assert.Greater(t, got.Meters, 0.0)
	}
}

func TestTriangulate_StrictlyDecreasingInDisparity(t *testing.T) {
	const f, b = 700.0, 0.06
	prev := math.Inf(1)
	for d := 0.25; d <= 128; d += 0.25 {
		got := Triangulate(f, b, d)
		require.True(t, got.Valid)
		assert.Less(t, got.Meters, prev, "d=%v", d)
		prev = got.Meters
	}
}

func TestStereoEstimator_ReferenceScenario(t *testing.T) {
	est, err := NewStereoEstimator(700, 0.06, nil)
	require.NoError(t, err)

	dm := uniform(64, 48, 21)
	got := est.EstimateAt(dm, 32, 24)
	require.True(t, got.Valid)
	assert.InDelta(t, 2.0, got.Meters, 1e-9)
}

func TestStereoEstimator_OutOfBoundsIsAbsent(t *testing.T) {
	est, err := NewStereoEstimator(700, 0.06, PointSampler{})
	require.NoError(t, err)

	dm := uniform(10, 8, 21) // every pixel valid

	points := []struct{ x, y float64 }{
		{-0.6, 4}, // rounds to -1
		{4, -0.51},
		{9.5, 4}, // rounds to 10 == width
		{4, 7.5}, // rounds to 8 == height
		{100, 100},
		{math.NaN(), 2},
		{math.Inf(1), 2},
	}
	for _, p := range points {
		assert.False(t, est.EstimateAt(dm, p.x, p.y).Valid, "(%v, %v)", p.x, p.y)
	}

	// rounding keeps these inside
	assert.True(t, est.EstimateAt(dm, -0.4, 0).Valid)
	assert.True(t, est.EstimateAt(dm, 9.49, 7.49).Valid)
}

func TestStereoEstimator_NilMapIsAbsent(t *testing.T) {
	est, err := NewStereoEstimator(700, 0.06, nil)
	require.NoError(t, err)
	assert.False(t, est.EstimateAt(nil, 1, 1).Valid)
}

func TestStereoEstimator_InvalidDisparityAtCenter(t *testing.T) {
	est, err := NewStereoEstimator(700, 0.06, nil)
	require.NoError(t, err)

	dm := uniform(20, 20, 21)
	dm.Set(10, 10, 0)
	dm.Set(5, 5, -3)

	det := detection.Detection{Class: "Chair", Box: image.Rect(8, 8, 12, 12)} // center (10, 10)
	assert.False(t, est.Estimate(det, dm).Valid)
	assert.False(t, est.EstimateAt(dm, 5, 5).Valid)
	assert.True(t, est.EstimateAt(dm, 6, 6).Valid)
}

func TestNewStereoEstimator_RejectsBadCalibration(t *testing.T) {
	for _, c := range []struct{ f, b float64 }{{0, 0.06}, {700, 0}, {-700, 0.06}, {700, math.Inf(1)}, {math.NaN(), 0.06}} {
		_, err := NewStereoEstimator(c.f, c.b, nil)
		assert.ErrorIs(t, err, ErrInvalidCalibration, "f=%v b=%v", c.f, c.b)
	}
}

func TestMedianSampler(t *testing.T) {
	dm := NewDisparityMap(9, 9)
	// 3x3 window around (4,4): five valid values, four invalid
	dm.Set(3, 3, 10)
	dm.Set(4, 3, 20)
	dm.Set(5, 3, 30)
	dm.Set(3, 4, 40)
	dm.Set(4, 4, 0) // center itself invalid
	dm.Set(5, 4, 50)

	s := MedianSampler{Window: 3}
	d, ok := s.Sample(dm, 4, 4)
	require.True(t, ok)
	assert.Equal(t, 30.0, d)

	_, ok = s.Sample(dm, 0, 8) // window has no valid values
	assert.False(t, ok)

	_, ok = s.Sample(dm, 9, 4) // center out of bounds, even though the window overlaps
	assert.False(t, ok)
}

func TestMedianSampler_EstimatorKeepsGuards(t *testing.T) {
	est, err := NewStereoEstimator(700, 0.06, MedianSampler{Window: 5})
	require.NoError(t, err)

	dm := uniform(10, 10, 21)
	dm.Set(5, 5, 0)

	got := est.EstimateAt(dm, 5, 5)
	require.True(t, got.Valid, "median over the window recovers a missing center")
	assert.InDelta(t, 2.0, got.Meters, 1e-9)

	assert.False(t, est.EstimateAt(dm, 10, 5).Valid)
}

func TestMonocularDistance(t *testing.T) {
	got := MonocularDistance(0.45, 650, 146.25)
	require.True(t, got.Valid)
	assert.InDelta(t, 2.0, got.Meters, 1e-9)

	assert.False(t, MonocularDistance(0.45, 650, 0).Valid)
	assert.False(t, MonocularDistance(0.45, 650, -10).Valid)
	assert.False(t, MonocularDistance(0, 650, 100).Valid)
}

func TestMonocularEstimator(t *testing.T) {
	est, err := NewMonocularEstimator(700, map[string]float64{"Door": 0.9})
	require.NoError(t, err)

	door := detection.Detection{Class: "Door", Box: image.Rect(0, 0, 315, 600)}
	got := est.Estimate(door, nil)
	require.True(t, got.Valid)
	assert.InDelta(t, 2.0, got.Meters, 1e-9)

	wall := detection.Detection{Class: "Wall", Box: image.Rect(0, 0, 315, 600)}
	assert.False(t, est.Estimate(wall, nil).Valid, "no registered width")

	_, err = NewMonocularEstimator(0, nil)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

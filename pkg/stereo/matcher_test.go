package stereo

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// shiftedPair builds a random-texture left image and a right image in which
// every left pixel (x, y) appears at (x-shift, y).
func shiftedPair(w, h, shift int, seed int64) (frame.Frame, frame.Frame) {
	rng := rand.New(rand.NewSource(seed))
	left := image.NewGray(image.Rect(0, 0, w, h))
	for i := range left.Pix {
		left.Pix[i] = uint8(rng.Intn(256))
	}
	right := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+shift < w {
				right.SetGray(x, y, left.GrayAt(x+shift, y))
			} else {
				right.Pix[y*right.Stride+x] = uint8(rng.Intn(256))
			}
		}
	}
	return frame.Frame{Seq: 1, Image: left}, frame.Frame{Seq: 1, Image: right}
}

func TestBlockMatcher_RecoversUniformShift(t *testing.T) {
	const w, h, shift = 96, 48, 7

	m, err := NewBlockMatcher(MatcherConfig{NumDisparities: 16, BlockSize: 7, Scale: 1, TextureThreshold: 1}, nil)
	require.NoError(t, err)

	left, right := shiftedPair(w, h, shift, 42)
	dm, err := m.Disparity(context.Background(), left, right)
	require.NoError(t, err)
	require.Equal(t, w, dm.Width)
	require.Equal(t, h, dm.Height)

	// interior pixels where the full search range fits
	total, good := 0, 0
	for y := 3; y < h-3; y++ {
		for x := 3 + 16; x < w-3-shift; x++ {
			total++
			if d, ok := dm.Valid(x, y); ok && d > shift-0.5 && d < shift+0.5 {
				good++
			}
		}
	}
	require.NotZero(t, total)
	assert.Greater(t, float64(good)/float64(total), 0.9, "good=%d total=%d", good, total)
}

func TestBlockMatcher_ScaledOutputMatchesFrameSize(t *testing.T) {
	const w, h, shift = 128, 64, 8

	m, err := NewBlockMatcher(MatcherConfig{NumDisparities: 16, BlockSize: 5, Scale: 0.5, TextureThreshold: 1}, nil)
	require.NoError(t, err)

	left, right := shiftedPair(w, h, shift, 7)
	dm, err := m.Disparity(context.Background(), left, right)
	require.NoError(t, err)
	assert.Equal(t, w, dm.Width)
	assert.Equal(t, h, dm.Height)
	assert.Len(t, dm.Data, w*h)

	// disparities are reported in full-resolution pixels
	lo, hi := dm.Range()
	assert.LessOrEqual(t, lo, hi)
	assert.LessOrEqual(t, hi, float32(2*16))
}

func TestBlockMatcher_TexturelessIsInvalid(t *testing.T) {
	m, err := NewBlockMatcher(MatcherConfig{NumDisparities: 8, BlockSize: 5, Scale: 1, TextureThreshold: 2}, nil)
	require.NoError(t, err)

	flat := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	f := frame.Frame{Image: flat}

	dm, err := m.Disparity(context.Background(), f, f)
	require.NoError(t, err)
	assert.Zero(t, dm.ValidFraction())
}

func TestBlockMatcher_Errors(t *testing.T) {
	m, err := NewBlockMatcher(DefaultMatcherConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Disparity(ctx, frame.Frame{}, frame.Frame{})
	assert.ErrorIs(t, err, ErrEmptyFrame)

	a := frame.Frame{Image: image.NewGray(image.Rect(0, 0, 32, 24))}
	b := frame.Frame{Image: image.NewGray(image.Rect(0, 0, 30, 24))}
	_, err = m.Disparity(ctx, a, b)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Disparity(cancelled, a, a)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBlockMatcher_Validation(t *testing.T) {
	bad := []MatcherConfig{
		{NumDisparities: 0, BlockSize: 5, Scale: 1},
		{NumDisparities: 16, BlockSize: 4, Scale: 1},
		{NumDisparities: 16, BlockSize: 1, Scale: 1},
		{NumDisparities: 16, BlockSize: 5, Scale: 0},
		{NumDisparities: 16, BlockSize: 5, Scale: 1.5},
	}
	for _, cfg := range bad {
		_, err := NewBlockMatcher(cfg, nil)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestIntegrateBoxSum(t *testing.T) {
	src := []int32{
		1, 2, 3,
		4, 5, 6,
	}
	ii := make([]int32, 4*3)
	integrate(src, ii, 3, 2)

	assert.Equal(t, int32(21), boxSum(ii, 4, 0, 0, 3, 2))
	assert.Equal(t, int32(5+6), boxSum(ii, 4, 1, 1, 3, 2))
	assert.Equal(t, int32(2), boxSum(ii, 4, 1, 0, 2, 1))
}

package frame

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrame_Empty(t *testing.T) {
	assert.True(t, Frame{}.Empty())
	assert.True(t, Frame{Image: image.NewGray(image.Rect(0, 0, 0, 10))}.Empty())
	assert.False(t, Frame{Image: image.NewGray(image.Rect(0, 0, 4, 3))}.Empty())
}

func TestFrame_Size(t *testing.T) {
	w, h := Frame{Image: image.NewGray(image.Rect(0, 0, 640, 480))}.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	w, h = Frame{}.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestPair_Skew(t *testing.T) {
	t0 := time.Unix(100, 0)
	p := Pair{
		Left:  Frame{CapturedAt: t0.Add(8 * time.Millisecond)},
		Right: Frame{CapturedAt: t0},
	}
	assert.Equal(t, 8*time.Millisecond, p.Skew())
}

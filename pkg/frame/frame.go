// Package frame defines the captured image value passed between
// cameras, detectors and the disparity matcher.
package frame

import (
	"image"
	"time"
)

// Frame is one captured camera image.
type Frame struct {
	Seq        uint64      // Capture sequence number, shared by a stereo pair
	CapturedAt time.Time   // When the read returned
	Image      image.Image // Decoded pixels; nil means the read produced nothing
}

// Empty reports whether the frame carries no usable pixels.
func (f Frame) Empty() bool {
	if f.Image == nil {
		return true
	}
	b := f.Image.Bounds()
	return b.Dx() <= 0 || b.Dy() <= 0
}

// Size returns the frame dimensions in pixels.
func (f Frame) Size() (width, height int) {
	if f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Pair is a left/right frame pair read back-to-back.
type Pair struct {
	Left  Frame
	Right Frame
}

// Skew is the time between the two reads of the pair.
func (p Pair) Skew() time.Duration {
	d := p.Right.CapturedAt.Sub(p.Left.CapturedAt)
	if d < 0 {
		return -d
	}
	return d
}

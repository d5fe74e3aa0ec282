// Package render turns frame results into what a sighted helper sees: box
// colors, labels, a voice indicator and a normalized disparity image. The
// OpenCV window and JPEG streaming live in the window subpackage.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/stereo"
)

// Palette assigns a box color per class.
type Palette map[detection.Class]color.RGBA

// DefaultPalette covers the bundled obstacle classes.
var DefaultPalette = Palette{
	"Person":   {R: 0, G: 255, B: 0, A: 255},
	"Chair":    {R: 255, G: 0, B: 0, A: 255},
	"Table":    {R: 0, G: 0, B: 255, A: 255},
	"Door":     {R: 0, G: 255, B: 255, A: 255},
	"Stairs":   {R: 255, G: 0, B: 255, A: 255},
	"Obstacle": {R: 255, G: 255, B: 0, A: 255},
	"Wall":     {R: 128, G: 128, B: 128, A: 255},
}

// Fallback is used for classes without a palette entry.
var Fallback = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Color returns the class color.
func (p Palette) Color(c detection.Class) color.RGBA {
	if col, ok := p[c]; ok {
		return col
	}
	return Fallback
}

// Indicator colors.
var (
	VoiceOn  = color.RGBA{G: 255, A: 255}
	VoiceOff = color.RGBA{R: 255, A: 255}
)

// VoiceIndicator returns the on-screen voice state text and color.
func VoiceIndicator(on bool) (string, color.RGBA) {
	if on {
		return "VOICE: ON", VoiceOn
	}
	return "VOICE: OFF", VoiceOff
}

// CenterPoint is the pixel the distance was sampled from.
func CenterPoint(d detection.Detection) image.Point {
	x, y := d.Center()
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// Summary returns one "Class: count" line per class, sorted by class.
func Summary(dets []detection.Annotated) []string {
	counts := detection.Count(dets)
	classes := make([]detection.Class, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	lines := make([]string, len(classes))
	for i, c := range classes {
		lines[i] = fmt.Sprintf("%s: %d", c, counts[c])
	}
	return lines
}

// CaptureName is the still capture path for time t.
func CaptureName(dir string, t time.Time) string {
	return filepath.Join(dir, "capture_"+t.Format("20060102_150405")+".jpg")
}

// NormalizeDisparity min-max scales valid disparities into 1..255 for
// display. Invalid pixels become 0.
func NormalizeDisparity(dm *stereo.DisparityMap) *image.Gray {
	if dm == nil {
		return image.NewGray(image.Rectangle{})
	}
	out := image.NewGray(image.Rect(0, 0, dm.Width, dm.Height))
	lo, hi := dm.Range()
	span := float64(hi - lo)

	for y := 0; y < dm.Height; y++ {
		for x := 0; x < dm.Width; x++ {
			d, ok := dm.Valid(x, y)
			if !ok {
				continue
			}
			v := 255.0
			if span > 0 {
				v = 1 + 254*(d-float64(lo))/span
			}
			out.Pix[y*out.Stride+x] = uint8(math.Round(v))
		}
	}
	return out
}

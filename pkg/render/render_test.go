package render

import (
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/stereo"
)

func TestPalette(t *testing.T) {
	assert.Equal(t, DefaultPalette["Person"], DefaultPalette.Color("Person"))
	assert.Equal(t, Fallback, DefaultPalette.Color("Bicycle"))
}

func TestVoiceIndicator(t *testing.T) {
	text, col := VoiceIndicator(true)
	assert.Equal(t, "VOICE: ON", text)
	assert.Equal(t, VoiceOn, col)

	text, col = VoiceIndicator(false)
	assert.Equal(t, "VOICE: OFF", text)
	assert.Equal(t, VoiceOff, col)
}

func TestCenterPoint(t *testing.T) {
	d := detection.Detection{Box: image.Rect(10, 10, 15, 15)}
	assert.Equal(t, image.Pt(13, 13), CenterPoint(d), "12.5 rounds half away from zero")
}

func TestSummary(t *testing.T) {
	dets := []detection.Annotated{
		{Detection: detection.Detection{Class: "Person"}},
		{Detection: detection.Detection{Class: "Chair"}},
		{Detection: detection.Detection{Class: "Person"}},
	}
	assert.Equal(t, []string{"Chair: 1", "Person: 2"}, Summary(dets))
	assert.Empty(t, Summary(nil))
}

func TestCaptureName(t *testing.T) {
	ts := time.Date(2026, 5, 4, 13, 2, 9, 0, time.UTC)
	assert.Equal(t, filepath.Join("shots", "capture_20260504_130209.jpg"), CaptureName("shots", ts))
}

func TestNormalizeDisparity(t *testing.T) {
	dm := stereo.NewDisparityMap(3, 1)
	dm.Set(0, 0, 10)
	dm.Set(1, 0, 20)
	dm.Set(2, 0, -1)

	g := NormalizeDisparity(dm)
	require.Equal(t, image.Rect(0, 0, 3, 1), g.Bounds())
	assert.Equal(t, []uint8{1, 255, 0}, g.Pix)

	flat := stereo.NewDisparityMap(2, 1)
	flat.Set(0, 0, 5)
	assert.Equal(t, []uint8{255, 0}, NormalizeDisparity(flat).Pix)

	assert.True(t, NormalizeDisparity(nil).Bounds().Empty())
}

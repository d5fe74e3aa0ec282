package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

func TestPhrasing(t *testing.T) {
	near := Alert{Class: "Person", Distance: detection.At(1.54)}
	presence := Alert{Class: "Door"}

	assert.Equal(t, "Person at 1.5 meters", Phrasings["en"].Phrase(near))
	assert.Equal(t, "Door detected", Phrasings["en"].Phrase(presence))
	assert.Equal(t, "Person a 1.5 metros", Phrasings["es"].Phrase(near))
	assert.Equal(t, "Detectado Door", Phrasings["es"].Phrase(presence))
}

func TestCategory(t *testing.T) {
	tests := []struct {
		distance detection.Distance
		want     string
	}{
		{detection.NoDistance, "unknown"},
		{detection.At(0.3), "very close"},
		{detection.At(0.7), "close"},
		{detection.At(1.5), "nearby"},
		{detection.At(2.5), "moderate"},
		{detection.At(4.0), "far"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.distance), "distance %v", tt.distance)
	}
}

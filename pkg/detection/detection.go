// Package detection defines the per-frame object detections produced by the
// detector, the registered class vocabulary, and the distance annotation the
// pipeline attaches to each detection.
package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// Class is a label from the registered vocabulary (e.g. "Person", "Stairs").
type Class string

// Detection is one recognized object in one frame.
// Detections are created fresh every frame and carry no identity across frames.
type Detection struct {
	Class      Class
	ClassID    int
	Confidence float64         // 0-1
	Box        image.Rectangle // Pixel coordinates in the left frame
}

// Center returns the midpoint of the bounding box in pixels.
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2, float64(d.Box.Min.Y+d.Box.Max.Y) / 2
}

// Width returns the bounding box width in pixels.
func (d Detection) Width() int {
	return d.Box.Dx()
}

// Area returns the bounding box area in square pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// Distance is an optional metric distance.
// Valid implies Meters > 0; an invalid distance is a normal outcome
// (no disparity match, sample out of bounds), not an error.
type Distance struct {
	Meters float64 `json:"meters"`
	Valid  bool    `json:"valid"`
}

// NoDistance is the absent distance.
var NoDistance = Distance{}

// At returns a valid distance.
func At(meters float64) Distance {
	return Distance{Meters: meters, Valid: true}
}

// String formats the distance for labels ("1.50m" or "?").
func (d Distance) String() string {
	if !d.Valid {
		return "?"
	}
	return fmt.Sprintf("%.2fm", d.Meters)
}

// Annotated is a detection with its distance estimate attached.
type Annotated struct {
	Detection
	Distance Distance
}

// Label returns the on-screen label, e.g. "Person: 0.87 - 1.50m".
func (a Annotated) Label() string {
	label := fmt.Sprintf("%s: %.2f", a.Class, a.Confidence)
	if a.Distance.Valid {
		label += " - " + a.Distance.String()
	}
	return label
}

// Detector finds objects in a single frame.
type Detector interface {
	// Detect returns zero or more detections at or above the configured
	// confidence threshold.
	Detect(ctx context.Context, f frame.Frame) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// Classes returns the distinct classes present in dets.
func Classes(dets []Annotated) map[Class]struct{} {
	set := make(map[Class]struct{}, len(dets))
	for _, d := range dets {
		set[d.Class] = struct{}{}
	}
	return set
}

// Count returns the number of detections per class.
func Count(dets []Annotated) map[Class]int {
	counts := make(map[Class]int)
	for _, d := range dets {
		counts[d.Class]++
	}
	return counts
}

package pipeline

import (
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

// Report is the wire form of a FrameResult, shared by the dashboard, the
// MQTT emitter and the watch client.
type Report struct {
	Seq           uint64           `json:"seq"`
	At            time.Time        `json:"at"`
	Detections    []DetectionEntry `json:"detections"`
	Alerts        []alert.Alert    `json:"alerts"`
	ValidFraction float64          `json:"disparity_valid_fraction,omitempty"`
	Error         string           `json:"error,omitempty"`
	ElapsedMs     float64          `json:"elapsed_ms"`
}

// DetectionEntry is one annotated detection on the wire.
type DetectionEntry struct {
	Class      detection.Class    `json:"class"`
	Confidence float64            `json:"confidence"`
	Box        [4]int             `json:"box"` // x0, y0, x1, y1
	Distance   detection.Distance `json:"distance"`
	Category   string             `json:"category"`
}

// Report converts the result for publishing.
func (r FrameResult) Report() Report {
	rep := Report{
		Seq:        r.Seq,
		At:         r.At,
		Detections: make([]DetectionEntry, len(r.Detections)),
		Alerts:     r.Alerts,
		ElapsedMs:  float64(r.Elapsed.Microseconds()) / 1000,
	}
	if rep.Alerts == nil {
		rep.Alerts = []alert.Alert{}
	}
	for i, d := range r.Detections {
		rep.Detections[i] = DetectionEntry{
			Class:      d.Class,
			Confidence: d.Confidence,
			Box:        [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
			Distance:   d.Distance,
			Category:   alert.Category(d.Distance),
		}
	}
	if r.Disparity != nil {
		rep.ValidFraction = r.Disparity.ValidFraction()
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

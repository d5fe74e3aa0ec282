package main

import (
	"bytes"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
)

func TestPrintReport(t *testing.T) {
	at := time.Date(2024, 1, 2, 10, 30, 5, 0, time.UTC)
	res := pipeline.FrameResult{
		Seq: 12,
		At:  at,
		Detections: []detection.Annotated{
			{Detection: detection.Detection{Class: "Person", Box: image.Rect(0, 0, 10, 10)}, Distance: detection.At(1.5)},
			{Detection: detection.Detection{Class: "Wall", Box: image.Rect(0, 0, 10, 10)}},
		},
		Alerts:  []alert.Alert{{Class: "Person", Distance: detection.At(1.5), At: at}},
		Elapsed: 4 * time.Millisecond,
	}

	var buf bytes.Buffer
	printReport(&buf, res.Report(), alert.Phrasings["en"])

	assert.Equal(t, "#12 10:30:05.000 4.0ms [Person 1.50m, Wall]\n  ! Person at 1.5 meters\n", buf.String())
}

func TestPrintReport_Error(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, pipeline.Report{Seq: 3, Error: "detect: boom"}, alert.Phrasings["en"])
	assert.Contains(t, buf.String(), "#3")
	assert.Contains(t, buf.String(), "error: detect: boom")
}

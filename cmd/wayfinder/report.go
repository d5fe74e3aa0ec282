package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
)

// printReport writes one line per frame and one indented line per alert.
func printReport(w io.Writer, r pipeline.Report, phrasing alert.Phrasing) {
	if r.Error != "" {
		fmt.Fprintf(w, "#%d %s error: %s\n", r.Seq, r.At.Format("15:04:05.000"), r.Error)
		return
	}

	labels := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		label := string(d.Class)
		if d.Distance.Valid {
			label += fmt.Sprintf(" %.2fm", d.Distance.Meters)
		}
		labels = append(labels, label)
	}
	fmt.Fprintf(w, "#%d %s %.1fms [%s]\n", r.Seq, r.At.Format("15:04:05.000"), r.ElapsedMs, strings.Join(labels, ", "))

	for _, a := range r.Alerts {
		fmt.Fprintf(w, "  ! %s\n", phrasing.Phrase(a))
	}
}

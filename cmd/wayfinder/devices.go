package main

import (
	"log/slog"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/pkg/camera/cv"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/detection/yolo"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/render/window"
	"github.com/teslashibe/go-wayfinder/pkg/session"
	"github.com/teslashibe/go-wayfinder/pkg/wayfinder"
)

// streamEvery is how many frames pass between dashboard camera updates.
const streamEvery = 3

// devices returns the OpenCV-backed camera, detector and windows.
func devices() wayfinder.Devices {
	return wayfinder.Devices{
		OpenCamera: cv.Open,
		OpenDetector: func(c config.DetectionConfig, vocab *detection.Vocabulary, logger *slog.Logger) (pipeline.DetectionSource, error) {
			d, err := yolo.New(yolo.Config{
				ModelPath:        c.ModelPath,
				ConfidenceThresh: float32(c.ConfidenceThreshold),
				NMSThresh:        float32(c.NMSThreshold),
				InputWidth:       c.InputSize,
				InputHeight:      c.InputSize,
			}, vocab, logger)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		NewWindow: func(dir string, send func(session.Control) bool, logger *slog.Logger) session.Observer {
			return window.New(dir, send, logger)
		},
		NewStreamer: func(publish func([]byte), logger *slog.Logger) session.Observer {
			return window.NewStreamer(publish, streamEvery, logger)
		},
	}
}

// Package pipeline runs one frame cycle: disparity, detection, distance
// estimation and alert throttling, in that order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/frame"
	"github.com/teslashibe/go-wayfinder/pkg/stereo"
)

// DisparitySource computes a disparity map from a rectified pair.
type DisparitySource = stereo.Source

// DetectionSource finds objects in the left frame.
type DetectionSource interface {
	Detect(ctx context.Context, f frame.Frame) ([]detection.Detection, error)
}

// FrameResult is everything produced for one processed frame.
type FrameResult struct {
	Seq        uint64                `json:"seq"`
	At         time.Time             `json:"at"`
	Detections []detection.Annotated `json:"detections"`
	Alerts     []alert.Alert         `json:"alerts"`
	Disparity  *stereo.DisparityMap  `json:"-"`
	Err        error                 `json:"-"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// Failed reports whether a source errored for this frame.
func (r FrameResult) Failed() bool {
	return r.Err != nil
}

// Config wires an Orchestrator.
type Config struct {
	Disparity DisparitySource // nil for single-camera mode
	Detector  DetectionSource
	Estimator stereo.Estimator
	Throttler *alert.Throttler
	Parallel  bool // compute disparity and detections concurrently
	Logger    *slog.Logger
}

// Orchestrator owns one throttler and is driven by a single loop.
// It is not safe for concurrent use.
type Orchestrator struct {
	disparity DisparitySource
	detector  DetectionSource
	estimator stereo.Estimator
	throttler *alert.Throttler
	parallel  bool
	logger    *slog.Logger
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Detector == nil {
		return nil, fmt.Errorf("pipeline: detector is required")
	}
	if cfg.Estimator == nil {
		return nil, fmt.Errorf("pipeline: estimator is required")
	}
	if cfg.Throttler == nil {
		return nil, fmt.Errorf("pipeline: throttler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		disparity: cfg.Disparity,
		detector:  cfg.Detector,
		estimator: cfg.Estimator,
		throttler: cfg.Throttler,
		parallel:  cfg.Parallel && cfg.Disparity != nil,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// Throttler exposes the alert state for inspection.
func (o *Orchestrator) Throttler() *alert.Throttler {
	return o.throttler
}

// ProcessFrame runs one cycle. A source failure yields an empty result with
// Err set and leaves the alert state untouched.
func (o *Orchestrator) ProcessFrame(ctx context.Context, left, right frame.Frame, now time.Time) FrameResult {
	start := time.Now()
	res := FrameResult{Seq: left.Seq, At: now}

	dm, dets, err := o.sources(ctx, left, right)
	if err != nil {
		o.logger.Warn("frame dropped", "seq", left.Seq, "error", err)
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	res.Disparity = dm
	res.Detections = make([]detection.Annotated, len(dets))
	for i, d := range dets {
		res.Detections[i] = detection.Annotated{
			Detection: d,
			Distance:  o.estimator.Estimate(d, dm),
		}
	}

	res.Alerts = o.throttler.Decide(res.Detections, now)
	res.Elapsed = time.Since(start)

	if len(res.Alerts) > 0 {
		o.logger.Debug("alerts", "seq", left.Seq, "count", len(res.Alerts))
	}
	return res
}

func (o *Orchestrator) sources(ctx context.Context, left, right frame.Frame) (*stereo.DisparityMap, []detection.Detection, error) {
	if !o.parallel {
		var dm *stereo.DisparityMap
		if o.disparity != nil {
			var err error
			if dm, err = o.disparity.Disparity(ctx, left, right); err != nil {
				return nil, nil, fmt.Errorf("disparity: %w", err)
			}
		}
		dets, err := o.detector.Detect(ctx, left)
		if err != nil {
			return nil, nil, fmt.Errorf("detect: %w", err)
		}
		return dm, dets, nil
	}

	var (
		dm   *stereo.DisparityMap
		dets []detection.Detection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if dm, err = o.disparity.Disparity(gctx, left, right); err != nil {
			return fmt.Errorf("disparity: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if dets, err = o.detector.Detect(gctx, left); err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return dm, dets, nil
}

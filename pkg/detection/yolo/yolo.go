// Package yolo runs a YOLOv8 ONNX model through the OpenCV DNN module.
package yolo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// ErrEmptyFrame is returned for frames without pixels.
var ErrEmptyFrame = errors.New("yolo: empty frame")

// Config holds YOLO detector configuration.
type Config struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultConfig returns defaults for the bundled obstacle model.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/best.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// Detector uses YOLOv8 for object detection.
type Detector struct {
	net    gocv.Net
	config Config
	vocab  *detection.Vocabulary
	logger *slog.Logger

	mu        sync.Mutex
	inputSize image.Point
}

// New loads the model. A missing or unreadable model is fatal to starting a session.
func New(cfg Config, vocab *detection.Vocabulary, logger *slog.Logger) (*Detector, error) {
	if vocab == nil {
		return nil, detection.ErrEmptyVocabulary
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yolo: model file: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("yolo: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("yolo: set target: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		net:       net,
		config:    cfg,
		vocab:     vocab,
		logger:    logger.With("component", "detection.yolo"),
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the frame.
func (d *Detector) Detect(ctx context.Context, f frame.Frame) ([]detection.Detection, error) {
	if f.Empty() {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.ImageToMatRGB(f.Image)
	if err != nil {
		return nil, fmt.Errorf("yolo: convert frame: %w", err)
	}
	defer img.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Output shape: [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", dims)
	}
	channels, anchors := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}

	cands := detection.DecodeYOLOv8(data, channels, anchors,
		d.config.InputWidth, d.config.InputHeight, img.Cols(), img.Rows(),
		d.config.ConfidenceThresh)
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Confidence
	}
	keep := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	dets := make([]detection.Detection, 0, len(keep))
	for _, idx := range keep {
		c := cands[idx]
		name, ok := d.vocab.Name(c.ClassID)
		if !ok {
			continue
		}
		dets = append(dets, detection.Detection{
			Class:      name,
			ClassID:    c.ClassID,
			Confidence: float64(c.Confidence),
			Box:        c.Box,
		})
	}

	d.logger.Debug("detected objects", "seq", f.Seq, "count", len(dets))
	return dets, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ detection.Detector = (*Detector)(nil)

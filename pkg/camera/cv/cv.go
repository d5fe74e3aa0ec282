// Package cv opens capture devices through OpenCV.
package cv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
)

// Device is an OpenCV VideoCapture implementing camera.Grabber.
type Device struct {
	id  int
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenDevice opens device id and requests the configured format.
func OpenDevice(id int, cfg camera.Config) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: device %d not available", id)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	return &Device{id: id, cap: vc, mat: gocv.NewMat()}, nil
}

// Grab implements camera.Grabber.
func (d *Device) Grab() (image.Image, error) {
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, fmt.Errorf("device %d returned no frame", d.id)
	}
	return d.mat.ToImage()
}

// Close releases the device.
func (d *Device) Close() error {
	return errors.Join(d.mat.Close(), d.cap.Close())
}

// Open opens the devices in cfg. Failure here is fatal to the session.
func Open(cfg camera.Config) (camera.Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	left, err := OpenDevice(cfg.Left, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Stereo() {
		return camera.NewMono(left, nil), nil
	}

	right, err := OpenDevice(cfg.Right, cfg)
	if err != nil {
		left.Close()
		return nil, err
	}
	return camera.NewStereo(left, right, nil), nil
}

var _ camera.Grabber = (*Device)(nil)

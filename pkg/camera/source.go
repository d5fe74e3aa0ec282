package camera

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// ErrReadFailed is returned when a device yields no image. It is transient:
// the caller skips the iteration and reads again.
var ErrReadFailed = errors.New("camera: read failed")

// Grabber reads one decoded image from a device.
type Grabber interface {
	Grab() (image.Image, error)
	Close() error
}

// Source yields frame pairs; single-camera sources leave Right empty.
type Source interface {
	Read() (frame.Pair, error)
	Close() error
}

// Stereo reads a left/right pair back-to-back.
type Stereo struct {
	left, right Grabber
	now         func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewStereo wraps two grabbers. now defaults to time.Now.
func NewStereo(left, right Grabber, now func() time.Time) *Stereo {
	if now == nil {
		now = time.Now
	}
	return &Stereo{left: left, right: right, now: now}
}

// Read grabs left then right with nothing in between. Both frames share a
// sequence number.
func (s *Stereo) Read() (frame.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limg, lerr := s.left.Grab()
	lat := s.now()
	rimg, rerr := s.right.Grab()
	rat := s.now()

	if err := readErr("left", limg, lerr); err != nil {
		return frame.Pair{}, err
	}
	if err := readErr("right", rimg, rerr); err != nil {
		return frame.Pair{}, err
	}

	s.seq++
	return frame.Pair{
		Left:  frame.Frame{Seq: s.seq, CapturedAt: lat, Image: limg},
		Right: frame.Frame{Seq: s.seq, CapturedAt: rat, Image: rimg},
	}, nil
}

// Close releases both devices.
func (s *Stereo) Close() error {
	return errors.Join(s.left.Close(), s.right.Close())
}

// Mono reads from a single device. Its pairs carry an empty right frame.
type Mono struct {
	cam Grabber
	now func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewMono wraps one grabber.
func NewMono(cam Grabber, now func() time.Time) *Mono {
	if now == nil {
		now = time.Now
	}
	return &Mono{cam: cam, now: now}
}

// Read grabs one frame.
func (m *Mono) Read() (frame.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, err := m.cam.Grab()
	at := m.now()
	if err := readErr("camera", img, err); err != nil {
		return frame.Pair{}, err
	}

	m.seq++
	return frame.Pair{Left: frame.Frame{Seq: m.seq, CapturedAt: at, Image: img}}, nil
}

// Close releases the device.
func (m *Mono) Close() error {
	return m.cam.Close()
}

var (
	_ Source = (*Stereo)(nil)
	_ Source = (*Mono)(nil)
)

func readErr(side string, img image.Image, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadFailed, side, err)
	}
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: %s: empty frame", ErrReadFailed, side)
	}
	return nil
}

// Package window draws annotated frames with OpenCV: the on-screen window
// with keyboard controls, still captures and JPEG frames for the dashboard.
package window

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/render"
	"github.com/teslashibe/go-wayfinder/pkg/session"
)

const (
	mainTitle      = "wayfinder"
	disparityTitle = "disparity"
	font           = gocv.FontHersheySimplex
)

var black = color.RGBA{A: 255}

// Annotate draws the view onto a copy of the left frame. The caller owns
// the returned Mat.
func Annotate(v session.View, palette render.Palette) (gocv.Mat, error) {
	if v.Pair.Left.Image == nil {
		return gocv.NewMat(), errors.New("window: empty frame")
	}
	mat, err := gocv.ImageToMatRGB(v.Pair.Left.Image)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("window: convert frame: %w", err)
	}

	for _, d := range v.Result.Detections {
		col := palette.Color(d.Class)
		box := d.Box
		gocv.Rectangle(&mat, box, col, 2)

		label := d.Label()
		size := gocv.GetTextSize(label, font, 0.6, 2)
		bg := image.Rect(box.Min.X, box.Min.Y-size.Y-10, box.Min.X+size.X, box.Min.Y)
		gocv.Rectangle(&mat, bg, col, -1)
		gocv.PutText(&mat, label, image.Pt(box.Min.X, box.Min.Y-5), font, 0.6, black, 2)

		gocv.Circle(&mat, render.CenterPoint(d.Detection), 5, col, -1)
	}

	y := 30
	for _, line := range render.Summary(v.Result.Detections) {
		gocv.PutText(&mat, line, image.Pt(10, y), font, 0.7, render.VoiceOn, 2)
		y += 30
	}

	text, col := render.VoiceIndicator(v.VoiceEnabled)
	gocv.PutText(&mat, text, image.Pt(10, mat.Rows()-10), font, 0.6, col, 2)
	return mat, nil
}

// Colorize renders the view's disparity map with the JET colormap.
func Colorize(v session.View) (gocv.Mat, error) {
	g := render.NormalizeDisparity(v.Result.Disparity)
	if g.Bounds().Empty() {
		return gocv.NewMat(), errors.New("window: no disparity")
	}
	gray, err := gocv.NewMatFromBytes(g.Rect.Dy(), g.Rect.Dx(), gocv.MatTypeCV8U, g.Pix)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	out := gocv.NewMat()
	gocv.ApplyColorMap(gray, &out, gocv.ColormapJet)
	return out, nil
}

// Window shows annotated frames and turns key presses into session controls.
type Window struct {
	main      *gocv.Window
	disparity *gocv.Window
	palette   render.Palette
	dir       string
	send      func(session.Control) bool
	logger    *slog.Logger
}

// New opens the main window. send delivers key presses, usually Session.Send.
// Captures are written under dir.
func New(dir string, send func(session.Control) bool, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{
		main:    gocv.NewWindow(mainTitle),
		palette: render.DefaultPalette,
		dir:     dir,
		send:    send,
		logger:  logger.With("component", "render.window"),
	}
}

// Observe implements session.Observer.
func (w *Window) Observe(v session.View) {
	mat, err := Annotate(v, w.palette)
	if err != nil {
		w.logger.Debug("skip frame", "error", err)
		return
	}
	defer mat.Close()

	w.main.IMShow(mat)
	w.showDisparity(v)

	if v.Capture {
		name := render.CaptureName(w.dir, v.Pair.Left.CapturedAt)
		if gocv.IMWrite(name, mat) {
			w.logger.Info("capture saved", "path", name)
		} else {
			w.logger.Warn("capture failed", "path", name)
		}
	}

	if c, ok := session.KeyControl(w.main.WaitKey(1) & 0xFF); ok {
		w.send(c)
	}
}

func (w *Window) showDisparity(v session.View) {
	if !v.ShowDisparity {
		if w.disparity != nil {
			w.disparity.Close()
			w.disparity = nil
		}
		return
	}
	if v.Result.Disparity == nil {
		return
	}
	colored, err := Colorize(v)
	if err != nil {
		return
	}
	defer colored.Close()

	if w.disparity == nil {
		w.disparity = gocv.NewWindow(disparityTitle)
	}
	w.disparity.IMShow(colored)
}

// Close destroys the windows.
func (w *Window) Close() error {
	var errs []error
	if w.disparity != nil {
		errs = append(errs, w.disparity.Close())
	}
	errs = append(errs, w.main.Close())
	return errors.Join(errs...)
}

// Streamer encodes annotated frames as JPEG and hands them to publish,
// typically the dashboard camera hub.
type Streamer struct {
	palette render.Palette
	publish func([]byte)
	every   int
	n       int
	logger  *slog.Logger
}

// NewStreamer encodes one in every frames.
func NewStreamer(publish func([]byte), every int, logger *slog.Logger) *Streamer {
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		palette: render.DefaultPalette,
		publish: publish,
		every:   every,
		logger:  logger.With("component", "render.stream"),
	}
}

// Observe implements session.Observer.
func (s *Streamer) Observe(v session.View) {
	s.n++
	if (s.n-1)%s.every != 0 {
		return
	}
	mat, err := Annotate(v, s.palette)
	if err != nil {
		return
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Debug("jpeg encode failed", "error", err)
		return
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())
	s.publish(jpeg)
}

var (
	_ session.Observer = (*Window)(nil)
	_ session.Observer = (*Streamer)(nil)
)

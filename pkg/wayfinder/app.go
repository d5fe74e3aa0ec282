// Package wayfinder assembles a complete obstacle-announcing session from
// configuration: cameras, detector, distance estimation, throttling, voice,
// dashboard and MQTT publishing.
package wayfinder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/emitter"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/session"
	"github.com/teslashibe/go-wayfinder/pkg/stereo"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
	"github.com/teslashibe/go-wayfinder/pkg/voice"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

// Mode selects how distances are estimated.
type Mode int

const (
	// Stereo triangulates from a disparity map of a calibrated camera pair.
	Stereo Mode = iota
	// Mono uses one camera and known real-world class widths.
	Mono
)

func (m Mode) String() string {
	if m == Mono {
		return "mono"
	}
	return "stereo"
}

// ErrMissingDevice is returned by New when a required device constructor is nil.
var ErrMissingDevice = errors.New("wayfinder: missing device constructor")

// Devices builds the hardware-backed pieces. The OpenCV implementations
// live in the command so this package stays testable without cgo.
type Devices struct {
	OpenCamera   func(camera.Config) (camera.Source, error)
	OpenDetector func(config.DetectionConfig, *detection.Vocabulary, *slog.Logger) (pipeline.DetectionSource, error)

	// Optional.
	NewWindow   func(dir string, send func(session.Control) bool, logger *slog.Logger) session.Observer
	NewStreamer func(publish func([]byte), logger *slog.Logger) session.Observer

	// Sink replaces the configured text-to-speech voice when set.
	Sink voice.Sink
}

// App owns every component of one session and their lifecycle.
type App struct {
	cfg    config.Config
	mode   Mode
	dev    Devices
	logger *slog.Logger

	detector pipeline.DetectionSource
	source   camera.Source
	speaker  *voice.Speaker
	session  *session.Session
	web      *web.Server
	emitter  *emitter.Emitter
	closers  []io.Closer
}

// New validates cfg and the device constructors.
func New(cfg config.Config, mode Mode, dev Devices, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dev.OpenCamera == nil || dev.OpenDetector == nil {
		return nil, ErrMissingDevice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		mode:   mode,
		dev:    dev,
		logger: logger,
	}, nil
}

// Session returns the live session, nil before Init.
func (a *App) Session() *session.Session {
	return a.session
}

// Web returns the dashboard server, nil when disabled.
func (a *App) Web() *web.Server {
	return a.web
}

// Init builds every component. Detector and camera failures are fatal;
// voice, dashboard and MQTT problems only disable that feature.
func (a *App) Init() error {
	a.logger.Info("initializing", "mode", a.mode)

	proc, err := a.initPipeline()
	if err != nil {
		a.Shutdown()
		return err
	}

	a.source, err = a.dev.OpenCamera(a.cfg.Camera(a.mode == Stereo))
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("camera: %w", err)
	}
	a.closers = append(a.closers, a.source)

	sink := a.initVoice()
	voiceOn := a.cfg.Session.VoiceEnabled && sink != nil
	if sink == nil {
		sink = voice.Discard{}
	}

	a.session = session.New(a.source, proc,
		session.WithConfig(session.Config{
			FrameSkip:       a.cfg.Session.FrameSkip,
			VoiceEnabled:    voiceOn,
			ShowDisparity:   a.cfg.Session.ShowDisparity && a.mode == Stereo,
			MaxReadFailures: a.cfg.Session.MaxReadFailures,
			Phrasing:        alert.Phrasings[a.cfg.Alerts.Language],
		}),
		session.WithSink(sink),
		session.WithLogger(a.logger),
	)

	if a.cfg.Session.ShowWindow && a.dev.NewWindow != nil {
		a.addObserver(a.dev.NewWindow(a.cfg.Session.CaptureDir, a.session.Send, a.logger))
	}
	a.initWeb()
	a.initEmitter()

	a.logger.Info("ready", "session_id", a.session.ID(), "voice", voiceOn)
	return nil
}

func (a *App) initPipeline() (*pipeline.Orchestrator, error) {
	vocab, err := detection.NewVocabulary(a.cfg.Detection.Classes...)
	if err != nil {
		return nil, err
	}
	a.detector, err = a.dev.OpenDetector(a.cfg.Detection, vocab, a.logger)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if c, ok := a.detector.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	policy := alert.Policy{
		ProximityThreshold:      a.cfg.Alerts.ProximityThreshold,
		Cooldown:                a.cfg.Alerts.Cooldown,
		AnnounceWithoutDistance: a.cfg.Alerts.AnnounceWithoutDistance,
	}

	pc := pipeline.Config{
		Detector:  a.detector,
		Throttler: alert.NewThrottler(policy),
		Logger:    a.logger,
	}

	switch a.mode {
	case Mono:
		est, err := stereo.NewMonocularEstimator(a.cfg.Stereo.FocalLength, a.cfg.Detection.KnownWidths)
		if err != nil {
			return nil, err
		}
		if len(est.Widths) == 0 {
			// No calibration at all: announce presence rather than stay silent.
			a.logger.Info("no known widths, announcing detections without distance")
			policy.AnnounceWithoutDistance = true
			pc.Throttler = alert.NewThrottler(policy)
		}
		pc.Estimator = est
	default:
		var sampler stereo.Sampler = stereo.PointSampler{}
		if a.cfg.Stereo.Sampler == "median" {
			sampler = stereo.MedianSampler{Window: a.cfg.Stereo.MedianWindow}
		}
		est, err := stereo.NewStereoEstimator(a.cfg.Stereo.FocalLength, a.cfg.Stereo.Baseline, sampler)
		if err != nil {
			return nil, err
		}
		mc := stereo.DefaultMatcherConfig()
		mc.NumDisparities = a.cfg.Stereo.NumDisparities
		mc.BlockSize = a.cfg.Stereo.BlockSize
		mc.Scale = a.cfg.Stereo.Scale
		matcher, err := stereo.NewBlockMatcher(mc, a.logger)
		if err != nil {
			return nil, err
		}
		pc.Estimator = est
		pc.Disparity = matcher
		pc.Parallel = a.cfg.Stereo.Parallel
	}

	return pipeline.New(pc)
}

// initVoice returns nil when no voice is available.
func (a *App) initVoice() voice.Sink {
	if a.dev.Sink != nil {
		return a.dev.Sink
	}

	name := a.cfg.Voice.Provider
	voiceName := a.cfg.Voice.Voice
	if voiceName == "" && name == tts.NameEspeak {
		voiceName = a.cfg.Alerts.Language
	}

	provider, err := tts.New(name,
		tts.WithAPIKey(a.cfg.Voice.OpenAIKey),
		tts.WithVoice(voiceName),
		tts.WithRate(a.cfg.Voice.Rate),
		tts.WithLogger(a.logger),
	)
	if err != nil {
		a.logger.Warn("voice disabled", "provider", name, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := provider.Health(ctx); err != nil {
		a.logger.Warn("voice disabled", "provider", name, "error", err)
		provider.Close()
		return nil
	}

	player, err := voice.PlayerFromArgv(a.cfg.Voice.Player)
	if err == nil {
		err = player.Available()
	}
	if err != nil {
		a.logger.Warn("voice disabled", "player", a.cfg.Voice.Player, "error", err)
		provider.Close()
		return nil
	}

	a.speaker = voice.NewSpeaker(provider, player, a.logger)
	return a.speaker
}

func (a *App) initWeb() {
	if a.cfg.Web.Addr == "" {
		return
	}
	public := a.cfg
	public.Voice.OpenAIKey = ""
	srv := web.NewServer(a.cfg.Web.Addr, a.session, public, alert.Phrasings[a.cfg.Alerts.Language], a.logger)
	if err := srv.Bind(); err != nil {
		a.logger.Warn("dashboard disabled", "addr", a.cfg.Web.Addr, "error", err)
		return
	}
	a.web = srv
	a.addObserver(a.web)
	if a.dev.NewStreamer != nil {
		a.addObserver(a.dev.NewStreamer(a.web.PublishFrame, a.logger))
	}
}

func (a *App) initEmitter() {
	if a.cfg.MQTT.Broker == "" {
		return
	}
	e, err := emitter.Connect(emitter.Config{
		Broker:    a.cfg.MQTT.Broker,
		Prefix:    a.cfg.MQTT.TopicPrefix,
		SessionID: a.session.ID(),
		QoS:       a.cfg.MQTT.QoS,
	}, a.logger)
	if err != nil {
		a.logger.Warn("mqtt disabled", "broker", a.cfg.MQTT.Broker, "error", err)
		return
	}
	a.emitter = e
	a.addObserver(e)
}

func (a *App) addObserver(o session.Observer) {
	a.session.AddObserver(o)
	if c, ok := o.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Run drives the session until it stops, then stops the dashboard and
// publisher.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return errors.New("wayfinder: Run called before Init")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if a.web != nil {
		g.Go(func() error {
			if err := a.web.Run(gctx); err != nil {
				a.logger.Warn("dashboard stopped", "error", err)
			}
			return nil
		})
	}
	if a.emitter != nil {
		g.Go(func() error {
			a.emitter.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return a.session.Run(gctx)
	})
	return g.Wait()
}

// Shutdown releases everything Init opened. Voice tasks still in flight
// get a short grace period.
func (a *App) Shutdown() {
	if a.speaker != nil {
		if err := a.speaker.Close(500 * time.Millisecond); err != nil {
			a.logger.Debug("voice close", "error", err)
		}
		a.speaker = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Debug("close", "error", err)
		}
	}
	a.closers = nil
}

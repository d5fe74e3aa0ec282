// Package session runs the live capture loop: read a pair, decide whether
// this frame is processed, run the pipeline, speak alerts and hand the
// result to observers.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/frame"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/voice"
)

// ErrTooManyReadFailures ends a session whose camera keeps failing.
var ErrTooManyReadFailures = errors.New("session: too many consecutive read failures")

// Processor runs one frame cycle. *pipeline.Orchestrator implements it.
type Processor interface {
	ProcessFrame(ctx context.Context, left, right frame.Frame, now time.Time) pipeline.FrameResult
}

// View is what observers receive for every captured pair.
type View struct {
	SessionID string
	Pair      frame.Pair
	Result    pipeline.FrameResult // previous result on skipped frames
	Processed bool

	VoiceEnabled  bool
	ShowDisparity bool
	Capture       bool // a still capture was requested for this frame
}

// Observer receives views on the loop goroutine and must not block.
type Observer interface {
	Observe(v View)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(View)

// Observe implements Observer.
func (f ObserverFunc) Observe(v View) { f(v) }

// Stats counts loop activity.
type Stats struct {
	Captured     int64 `json:"captured"`
	Processed    int64 `json:"processed"`
	Failed       int64 `json:"failed"`
	ReadFailures int64 `json:"read_failures"`
	Alerts       int64 `json:"alerts"`
	Spoken       int64 `json:"spoken"`
}

// Status is a point-in-time snapshot for dashboards.
type Status struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	Uptime        string        `json:"uptime"`
	Running       bool          `json:"running"`
	VoiceEnabled  bool          `json:"voice_enabled"`
	ShowDisparity bool          `json:"show_disparity"`
	FrameSkip     int           `json:"frame_skip"`
	Stats         Stats         `json:"stats"`
	LastSeq       uint64        `json:"last_seq"`
	LastAlerts    []alert.Alert `json:"last_alerts"`
}

// Config tunes the loop.
type Config struct {
	FrameSkip       int  // process every Nth pair, >= 1
	VoiceEnabled    bool // initial state
	ShowDisparity   bool // initial state
	MaxReadFailures int  // consecutive; 0 never gives up
	Phrasing        alert.Phrasing
}

// DefaultConfig processes every 5th pair with voice and disparity on.
func DefaultConfig() Config {
	return Config{
		FrameSkip:       5,
		VoiceEnabled:    true,
		ShowDisparity:   true,
		MaxReadFailures: 30,
		Phrasing:        alert.Phrasings["en"],
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the loop configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithSink sets the voice sink. Without one alerts are only observed.
func WithSink(sink voice.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithClock injects the clock used to timestamp frames.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObservers registers observers in call order.
func WithObservers(obs ...Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, obs...) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session owns one camera source, one processor and the loop state.
type Session struct {
	id        string
	cfg       Config
	source    camera.Source
	proc      Processor
	sink      voice.Sink
	clock     clock.Clock
	observers []Observer
	logger    *slog.Logger

	controls  chan Control
	voice     atomic.Bool
	disparity atomic.Bool
	running   atomic.Bool
	startedAt time.Time

	captured, processed, failed, readFailures, alerts, spoken atomic.Int64

	mu   sync.RWMutex
	last pipeline.FrameResult
}

// New creates a session. The processor's throttler belongs to this session.
func New(source camera.Source, proc Processor, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		cfg:      DefaultConfig(),
		source:   source,
		proc:     proc,
		sink:     voice.Discard{},
		clock:    clock.New(),
		logger:   slog.Default(),
		controls: make(chan Control, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.FrameSkip < 1 {
		s.cfg.FrameSkip = 1
	}
	if s.cfg.Phrasing == (alert.Phrasing{}) {
		s.cfg.Phrasing = alert.Phrasings["en"]
	}
	s.logger = s.logger.With("component", "session", "session_id", s.id)
	s.voice.Store(s.cfg.VoiceEnabled)
	s.disparity.Store(s.cfg.ShowDisparity)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Send queues a control without blocking. It reports false if the queue is full.
func (s *Session) Send(c Control) bool {
	select {
	case s.controls <- c:
		return true
	default:
		return false
	}
}

// AddObserver registers observers after construction, for observers that
// need the session itself. It must be called before Run.
func (s *Session) AddObserver(obs ...Observer) {
	s.observers = append(s.observers, obs...)
}

// VoiceEnabled reports the current voice flag.
func (s *Session) VoiceEnabled() bool {
	return s.voice.Load()
}

// Run loops until Stop, ctx cancellation, or too many read failures.
// Stop and cancellation return nil.
func (s *Session) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	s.mu.Lock()
	s.startedAt = s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("session started",
		"frame_skip", s.cfg.FrameSkip,
		"voice", s.voice.Load(),
	)
	defer func() {
		st := s.Stats()
		s.logger.Info("session stopped",
			"captured", st.Captured,
			"processed", st.Processed,
			"alerts", st.Alerts,
		)
	}()

	var (
		consecutive int
		capture     bool
	)
	for {
		if ctx.Err() != nil {
			return nil
		}

		pair, err := s.source.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.readFailures.Add(1)
			consecutive++
			s.logger.Warn("camera read failed", "error", err, "consecutive", consecutive)
			if s.cfg.MaxReadFailures > 0 && consecutive >= s.cfg.MaxReadFailures {
				return errors.Join(ErrTooManyReadFailures, err)
			}
			if stop, _ := s.applyControls(); stop {
				return nil
			}
			continue
		}
		consecutive = 0

		n := s.captured.Add(1)
		view := View{SessionID: s.id, Pair: pair, Capture: capture}
		capture = false

		if (n-1)%int64(s.cfg.FrameSkip) == 0 {
			view.Result = s.process(ctx, pair)
			view.Processed = true
		} else {
			s.mu.RLock()
			view.Result = s.last
			s.mu.RUnlock()
		}
		view.VoiceEnabled = s.voice.Load()
		view.ShowDisparity = s.disparity.Load()

		for _, o := range s.observers {
			o.Observe(view)
		}

		stop, wantCapture := s.applyControls()
		if stop {
			return nil
		}
		capture = wantCapture
	}
}

func (s *Session) process(ctx context.Context, pair frame.Pair) pipeline.FrameResult {
	res := s.proc.ProcessFrame(ctx, pair.Left, pair.Right, s.clock.Now())
	s.processed.Add(1)

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	if res.Err != nil {
		s.failed.Add(1)
		return res
	}

	s.alerts.Add(int64(len(res.Alerts)))
	if !s.voice.Load() {
		return res
	}
	for _, a := range res.Alerts {
		s.sink.Speak(s.cfg.Phrasing.Phrase(a))
		s.spoken.Add(1)
	}
	return res
}

// applyControls drains pending controls.
func (s *Session) applyControls() (stop, capture bool) {
	for {
		select {
		case c := <-s.controls:
			switch c {
			case Stop:
				s.logger.Info("stop requested")
				return true, capture
			case ToggleVoice:
				on := !s.voice.Load()
				s.voice.Store(on)
				s.logger.Info("voice toggled", "enabled", on)
			case ToggleDisparity:
				on := !s.disparity.Load()
				s.disparity.Store(on)
				s.logger.Debug("disparity view toggled", "enabled", on)
			case Capture:
				capture = true
			}
		default:
			return false, capture
		}
	}
}

// Stats returns the counters.
func (s *Session) Stats() Stats {
	return Stats{
		Captured:     s.captured.Load(),
		Processed:    s.processed.Load(),
		Failed:       s.failed.Load(),
		ReadFailures: s.readFailures.Load(),
		Alerts:       s.alerts.Load(),
		Spoken:       s.spoken.Load(),
	}
}

// Status returns a snapshot safe to call from any goroutine.
func (s *Session) Status() Status {
	s.mu.RLock()
	last := s.last
	started := s.startedAt
	s.mu.RUnlock()

	st := Status{
		ID:            s.id,
		StartedAt:     started,
		Running:       s.running.Load(),
		VoiceEnabled:  s.voice.Load(),
		ShowDisparity: s.disparity.Load(),
		FrameSkip:     s.cfg.FrameSkip,
		Stats:         s.Stats(),
		LastSeq:       last.Seq,
		LastAlerts:    last.Alerts,
	}
	if !started.IsZero() {
		st.Uptime = s.clock.Since(started).Round(time.Second).String()
	}
	return st
}

// Close releases the camera source.
func (s *Session) Close() error {
	return s.source.Close()
}

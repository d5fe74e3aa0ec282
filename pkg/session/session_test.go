package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/detection"
	"github.com/teslashibe/go-wayfinder/pkg/frame"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/stereo"
	"github.com/teslashibe/go-wayfinder/pkg/voice"
)

// scriptedSource yields n pairs, advancing the mock clock by step before
// each read, then cancels the run.
type scriptedSource struct {
	n      int
	step   time.Duration
	clock  *clock.Mock
	cancel context.CancelFunc
	fail   map[int]bool // read indexes (1-based) that fail

	reads  int
	seq    uint64
	closed bool
}

func (s *scriptedSource) Read() (frame.Pair, error) {
	s.reads++
	if s.reads > s.n {
		s.cancel()
		return frame.Pair{}, errors.New("exhausted")
	}
	if s.clock != nil {
		s.clock.Add(s.step)
	}
	if s.fail[s.reads] {
		return frame.Pair{}, errors.New("usb hiccup")
	}
	s.seq++
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	return frame.Pair{
		Left:  frame.Frame{Seq: s.seq, Image: img},
		Right: frame.Frame{Seq: s.seq, Image: img},
	}, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

// recordingProcessor wraps a real orchestrator and records calls.
type recordingProcessor struct {
	inner Processor
	mu    sync.Mutex
	seqs  []uint64
	times []time.Time
}

func (p *recordingProcessor) ProcessFrame(ctx context.Context, l, r frame.Frame, now time.Time) pipeline.FrameResult {
	p.mu.Lock()
	p.seqs = append(p.seqs, l.Seq)
	p.times = append(p.times, now)
	p.mu.Unlock()
	return p.inner.ProcessFrame(ctx, l, r, now)
}

type scriptedDetector struct {
	bySeq map[uint64][]detection.Detection
	err   map[uint64]error
}

func (d *scriptedDetector) Detect(_ context.Context, f frame.Frame) ([]detection.Detection, error) {
	return d.bySeq[f.Seq], d.err[f.Seq]
}

// rangeEstimator returns a fixed distance per class.
type rangeEstimator map[detection.Class]float64

func (r rangeEstimator) Estimate(det detection.Detection, _ *stereo.DisparityMap) detection.Distance {
	if m, ok := r[det.Class]; ok {
		return detection.At(m)
	}
	return detection.NoDistance
}

func obstacle(class string) detection.Detection {
	return detection.Detection{Class: detection.Class(class), Confidence: 0.9, Box: image.Rect(10, 10, 20, 20)}
}

type harness struct {
	src   *scriptedSource
	proc  *recordingProcessor
	rec   *voice.Recorder
	clock *clock.Mock
	views []View
	sess  *Session
	ctx   context.Context
}

func newHarness(t *testing.T, n int, det *scriptedDetector, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mock := clock.NewMock()
	orch, err := pipeline.New(pipeline.Config{
		Detector:  det,
		Estimator: rangeEstimator{"Person": 1.5, "Chair": 1.0, "Wall": 5.0},
		Throttler: alert.NewThrottler(alert.DefaultPolicy()),
	})
	require.NoError(t, err)

	h := &harness{
		src:   &scriptedSource{n: n, step: 100 * time.Millisecond, clock: mock, cancel: cancel},
		proc:  &recordingProcessor{inner: orch},
		rec:   voice.NewRecorder(),
		clock: mock,
		ctx:   ctx,
	}
	h.sess = New(h.src, h.proc,
		WithConfig(cfg),
		WithSink(h.rec),
		WithClock(mock),
		WithObservers(ObserverFunc(func(v View) { h.views = append(h.views, v) })),
	)
	return h
}

func everyFrame(dets ...detection.Detection) *scriptedDetector {
	d := &scriptedDetector{bySeq: map[uint64][]detection.Detection{}}
	for seq := uint64(1); seq <= 100; seq++ {
		d.bySeq[seq] = dets
	}
	return d
}

func TestRun_ProcessesEveryNthFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 5
	h := newHarness(t, 12, everyFrame(), cfg)

	require.NoError(t, h.sess.Run(h.ctx))

	assert.Equal(t, []uint64{1, 6, 11}, h.proc.seqs)
	require.Len(t, h.views, 12)
	for i, v := range h.views {
		assert.Equal(t, i%5 == 0, v.Processed, "frame %d", i+1)
	}
	// skipped frames carry the previous result
	assert.Equal(t, uint64(6), h.views[8].Result.Seq)

	st := h.sess.Stats()
	assert.Equal(t, int64(12), st.Captured)
	assert.Equal(t, int64(3), st.Processed)
}

func TestRun_SkippedFramesDoNotForgetClasses(t *testing.T) {
	// Person is visible on processed frames 1 and 3 only; the frame in
	// between is skipped, so the throttler never sees an empty frame and the
	// cooldown from frame 1 still applies on frame 3.
	det := &scriptedDetector{bySeq: map[uint64][]detection.Detection{
		1: {obstacle("Person")},
		3: {obstacle("Person")},
	}}
	cfg := DefaultConfig()
	cfg.FrameSkip = 2
	h := newHarness(t, 3, det, cfg)

	require.NoError(t, h.sess.Run(h.ctx))

	assert.Equal(t, []uint64{1, 3}, h.proc.seqs)
	assert.Equal(t, []string{"Person at 1.5 meters"}, h.rec.Texts())
}

func TestRun_CooldownUsesInjectedClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	// 100ms per frame: alerts at t=0.1s, 2.1s, 4.1s
	h := newHarness(t, 45, everyFrame(obstacle("Chair")), cfg)

	require.NoError(t, h.sess.Run(h.ctx))

	assert.Len(t, h.rec.Texts(), 3)
	assert.True(t, h.proc.times[0].Equal(time.Unix(0, 0).Add(100*time.Millisecond)))
	assert.True(t, h.proc.times[20].Sub(h.proc.times[0]) == 2*time.Second)
	assert.Equal(t, int64(3), h.sess.Stats().Alerts)
}

func TestRun_VoiceOffStillComputesAlerts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	cfg.VoiceEnabled = false
	h := newHarness(t, 1, everyFrame(obstacle("Chair"), obstacle("Wall")), cfg)

	require.NoError(t, h.sess.Run(h.ctx))

	require.Len(t, h.views, 1)
	assert.Len(t, h.views[0].Result.Alerts, 1, "far wall does not alert")
	assert.False(t, h.views[0].VoiceEnabled)
	assert.Empty(t, h.rec.Texts())
	assert.Equal(t, int64(1), h.sess.Stats().Alerts)
	assert.Zero(t, h.sess.Stats().Spoken)
}

func TestRun_Controls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	h := newHarness(t, 10, everyFrame(), cfg)

	var views []View
	h.sess.observers = []Observer{ObserverFunc(func(v View) {
		views = append(views, v)
		switch len(views) {
		case 1:
			h.sess.Send(ToggleVoice)
			h.sess.Send(ToggleDisparity)
		case 2:
			h.sess.Send(Capture)
		case 4:
			h.sess.Send(Stop)
		}
	})}

	require.NoError(t, h.sess.Run(h.ctx))

	require.Len(t, views, 4, "stop ends the loop after the current frame")
	assert.True(t, views[0].VoiceEnabled)
	assert.False(t, views[1].VoiceEnabled)
	assert.False(t, views[1].ShowDisparity)
	assert.False(t, views[1].Capture)
	assert.True(t, views[2].Capture, "capture applies to the next frame")
	assert.False(t, views[3].Capture)
}

func TestRun_FailedFrameIsTransient(t *testing.T) {
	det := everyFrame(obstacle("Chair"))
	det.err = map[uint64]error{2: errors.New("inference crashed")}
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	h := newHarness(t, 3, det, cfg)

	require.NoError(t, h.sess.Run(h.ctx))

	require.Len(t, h.views, 3)
	assert.Error(t, h.views[1].Result.Err)
	assert.Empty(t, h.views[1].Result.Detections)
	assert.Equal(t, int64(1), h.sess.Stats().Failed)
	assert.Len(t, h.rec.Texts(), 1, "cooldown survives the failed frame")
}

func TestRun_ReadFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	cfg.MaxReadFailures = 2

	t.Run("isolated failures are skipped", func(t *testing.T) {
		h := newHarness(t, 4, everyFrame(), cfg)
		h.src.fail = map[int]bool{2: true}

		require.NoError(t, h.sess.Run(h.ctx))
		assert.Len(t, h.views, 3)
		assert.Equal(t, int64(1), h.sess.Stats().ReadFailures)
	})

	t.Run("consecutive failures end the session", func(t *testing.T) {
		h := newHarness(t, 4, everyFrame(), cfg)
		h.src.fail = map[int]bool{2: true, 3: true}

		err := h.sess.Run(h.ctx)
		require.ErrorIs(t, err, ErrTooManyReadFailures)
		assert.Len(t, h.views, 1)
	})
}

func TestRun_ReadErrorAfterCancelIsNotCounted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	cfg.MaxReadFailures = 1

	// the read past the script cancels the run and then errors
	h := newHarness(t, 2, everyFrame(), cfg)

	require.NoError(t, h.sess.Run(h.ctx))
	assert.Len(t, h.views, 2)
	assert.Zero(t, h.sess.Stats().ReadFailures)
}

func TestStatus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSkip = 1
	h := newHarness(t, 2, everyFrame(obstacle("Person")), cfg)

	require.NoError(t, h.sess.Run(h.ctx))
	require.NoError(t, h.sess.Close())

	st := h.sess.Status()
	assert.Equal(t, h.sess.ID(), st.ID)
	assert.NotEmpty(t, st.ID)
	assert.False(t, st.Running)
	assert.Equal(t, uint64(2), st.LastSeq)
	assert.Empty(t, st.LastAlerts, "second frame is inside the cooldown")
	assert.Equal(t, int64(2), st.Stats.Captured)
	assert.True(t, h.src.closed)
}

func TestParseControl(t *testing.T) {
	for _, c := range []Control{Stop, ToggleVoice, Capture, ToggleDisparity} {
		got, err := ParseControl(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseControl("reboot")
	assert.ErrorIs(t, err, ErrUnknownControl)

	got, ok := KeyControl('q')
	assert.True(t, ok)
	assert.Equal(t, Stop, got)
	_, ok = KeyControl('x')
	assert.False(t, ok)
}

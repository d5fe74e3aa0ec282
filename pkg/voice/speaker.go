package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// Sink accepts phrases to announce. Speak must return immediately.
type Sink interface {
	Speak(text string)
}

// Stats counts Speaker outcomes.
type Stats struct {
	Requested int64 `json:"requested"`
	Spoken    int64 `json:"spoken"`
	Failed    int64 `json:"failed"`
}

// Speaker is a fire-and-forget Sink over a TTS provider and a player.
type Speaker struct {
	provider tts.Provider
	player   Player
	timeout  time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	requested atomic.Int64
	spoken    atomic.Int64
	failed    atomic.Int64
}

// DefaultTimeout bounds one synthesize-and-play task.
const DefaultTimeout = 15 * time.Second

// NewSpeaker creates a Speaker. A nil logger uses slog.Default.
func NewSpeaker(provider tts.Provider, player Player, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Speaker{
		provider: provider,
		player:   player,
		timeout:  DefaultTimeout,
		logger:   logger.With("component", "voice.speaker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Speak starts an independent task for text and returns.
func (s *Speaker) Speak(text string) {
	if s.ctx.Err() != nil {
		return
	}
	s.requested.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.say(text)
	}()
}

func (s *Speaker) say(text string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		s.failed.Add(1)
		s.logger.Debug("synthesize failed", "text", text, "error", err)
		return
	}
	if err := s.player.Play(ctx, res); err != nil {
		s.failed.Add(1)
		s.logger.Debug("playback failed", "text", text, "error", err)
		return
	}
	s.spoken.Add(1)
}

// Stats returns a snapshot of the counters.
func (s *Speaker) Stats() Stats {
	return Stats{
		Requested: s.requested.Load(),
		Spoken:    s.spoken.Load(),
		Failed:    s.failed.Load(),
	}
}

// Close cancels in-flight tasks and waits up to grace for them to exit.
// Tasks still running after grace are abandoned.
func (s *Speaker) Close(grace time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Debug("abandoning voice tasks")
	}
	return s.provider.Close()
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Speak implements Sink.
func (Discard) Speak(string) {}

var (
	_ Sink = (*Speaker)(nil)
	_ Sink = Discard{}
)

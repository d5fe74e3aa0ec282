package voice

import (
	"context"
	"sync"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// Recorder is a Sink and Player that remembers what it was given.
// It is used by tests and by headless runs that only log alerts.
type Recorder struct {
	mu     sync.Mutex
	texts  []string
	clips  int
	signal chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{signal: make(chan struct{}, 64)}
}

// Speak implements Sink.
func (r *Recorder) Speak(text string) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	r.notify()
}

// Play implements Player.
func (r *Recorder) Play(_ context.Context, _ *tts.AudioResult) error {
	r.mu.Lock()
	r.clips++
	r.mu.Unlock()
	r.notify()
	return nil
}

func (r *Recorder) notify() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Texts returns every spoken phrase in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// Clips returns how many clips were played.
func (r *Recorder) Clips() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = nil
	r.clips = 0
}

var (
	_ Sink   = (*Recorder)(nil)
	_ Player = (*Recorder)(nil)
)

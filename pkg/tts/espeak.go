package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	providerEspeak = "espeak"
	espeakBinary   = "espeak-ng"
)

// Espeak implements Provider by running espeak-ng locally and capturing
// the WAV it writes to stdout.
type Espeak struct {
	config *Config
	logger *slog.Logger
}

// NewEspeak creates a local espeak-ng provider. The binary is looked up
// lazily; call Health to check it is installed.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Voice = "en"
	cfg.Command = espeakBinary
	cfg.Apply(opts...)

	if cfg.Command == "" {
		cfg.Command = espeakBinary
	}
	if cfg.Voice == "" {
		cfg.Voice = "en"
	}

	return &Espeak{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.espeak"),
	}, nil
}

// Args returns the command line used to speak text.
func (e *Espeak) Args(text string) []string {
	args := []string{"--stdout", "-v", e.config.Voice}
	if e.config.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.config.Rate))
	}
	return append(args, "--", text)
}

// Synthesize runs espeak-ng and returns its WAV output.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	start := time.Now()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.config.Command, e.Args(text)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, WrapError(providerEspeak, err)
	}
	if stdout.Len() == 0 {
		return nil, WrapError(providerEspeak, fmt.Errorf("%s produced no audio", e.config.Command))
	}

	latency := Elapsed(start)
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", stdout.Len(),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     stdout.Bytes(),
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: 22050, Channels: 1},
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health checks that the binary is on PATH.
func (e *Espeak) Health(context.Context) error {
	if _, err := exec.LookPath(e.config.Command); err != nil {
		return WrapError(providerEspeak, err)
	}
	return nil
}

// Close is a no-op.
func (e *Espeak) Close() error {
	return nil
}

var _ Provider = (*Espeak)(nil)

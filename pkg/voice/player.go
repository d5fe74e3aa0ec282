package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// ErrNoPlayer is returned when no playback command is configured.
var ErrNoPlayer = errors.New("voice: no player command")

// Player plays one synthesized clip to completion.
type Player interface {
	Play(ctx context.Context, audio *tts.AudioResult) error
}

// CommandPlayer pipes audio to the stdin of an external program such as
// "aplay -q" or "ffplay -nodisp -autoexit -loglevel quiet -".
type CommandPlayer struct {
	Name string
	Args []string
}

// NewCommandPlayer creates a player from a command line.
func NewCommandPlayer(name string, args ...string) *CommandPlayer {
	return &CommandPlayer{Name: name, Args: args}
}

// PlayerFromArgv builds a CommandPlayer from a config argv.
func PlayerFromArgv(argv []string) (*CommandPlayer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoPlayer
	}
	return NewCommandPlayer(argv[0], argv[1:]...), nil
}

// Available reports whether the command is on PATH.
func (p *CommandPlayer) Available() error {
	if _, err := exec.LookPath(p.Name); err != nil {
		return fmt.Errorf("voice: player %s: %w", p.Name, err)
	}
	return nil
}

// Play writes the audio to the command and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, audio *tts.AudioResult) error {
	if audio == nil || len(audio.Audio) == 0 {
		return nil
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	cmd.Stdin = bytes.NewReader(audio.Audio)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("voice: %s: %w: %s", p.Name, err, msg)
		}
		return fmt.Errorf("voice: %s: %w", p.Name, err)
	}
	return nil
}

var _ Player = (*CommandPlayer)(nil)

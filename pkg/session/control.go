package session

import (
	"errors"
	"fmt"
	"strings"
)

// Control is a user command delivered to the running loop.
type Control int

const (
	Stop Control = iota + 1
	ToggleVoice
	Capture
	ToggleDisparity
)

// ErrUnknownControl is returned by ParseControl.
var ErrUnknownControl = errors.New("session: unknown control")

var controlNames = map[Control]string{
	Stop:            "stop",
	ToggleVoice:     "voice",
	Capture:         "capture",
	ToggleDisparity: "disparity",
}

// String returns the control's wire name.
func (c Control) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("control(%d)", int(c))
}

// ParseControl maps a wire name ("stop", "voice", "capture", "disparity")
// to a Control.
func ParseControl(name string) (Control, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range controlNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// KeyControl maps the window keys q, v, s and d.
func KeyControl(key int) (Control, bool) {
	switch key {
	case 'q', 'Q', 27:
		return Stop, true
	case 'v', 'V':
		return ToggleVoice, true
	case 's', 'S':
		return Capture, true
	case 'd', 'D':
		return ToggleDisparity, true
	}
	return 0, false
}

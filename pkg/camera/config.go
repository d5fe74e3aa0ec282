// Package camera reads frames from one or two capture devices.
//
// The package itself is pure Go: a Grabber yields decoded images and
// Stereo/Mono stamp them into frame values. The OpenCV-backed grabber lives
// in the cv subpackage so the capture logic can be tested without devices.
package camera

import "fmt"

// Config describes the capture devices and requested format.
type Config struct {
	Left      int `json:"left"`  // device index of the left (or only) camera
	Right     int `json:"right"` // device index of the right camera; < 0 for single-camera mode
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"`
}

// Capture limits accepted by Validate.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns a 640x480@30 stereo pair on devices 0 and 1.
func DefaultConfig() Config {
	return Config{
		Left:      0,
		Right:     1,
		Width:     640,
		Height:    480,
		Framerate: 30,
	}
}

// Stereo reports whether a right camera is configured.
func (c Config) Stereo() bool {
	return c.Right >= 0
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Left < 0 {
		errors = append(errors, "left camera index must be >= 0")
	}
	if c.Stereo() && c.Right == c.Left {
		errors = append(errors, fmt.Sprintf("left and right cameras are both device %d", c.Left))
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}

	return errors
}

// Package config loads wayfinder configuration from a YAML file,
// the process environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Environment variables recognised on top of the config file.
const (
	EnvConfigPath  = "WAYFINDER_CONFIG"
	EnvLogLevel    = "WAYFINDER_LOG_LEVEL"
	EnvFocalLength = "WAYFINDER_FOCAL_LENGTH"
	EnvBaseline    = "WAYFINDER_BASELINE"
	EnvWebAddr     = "WAYFINDER_WEB_ADDR"
	EnvMQTTBroker  = "WAYFINDER_MQTT_BROKER"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// Config is the complete wayfinder configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Stereo    StereoConfig    `yaml:"stereo"`
	Detection DetectionConfig `yaml:"detection"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Session   SessionConfig   `yaml:"session"`
	Voice     VoiceConfig     `yaml:"voice"`
	Web       WebConfig       `yaml:"web"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// StereoConfig holds the pre-calibrated camera pair constants and
// block matcher parameters.
type StereoConfig struct {
	FocalLength    float64 `yaml:"focal_length"` // pixels
	Baseline       float64 `yaml:"baseline"`     // distance unit of the output (meters)
	NumDisparities int     `yaml:"num_disparities"`
	BlockSize      int     `yaml:"block_size"`
	Scale          float64 `yaml:"scale"`   // downscale factor applied before matching (0,1]
	Sampler        string  `yaml:"sampler"` // point | median
	MedianWindow   int     `yaml:"median_window"`
	Parallel       bool    `yaml:"parallel"` // run disparity and detection concurrently
}

// DetectionConfig configures the object detector.
type DetectionConfig struct {
	ModelPath           string             `yaml:"model_path"`
	ConfidenceThreshold float64            `yaml:"confidence_threshold"`
	NMSThreshold        float64            `yaml:"nms_threshold"`
	InputSize           int                `yaml:"input_size"`
	Classes             []string           `yaml:"classes"`
	KnownWidths         map[string]float64 `yaml:"known_widths"` // meters, for single-camera distance
}

// AlertsConfig configures the notification throttler.
type AlertsConfig struct {
	ProximityThreshold      float64       `yaml:"proximity_threshold"`
	Cooldown                time.Duration `yaml:"cooldown"`
	AnnounceWithoutDistance bool          `yaml:"announce_without_distance"`
	Language                string        `yaml:"language"` // en | es
}

// SessionConfig configures the live capture loop.
type SessionConfig struct {
	FrameSkip       int    `yaml:"frame_skip"`
	LeftCamera      int    `yaml:"left_camera"`
	RightCamera     int    `yaml:"right_camera"`
	Resolution      string `yaml:"resolution"` // camera preset: vga | 720p | 1080p | low
	VoiceEnabled    bool   `yaml:"voice_enabled"`
	ShowDisparity   bool   `yaml:"show_disparity"`
	ShowWindow      bool   `yaml:"show_window"`
	CaptureDir      string `yaml:"capture_dir"`
	MaxReadFailures int    `yaml:"max_read_failures"` // 0 = never give up
}

// VoiceConfig selects the text-to-speech backend.
type VoiceConfig struct {
	Provider  string   `yaml:"provider"` // espeak | openai | none
	Voice     string   `yaml:"voice"`
	Rate      int      `yaml:"rate"` // words per minute (espeak)
	Player    []string `yaml:"player"`
	OpenAIKey string   `yaml:"-"`
}

// WebConfig configures the optional dashboard.
type WebConfig struct {
	Addr string `yaml:"addr"` // empty disables the dashboard
}

// MQTTConfig configures the optional alert publisher.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // host:port, empty disables publishing
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// DefaultClasses is the obstacle vocabulary the bundled model was trained on.
var DefaultClasses = []string{"Person", "Chair", "Table", "Door", "Stairs", "Obstacle", "Wall"}

// Default returns the reference configuration: a 700px focal length
// camera pair 6cm apart, alerts under 2m with a 2s cooldown.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Stereo: StereoConfig{
			FocalLength:    700,
			Baseline:       0.06,
			NumDisparities: 64,
			BlockSize:      11,
			Scale:          0.5,
			Sampler:        "point",
			MedianWindow:   5,
		},
		Detection: DetectionConfig{
			ModelPath:           "models/best.onnx",
			ConfidenceThreshold: 0.5,
			NMSThreshold:        0.45,
			InputSize:           640,
			Classes:             append([]string(nil), DefaultClasses...),
			KnownWidths: map[string]float64{
				"Person": 0.45,
				"Chair":  0.50,
				"Table":  1.20,
				"Door":   0.90,
			},
		},
		Alerts: AlertsConfig{
			ProximityThreshold: 2.0,
			Cooldown:           2 * time.Second,
			Language:           "en",
		},
		Session: SessionConfig{
			FrameSkip:       5,
			LeftCamera:      0,
			RightCamera:     1,
			Resolution:      camera.PresetVGA,
			VoiceEnabled:    true,
			ShowDisparity:   true,
			ShowWindow:      true,
			CaptureDir:      ".",
			MaxReadFailures: 30,
		},
		Voice: VoiceConfig{
			Provider: "espeak",
			Rate:     150,
			Player:   []string{"aplay", "-q"},
		},
		MQTT: MQTTConfig{
			TopicPrefix: "wayfinder",
		},
	}
}

// LoadDotEnv loads ./.env into the environment if present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the YAML file at path (skipped when empty) over the defaults,
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvFocalLength); ok && v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvFocalLength, perr))
		} else {
			c.Stereo.FocalLength = f
		}
	}
	if v, ok := lookup(EnvBaseline); ok && v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvBaseline, perr))
		} else {
			c.Stereo.Baseline = f
		}
	}
	if v, ok := lookup(EnvWebAddr); ok {
		c.Web.Addr = v
	}
	if v, ok := lookup(EnvMQTTBroker); ok {
		c.MQTT.Broker = v
	}
	if v, ok := lookup(EnvOpenAIKey); ok {
		c.Voice.OpenAIKey = v
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	add := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}

	if !positive(c.Stereo.FocalLength) {
		add("stereo.focal_length must be > 0, got %v", c.Stereo.FocalLength)
	}
	if !positive(c.Stereo.Baseline) {
		add("stereo.baseline must be > 0, got %v", c.Stereo.Baseline)
	}
	if c.Stereo.NumDisparities <= 0 {
		add("stereo.num_disparities must be > 0, got %d", c.Stereo.NumDisparities)
	}
	if c.Stereo.BlockSize < 3 || c.Stereo.BlockSize%2 == 0 {
		add("stereo.block_size must be odd and >= 3, got %d", c.Stereo.BlockSize)
	}
	if !positive(c.Stereo.Scale) || c.Stereo.Scale > 1 {
		add("stereo.scale must be in (0, 1], got %v", c.Stereo.Scale)
	}
	switch c.Stereo.Sampler {
	case "point":
	case "median":
		if c.Stereo.MedianWindow < 1 || c.Stereo.MedianWindow%2 == 0 {
			add("stereo.median_window must be odd and >= 1, got %d", c.Stereo.MedianWindow)
		}
	default:
		add("stereo.sampler must be point or median, got %q", c.Stereo.Sampler)
	}

	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		add("detection.confidence_threshold must be in [0, 1], got %v", c.Detection.ConfidenceThreshold)
	}
	if c.Detection.NMSThreshold <= 0 || c.Detection.NMSThreshold > 1 {
		add("detection.nms_threshold must be in (0, 1], got %v", c.Detection.NMSThreshold)
	}
	if c.Detection.InputSize <= 0 {
		add("detection.input_size must be > 0, got %d", c.Detection.InputSize)
	}
	if len(c.Detection.Classes) == 0 {
		add("detection.classes must not be empty")
	}
	seen := make(map[string]bool, len(c.Detection.Classes))
	for _, name := range c.Detection.Classes {
		if name == "" {
			add("detection.classes contains an empty name")
			continue
		}
		if seen[name] {
			add("detection.classes contains %q twice", name)
		}
		seen[name] = true
	}
	for name, w := range c.Detection.KnownWidths {
		if !positive(w) {
			add("detection.known_widths[%s] must be > 0, got %v", name, w)
		}
	}

	if !positive(c.Alerts.ProximityThreshold) {
		add("alerts.proximity_threshold must be > 0, got %v", c.Alerts.ProximityThreshold)
	}
	if c.Alerts.Cooldown < 0 {
		add("alerts.cooldown must be >= 0, got %v", c.Alerts.Cooldown)
	}
	switch c.Alerts.Language {
	case "en", "es":
	default:
		add("alerts.language must be en or es, got %q", c.Alerts.Language)
	}

	if c.Session.FrameSkip < 1 {
		add("session.frame_skip must be >= 1, got %d", c.Session.FrameSkip)
	}
	if camera.GetPreset(c.Session.Resolution) == nil {
		add("session.resolution must be one of %v, got %q", camera.PresetNames(), c.Session.Resolution)
	}
	if c.Session.MaxReadFailures < 0 {
		add("session.max_read_failures must be >= 0, got %d", c.Session.MaxReadFailures)
	}

	switch c.Voice.Provider {
	case "espeak", "openai", "none":
	default:
		add("voice.provider must be espeak, openai or none, got %q", c.Voice.Provider)
	}

	if c.MQTT.QoS > 2 {
		add("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Camera returns the capture config for the session. Single-camera mode
// ignores the right device.
func (c *Config) Camera(stereo bool) camera.Config {
	cam := camera.DefaultConfig()
	if p := camera.GetPreset(c.Session.Resolution); p != nil {
		cam = *p
	}
	cam.Left = c.Session.LeftCamera
	cam.Right = c.Session.RightCamera
	if !stereo {
		cam.Right = -1
	}
	return cam
}

// Errors splits a validation error into its individual problems.
func Errors(err error) []error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range u.Unwrap() {
			if e != ErrInvalid {
				return multierr.Errors(e)
			}
		}
	}
	return multierr.Errors(err)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

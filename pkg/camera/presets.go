package camera

import "sort"

// Preset names for common capture formats.
const (
	PresetVGA   = "vga"
	Preset720p  = "720p"
	Preset1080p = "1080p"
	PresetLow   = "low"
)

// Presets returns the resolution presets. Stereo matching cost grows with
// width times disparity range, so VGA is the default.
func Presets() map[string]Config {
	return map[string]Config{
		PresetVGA:   DefaultConfig(),
		Preset720p:  HD720Config(),
		Preset1080p: HD1080Config(),
		PresetLow:   LowPowerConfig(),
	}
}

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, 4)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p at 30fps.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// HD1080Config returns 1080p at 15fps.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.Framerate = 15
	return cfg
}

// LowPowerConfig returns 320x240 at 15fps for small boards.
func LowPowerConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 15
	return cfg
}

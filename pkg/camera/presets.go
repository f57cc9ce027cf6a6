package camera

// Preset names accepted by Manager.UpdateConfig.
const (
	PresetDefault = "default"
	Preset480p    = "480p"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetNight   = "night"
)

// presets lists every preset in display order. Each one starts from
// DefaultConfig, so the 1280x720 minimum holds unless lifted explicitly.
var presets = []struct {
	name  string
	apply func(*Config)
}{
	{PresetDefault, func(*Config) {}},
	// Webcams that cannot do HD. Frames are scaled up to the canvas.
	{Preset480p, func(c *Config) {
		c.Width, c.Height = 640, 480
		c.MinWidth, c.MinHeight = 0, 0
	}},
	{Preset720p, func(*Config) {}},
	// Landmarks are no more precise, but the composited frame is sharper.
	{Preset1080p, func(c *Config) {
		c.Width, c.Height = 1920, 1080
	}},
	// Lower framerate so the driver can lengthen exposure.
	{PresetNight, func(c *Config) {
		c.Framerate = 15
		c.Brightness = 0.6
	}},
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.name
	}
	return names
}

// GetPreset returns a fresh config for the named preset, or nil if unknown.
func GetPreset(name string) *Config {
	for _, p := range presets {
		if p.name == name {
			cfg := DefaultConfig()
			p.apply(&cfg)
			return &cfg
		}
	}
	return nil
}

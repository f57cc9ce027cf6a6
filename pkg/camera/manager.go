package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// customPreset names a configuration that no longer matches a preset.
const customPreset = "custom"

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	preset string
	mu     sync.RWMutex

	// Callback when config changes (for applying to camera)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
		preset: PresetDefault,
	}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and applies cfg. The stored config only changes when
// the callback accepts it.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.RLock()
	callback := m.OnConfigChange
	m.mu.RUnlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// setters apply one named field from a JSON update. They report false when
// the value has the wrong type.
var setters = map[string]func(cfg *Config, v interface{}) bool{
	"width":      intSetter(func(c *Config, n int) { c.Width = n }),
	"height":     intSetter(func(c *Config, n int) { c.Height = n }),
	"min_width":  intSetter(func(c *Config, n int) { c.MinWidth = n }),
	"min_height": intSetter(func(c *Config, n int) { c.MinHeight = n }),
	"framerate":  intSetter(func(c *Config, n int) { c.Framerate = n }),
	"quality":    intSetter(func(c *Config, n int) { c.Quality = n }),
	"brightness": floatSetter(func(c *Config, f float64) { c.Brightness = f }),
	"exposure":   floatSetter(func(c *Config, f float64) { c.Exposure = f }),
	"auto_focus": func(c *Config, v interface{}) bool {
		b, ok := v.(bool)
		if ok {
			c.AutoFocus = b
		}
		return ok
	},
}

func intSetter(set func(*Config, int)) func(*Config, interface{}) bool {
	return func(c *Config, v interface{}) bool {
		n, ok := toInt(v)
		if ok {
			set(c, n)
		}
		return ok
	}
}

func floatSetter(set func(*Config, float64)) func(*Config, interface{}) bool {
	return func(c *Config, v interface{}) bool {
		f, ok := toFloat(v)
		if ok {
			set(c, f)
		}
		return ok
	}
}

// UpdateConfig applies a partial update: an optional "preset" first, then
// individual fields on top. Unknown fields and mistyped values are rejected
// before anything is applied. The device cannot be changed once chosen.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()
	presetName := ""

	if v, ok := params["preset"]; ok {
		name, isString := v.(string)
		if !isString {
			return fmt.Errorf("invalid value for preset: %v", v)
		}
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		preset.Device = cfg.Device
		cfg = *preset
		presetName = name
	}

	for key, value := range params {
		if key == "preset" {
			continue
		}
		set, ok := setters[key]
		if !ok {
			return fmt.Errorf("unknown camera setting: %s", key)
		}
		if !set(&cfg, value) {
			return fmt.Errorf("invalid value for %s: %v", key, value)
		}
		presetName = customPreset
	}

	if err := m.SetConfig(cfg); err != nil {
		return err
	}
	if presetName != "" {
		m.mu.Lock()
		m.preset = presetName
		m.mu.Unlock()
	}
	return nil
}

// Preset returns the name of the last applied preset, or "custom" once
// individual fields were changed.
func (m *Manager) Preset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preset
}

// GetConfigJSON returns the current config as a map for JSON serialization,
// with the active preset and the available preset names.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	result["preset"] = m.Preset()
	result["presets"] = PresetNames()
	return result
}

// Helper functions for type conversion

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

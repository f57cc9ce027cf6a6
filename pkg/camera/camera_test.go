package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// fakeDevice produces blank frames of a fixed size.
type fakeDevice struct {
	mu     sync.Mutex
	w, h   int
	props  map[gocv.VideoCaptureProperties]float64
	reads  int
	fail   bool
	closed bool
}

func newFakeDevice(w, h int) *fakeDevice {
	return &fakeDevice{w: w, h: h, props: make(map[gocv.VideoCaptureProperties]float64)}
}

func (d *fakeDevice) Read(m *gocv.Mat) bool {
	d.mu.Lock()
	d.reads++
	fail := d.fail
	d.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	if fail {
		return false
	}
	img := gocv.NewMatWithSize(d.h, d.w, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.CopyTo(m)
	return true
}

func (d *fakeDevice) Set(prop gocv.VideoCaptureProperties, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props[prop] = value
}

// Get reports the native size regardless of what was requested.
func (d *fakeDevice) Get(prop gocv.VideoCaptureProperties) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(d.w)
	case gocv.VideoCaptureFrameHeight:
		return float64(d.h)
	}
	return d.props[prop]
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func openerFor(dev *fakeDevice) Opener {
	return func(device string) (Device, error) { return dev, nil }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.MinWidth != 1280 || cfg.MinHeight != 720 {
		t.Errorf("Expected 1280x720 minimum, got %dx%d", cfg.MinWidth, cfg.MinHeight)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("Default config invalid: %v", errs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   int
	}{
		{"valid", func(c *Config) {}, 0},
		{"no device", func(c *Config) { c.Device = "" }, 1},
		{"tiny width", func(c *Config) { c.Width = 100; c.MinWidth = 0 }, 1},
		{"minimum above request", func(c *Config) { c.MinHeight = 1080 }, 1},
		{"bad framerate", func(c *Config) { c.Framerate = 0 }, 1},
		{"bad quality", func(c *Config) { c.Quality = 101 }, 1},
		{"negative exposure", func(c *Config) { c.Exposure = -1 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if errs := cfg.Validate(); len(errs) != tt.want {
				t.Errorf("Expected %d errors, got %v", tt.want, errs)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Errorf("Preset %s missing", name)
			continue
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("Preset %s invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("Expected nil for unknown preset")
	}

	sd := GetPreset(Preset480p)
	if sd.Width != 640 || sd.MinWidth != 0 {
		t.Errorf("Unexpected 480p preset %+v", sd)
	}
	if hd := GetPreset(Preset720p); hd.MinWidth != 1280 || hd.MinHeight != 720 {
		t.Errorf("Expected 720p to keep the HD minimum, got %dx%d", hd.MinWidth, hd.MinHeight)
	}
	sd.Width = 320
	if GetPreset(Preset480p).Width != 640 {
		t.Error("Preset shared between callers")
	}
}

func TestManagerUpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": "480p", "quality": float64(70)}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	cfg := m.GetConfig()
	if cfg.Width != 640 || cfg.Quality != 70 {
		t.Errorf("Expected 480p at quality 70, got %dx%d q%d", cfg.Width, cfg.Height, cfg.Quality)
	}
	if len(applied) != 1 {
		t.Errorf("Expected callback once, got %d", len(applied))
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": "8k"}); err == nil {
		t.Error("Expected error for unknown preset")
	}
	if err := m.UpdateConfig(map[string]interface{}{"framerate": 0}); err == nil {
		t.Error("Expected validation error")
	}

	m.OnConfigChange = func(cfg Config) error { return errors.New("device busy") }
	if err := m.UpdateConfig(map[string]interface{}{"width": 800}); err == nil {
		t.Error("Expected callback error")
	}
	if m.GetConfig().Width != 640 {
		t.Error("Config changed despite rejected apply")
	}

	if got := m.GetConfigJSON()["width"]; got != float64(640) {
		t.Errorf("Expected width 640 in JSON map, got %v", got)
	}
}

func TestManagerPresetTracking(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.OnConfigChange = func(cfg Config) error { return nil }

	if got := m.Preset(); got != "default" {
		t.Errorf("Expected default preset, got %q", got)
	}
	if err := m.UpdateConfig(map[string]interface{}{"preset": "720p"}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if got := m.Preset(); got != "720p" {
		t.Errorf("Expected 720p, got %q", got)
	}
	if err := m.UpdateConfig(map[string]interface{}{"brightness": 0.6}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if got := m.Preset(); got != "custom" {
		t.Errorf("Expected custom after field change, got %q", got)
	}

	data := m.GetConfigJSON()
	if data["preset"] != "custom" {
		t.Errorf("Expected preset in JSON map, got %v", data["preset"])
	}
	if names, ok := data["presets"].([]string); !ok || len(names) == 0 {
		t.Errorf("Expected preset names, got %v", data["presets"])
	}
}

func TestManagerRejectsBadUpdates(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"unknown field", map[string]interface{}{"zoom": 2}},
		{"device change", map[string]interface{}{"device": "/dev/video1"}},
		{"wrong type", map[string]interface{}{"width": "wide"}},
		{"non-string preset", map[string]interface{}{"preset": 720}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(DefaultConfig())
			calls := 0
			m.OnConfigChange = func(cfg Config) error {
				calls++
				return nil
			}
			if err := m.UpdateConfig(tt.params); err == nil {
				t.Error("Expected error")
			}
			if calls != 0 {
				t.Errorf("Expected nothing applied, got %d calls", calls)
			}
			if m.Preset() != "default" {
				t.Errorf("Preset changed to %q", m.Preset())
			}
		})
	}
}

func TestSourceOpenFailure(t *testing.T) {
	s := NewSource(DefaultConfig(), WithOpener(func(device string) (Device, error) {
		return nil, errors.New("permission denied")
	}))

	err := s.Open(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if err := s.Open(context.Background()); !errors.Is(err, ErrAlreadyOpened) {
		t.Errorf("Expected one-shot open, got %v", err)
	}
	if s.Width() != 0 {
		t.Errorf("Expected width 0, got %d", s.Width())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on unopened source failed: %v", err)
	}
}

func TestSourceConstraintUnsatisfied(t *testing.T) {
	dev := newFakeDevice(640, 480)
	s := NewSource(DefaultConfig(), WithOpener(openerFor(dev)))

	err := s.Open(context.Background())
	if !errors.Is(err, ErrConstraintUnsatisfied) {
		t.Fatalf("Expected ErrConstraintUnsatisfied, got %v", err)
	}
	if !dev.closed {
		t.Error("Expected device released")
	}
}

func TestSourceCapture(t *testing.T) {
	dev := newFakeDevice(1280, 720)
	s := NewSource(DefaultConfig(), WithOpener(openerFor(dev)))

	if _, ok := s.Latest(); ok {
		t.Error("Expected no frame before open")
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if dev.props[gocv.VideoCaptureFrameWidth] != 1280 || dev.props[gocv.VideoCaptureFPS] != 30 {
		t.Errorf("Requested properties not applied: %v", dev.props)
	}

	waitFor(t, func() bool { return s.Width() > 0 })

	frame, ok := s.Latest()
	if !ok {
		t.Fatal("Expected a frame")
	}
	if frame.Width != 1280 || frame.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", frame.Width, frame.Height)
	}
	if len(frame.JPEG) < 2 || frame.JPEG[0] != 0xFF || frame.JPEG[1] != 0xD8 {
		t.Error("Expected JPEG data")
	}
	if frame.Seq == 0 {
		t.Error("Expected sequence number")
	}

	waitFor(t, func() bool {
		next, _ := s.Latest()
		return next.Seq > frame.Seq
	})
}

func TestSourceReportsLostDevice(t *testing.T) {
	dev := newFakeDevice(1280, 720)
	dev.fail = true
	s := NewSource(DefaultConfig(), WithOpener(openerFor(dev)))

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	select {
	case err := <-s.Errors():
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected capture error")
	}
}

func TestSourceClose(t *testing.T) {
	dev := newFakeDevice(1280, 720)
	s := NewSource(DefaultConfig(), WithOpener(openerFor(dev)))

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !dev.closed {
		t.Error("Expected device closed")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

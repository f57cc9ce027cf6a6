package config

import "testing"

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got %v", err)
	}
	if cfg.CameraWidth != 1280 || cfg.CameraHeight != 720 {
		t.Errorf("Expected 1280x720 camera, got %dx%d", cfg.CameraWidth, cfg.CameraHeight)
	}
	if cfg.NumFaces != 1 {
		t.Errorf("Expected NumFaces=1, got %d", cfg.NumFaces)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"bad backend", func(c *Config) { c.Backend = "grpc" }, true},
		{"remote without url", func(c *Config) { c.Backend = BackendRemote }, true},
		{"remote with url", func(c *Config) {
			c.Backend = BackendRemote
			c.RemoteURL = "ws://localhost:9000/landmarker"
		}, false},
		{"empty worker command", func(c *Config) { c.WorkerCommand = "  " }, true},
		{"bad delegate", func(c *Config) { c.Delegate = "TPU" }, true},
		{"zero faces", func(c *Config) { c.NumFaces = 0 }, true},
		{"no model source", func(c *Config) { c.ModelURL = ""; c.ModelPath = "" }, true},
		{"local model only", func(c *Config) { c.ModelURL = ""; c.ModelPath = "face_landmarker.task" }, false},
		{"bad refresh rate", func(c *Config) { c.RefreshRate = 0 }, true},
		{"non numeric port", func(c *Config) { c.Port = "http" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CAMERA_DEVICE", "/dev/video2")
	t.Setenv("LANDMARKER_DELEGATE", "cpu")
	t.Setenv("LANDMARKER_NUM_FACES", "2")
	t.Setenv("REFRESH_RATE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port: got %s, want 9999", cfg.Port)
	}
	if cfg.CameraDevice != "/dev/video2" {
		t.Errorf("CameraDevice: got %s", cfg.CameraDevice)
	}
	if cfg.Delegate != "CPU" {
		t.Errorf("Delegate should be upper-cased, got %s", cfg.Delegate)
	}
	if cfg.NumFaces != 2 {
		t.Errorf("NumFaces: got %d, want 2", cfg.NumFaces)
	}
	if cfg.RefreshRate != DefaultRefreshRate {
		t.Errorf("Invalid REFRESH_RATE should fall back to default, got %d", cfg.RefreshRate)
	}
}

func TestWorkerArgv(t *testing.T) {
	cfg := Default()
	cfg.WorkerCommand = "python3 -u runtime/face_landmarker.py --verbose"
	prog, args := cfg.WorkerArgv()
	if prog != "python3" {
		t.Errorf("program: got %q", prog)
	}
	if len(args) != 3 || args[2] != "--verbose" {
		t.Errorf("args: got %v", args)
	}
}

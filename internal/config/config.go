// Package config provides configuration helpers for go-facemesh commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultPort        = "8090"
	DefaultModelURL    = "https://storage.googleapis.com/mediapipe-models/face_landmarker/face_landmarker/float16/1/face_landmarker.task"
	DefaultCacheDir    = "models"
	DefaultWorkerCmd   = "python3 -u runtime/face_landmarker.py"
	DefaultRefreshRate = 60
)

// Backend names for the landmarker runtime.
const (
	BackendWorker = "worker"
	BackendRemote = "remote"
)

// Config holds all configuration for the facemesh service.
// Flag parsing is done in cmd/facemesh; this struct is data only.
type Config struct {
	// Server
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string
	Debug    bool

	// Camera
	CameraDevice    string `validate:"required"`
	CameraWidth     int    `validate:"min=1"`
	CameraHeight    int    `validate:"min=1"`
	CameraFramerate int    `validate:"min=1,max=120"`

	// Landmarker runtime
	Backend       string `validate:"oneof=worker remote"`
	WorkerCommand string
	RemoteURL     string `validate:"omitempty,url"`
	ModelURL      string `validate:"omitempty,url"`
	ModelPath     string
	ModelCacheDir string
	Delegate      string `validate:"oneof=GPU CPU"`
	NumFaces      int    `validate:"min=1,max=4"`
	TopologyFile  string

	// Render loop
	RefreshRate int `validate:"min=1,max=240"`
}

// Default returns sensible defaults matching the browser component this
// service replaces: 1280x720 camera, GPU delegate, one face.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		LogLevel:        "info",
		CameraDevice:    "0",
		CameraWidth:     1280,
		CameraHeight:    720,
		CameraFramerate: 30,
		Backend:         BackendWorker,
		WorkerCommand:   DefaultWorkerCmd,
		ModelURL:        DefaultModelURL,
		ModelCacheDir:   DefaultCacheDir,
		Delegate:        "GPU",
		NumFaces:        1,
		RefreshRate:     DefaultRefreshRate,
	}
}

// Load reads configuration from the environment on top of Default.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.Debug = getEnvAsBool("DEBUG", cfg.Debug)

	cfg.CameraDevice = getEnv("CAMERA_DEVICE", cfg.CameraDevice)
	cfg.CameraWidth = getEnvAsInt("CAMERA_WIDTH", cfg.CameraWidth)
	cfg.CameraHeight = getEnvAsInt("CAMERA_HEIGHT", cfg.CameraHeight)
	cfg.CameraFramerate = getEnvAsInt("CAMERA_FPS", cfg.CameraFramerate)

	cfg.Backend = getEnv("LANDMARKER_BACKEND", cfg.Backend)
	cfg.WorkerCommand = getEnv("LANDMARKER_CMD", cfg.WorkerCommand)
	cfg.RemoteURL = getEnv("LANDMARKER_URL", cfg.RemoteURL)
	cfg.ModelURL = getEnv("MODEL_URL", cfg.ModelURL)
	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)
	cfg.ModelCacheDir = getEnv("MODEL_CACHE_DIR", cfg.ModelCacheDir)
	cfg.Delegate = strings.ToUpper(getEnv("LANDMARKER_DELEGATE", cfg.Delegate))
	cfg.NumFaces = getEnvAsInt("LANDMARKER_NUM_FACES", cfg.NumFaces)
	cfg.TopologyFile = getEnv("TOPOLOGY_FILE", cfg.TopologyFile)

	cfg.RefreshRate = getEnvAsInt("REFRESH_RATE", cfg.RefreshRate)

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Backend {
	case BackendRemote:
		if c.RemoteURL == "" {
			return errors.New("invalid config: LANDMARKER_URL is required for the remote backend")
		}
	case BackendWorker:
		if strings.TrimSpace(c.WorkerCommand) == "" {
			return errors.New("invalid config: LANDMARKER_CMD is required for the worker backend")
		}
	}
	if c.ModelPath == "" && c.ModelURL == "" {
		return errors.New("invalid config: one of MODEL_PATH or MODEL_URL is required")
	}
	return nil
}

// WorkerArgv splits WorkerCommand into a program and its arguments.
func (c Config) WorkerArgv() (string, []string) {
	fields := strings.Fields(c.WorkerCommand)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

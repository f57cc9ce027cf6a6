package landmarker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// Delegate selects where the runtime executes the model.
type Delegate string

const (
	DelegateGPU Delegate = "GPU"
	DelegateCPU Delegate = "CPU"
)

// RunningMode selects how the runtime treats successive frames.
type RunningMode string

// RunningModeVideo enables cross-frame tracking and requires increasing timestamps.
const RunningModeVideo RunningMode = "VIDEO"

// Config holds detector configuration sent to the runtime at construction.
type Config struct {
	ModelAssetPath        string      `json:"modelAssetPath" validate:"required"`
	Delegate              Delegate    `json:"delegate" validate:"oneof=GPU CPU"`
	NumFaces              int         `json:"numFaces" validate:"min=1,max=4"`
	RunningMode           RunningMode `json:"runningMode" validate:"eq=VIDEO"`
	OutputFaceBlendshapes bool        `json:"outputFaceBlendshapes"`

	// Timeouts
	StartTimeout time.Duration `json:"-" validate:"gt=0"`
	FrameTimeout time.Duration `json:"-" validate:"gt=0"`

	// Observability
	Logger *slog.Logger `json:"-"`
}

// Option is a functional option for configuring a detector.
type Option func(*Config)

// WithModelAssetPath sets the model file the runtime loads.
func WithModelAssetPath(path string) Option {
	return func(c *Config) { c.ModelAssetPath = path }
}

// WithDelegate sets the acceleration preference.
func WithDelegate(d Delegate) Option {
	return func(c *Config) { c.Delegate = d }
}

// WithNumFaces sets the maximum number of faces detected per frame.
func WithNumFaces(n int) Option {
	return func(c *Config) { c.NumFaces = n }
}

// WithBlendshapes toggles blend-shape output.
func WithBlendshapes(enabled bool) Option {
	return func(c *Config) { c.OutputFaceBlendshapes = enabled }
}

// WithStartTimeout bounds runtime construction.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Config) { c.StartTimeout = d }
}

// WithFrameTimeout bounds a single detection call.
func WithFrameTimeout(d time.Duration) Option {
	return func(c *Config) { c.FrameTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the settings of the live overlay: GPU, one face,
// video mode, blend shapes on.
func DefaultConfig() *Config {
	return &Config{
		Delegate:              DelegateGPU,
		NumFaces:              1,
		RunningMode:           RunningModeVideo,
		OutputFaceBlendshapes: true,
		StartTimeout:          60 * time.Second,
		FrameTimeout:          2 * time.Second,
		Logger:                slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

var validate = validator.New()

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

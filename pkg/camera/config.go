// Package camera captures webcam frames for the overlay.
// Settings follow the same pattern as the landmarker options: a plain struct
// with defaults, presets, and range validation.
package camera

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is a V4L2 index ("0") or a capture URL/file path.
	Device string `json:"device"`

	// === Resolution ===
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	MinWidth  int `json:"min_width"` // Reject devices delivering less
	MinHeight int `json:"min_height"`
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// === Image Controls ===
	// Brightness is passed to the driver as is. Set to 0 to leave the device default.
	Brightness float64 `json:"brightness"`

	// Exposure is the driver's exposure value. Set to 0 for auto exposure.
	Exposure float64 `json:"exposure"`

	// AutoFocus enables continuous autofocus where the device supports it.
	AutoFocus bool `json:"auto_focus"`
}

// Device limits accepted by Validate.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the overlay's capture settings: 1280x720 with the
// same values as the minimum, on the first video device.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     1280,
		Height:    720,
		MinWidth:  1280,
		MinHeight: 720,
		Framerate: 30,
		Quality:   85,
		AutoFocus: true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}

	// Resolution
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.MinWidth < 0 || c.MinWidth > c.Width {
		errors = append(errors, "min_width must be between 0 and width")
	}
	if c.MinHeight < 0 || c.MinHeight > c.Height {
		errors = append(errors, "min_height must be between 0 and height")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	if c.Exposure < 0 {
		errors = append(errors, "exposure must be 0 (auto) or positive")
	}

	return errors
}

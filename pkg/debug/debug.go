// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-facemesh/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame logs are shown (inference latency, draw counts).
// These fire at display refresh rate, so they are off even in debug mode unless asked for.
var Frames bool

// Log emits a debug record only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog emits a debug record only if per-frame logging is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}

package render

// State is the render loop lifecycle.
type State int32

const (
	// Uninitialized: the detector is being constructed.
	Uninitialized State = iota
	// WaitingForFrame: the detector is ready, the video has no dimensions yet.
	WaitingForFrame
	// Active: frames are being analyzed and drawn every refresh.
	Active
	// Failed: the detector or the video source could not be acquired.
	Failed
	// Stopped: the loop was cancelled.
	Stopped
)

var stateNames = [...]string{
	Uninitialized:   "uninitialized",
	WaitingForFrame: "waiting_for_frame",
	Active:          "active",
	Failed:          "failed",
	Stopped:         "stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state name for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the loop has ended.
func (s State) Terminal() bool {
	return s == Failed || s == Stopped
}

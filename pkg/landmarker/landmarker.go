// Package landmarker runs per-frame face landmark detection through an
// external model runtime.
//
// The model itself never runs in this process. A Landmarker backend forwards
// each frame to a runtime that hosts the pre-trained face landmarker (a child
// process or a websocket server) and decodes the landmarks and blend-shape
// scores it returns. A Session owns one backend for its whole lifetime.
//
// Example usage:
//
//	sess, err := landmarker.NewSession(ctx, landmarker.NewWorkerFactory("python3", "runtime/face_landmarker.py"),
//	    landmarker.WithModelAssetPath("models/face_landmarker.task"),
//	    landmarker.WithDelegate(landmarker.DelegateGPU),
//	)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	res, err := sess.Detect(ctx, frame, time.Since(start).Milliseconds())
package landmarker

import (
	"context"

	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Frame is one encoded video image. It is owned by the caller for the
// duration of a single Detect call.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
	Seq    uint64
}

// Point is a landmark in normalized image coordinates. Z is relative depth.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is the ordered landmarks of one face.
type LandmarkSet []Point

// Category is one named blend-shape coefficient.
type Category struct {
	Index        int     `json:"index"`
	Score        float64 `json:"score"`
	CategoryName string  `json:"categoryName"`
	DisplayName  string  `json:"displayName"`
}

// BlendShapeSet is the ordered blend-shape categories of one face.
type BlendShapeSet struct {
	Categories []Category `json:"categories"`
}

// Result is the detector output for one frame.
type Result struct {
	FaceLandmarks   []LandmarkSet   `json:"faceLandmarks"`
	FaceBlendshapes []BlendShapeSet `json:"faceBlendshapes"`
}

// Faces returns the number of landmark sets.
func (r *Result) Faces() int {
	if r == nil {
		return 0
	}
	return len(r.FaceLandmarks)
}

// Landmarker is a constructed detector bound to a model runtime.
type Landmarker interface {
	// DetectForVideo analyzes one frame. timestampMs must increase between calls.
	DetectForVideo(ctx context.Context, frame Frame, timestampMs int64) (*Result, error)

	// Topology returns connector groups reported by the runtime, or nil.
	Topology() *topology.Set

	// Close releases the runtime.
	Close() error
}

// Factory constructs a Landmarker from validated options.
type Factory func(ctx context.Context, cfg *Config) (Landmarker, error)

package overlay

import (
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Canvas is a 2D drawing surface in pixel coordinates.
type Canvas interface {
	Width() int
	Height() int

	// Save pushes the drawing state; Restore pops it.
	Save()
	Restore()

	// Clear erases the whole surface to transparent.
	Clear()

	// Line strokes a segment from (x0, y0) to (x1, y1).
	Line(x0, y0, x1, y1 float64, style Style)
}

// DrawConnectors strokes every connection of conns between the landmarks it
// references. Connections that index past the end of landmarks are skipped.
func DrawConnectors(c Canvas, landmarks landmarker.LandmarkSet, conns []topology.Connection, style Style) {
	if style.LineWidth <= 0 {
		style.LineWidth = DefaultLineWidth
	}

	c.Save()
	defer c.Restore()

	w, h := float64(c.Width()), float64(c.Height())
	for _, conn := range conns {
		if conn.Start < 0 || conn.End < 0 || conn.Start >= len(landmarks) || conn.End >= len(landmarks) {
			continue
		}
		from, to := landmarks[conn.Start], landmarks[conn.End]
		c.Line(from.X*w, from.Y*h, to.X*w, to.Y*h, style)
	}
}

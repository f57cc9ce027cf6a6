// Package canvas implements the overlay drawing surface on OpenCV matrices
// and composites it onto camera frames.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/teslashibe/go-facemesh/pkg/overlay"
	"gocv.io/x/gocv"
)

// Overlay surface size.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrEmptyFrame is returned when a frame does not decode to an image.
var ErrEmptyFrame = errors.New("canvas: empty frame")

// MatCanvas draws onto a BGR matrix and records covered pixels in a mask,
// so that only drawn strokes replace camera pixels when compositing.
// Stroke alpha is not blended.
type MatCanvas struct {
	mu      sync.Mutex
	w, h    int
	color   gocv.Mat
	mask    gocv.Mat
	depth   int
	quality int
	lines   int
}

// New creates a transparent canvas of w x h pixels.
func New(w, h int) *MatCanvas {
	c := &MatCanvas{
		w:       w,
		h:       h,
		color:   gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3),
		mask:    gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1),
		quality: 85,
	}
	c.Clear()
	return c
}

// SetQuality sets the JPEG quality used by Composite.
func (c *MatCanvas) SetQuality(q int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q >= 1 && q <= 100 {
		c.quality = q
	}
}

// Width returns the canvas width in pixels.
func (c *MatCanvas) Width() int { return c.w }

// Height returns the canvas height in pixels.
func (c *MatCanvas) Height() int { return c.h }

// Save pushes the drawing state. Lines carry their own style, so only the
// nesting depth is tracked.
func (c *MatCanvas) Save() {
	c.mu.Lock()
	c.depth++
	c.mu.Unlock()
}

// Restore pops the drawing state.
func (c *MatCanvas) Restore() {
	c.mu.Lock()
	if c.depth > 0 {
		c.depth--
	}
	c.mu.Unlock()
}

// Depth returns the current Save nesting.
func (c *MatCanvas) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// Clear erases all strokes.
func (c *MatCanvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color.SetTo(gocv.NewScalar(0, 0, 0, 0))
	c.mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	c.lines = 0
}

// Line strokes a segment in the style's color.
func (c *MatCanvas) Line(x0, y0, x1, y1 float64, style overlay.Style) {
	thickness := int(math.Round(style.LineWidth))
	if thickness < 1 {
		thickness = 1
	}
	p0 := image.Pt(int(math.Round(x0)), int(math.Round(y0)))
	p1 := image.Pt(int(math.Round(x1)), int(math.Round(y1)))
	col := color.RGBA{R: style.Color.R, G: style.Color.G, B: style.Color.B, A: 0}

	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Line(&c.color, p0, p1, col, thickness)
	gocv.Line(&c.mask, p0, p1, color.RGBA{R: 255, G: 255, B: 255}, thickness)
	c.lines++
}

// Lines returns the number of strokes since the last Clear.
func (c *MatCanvas) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

// Composite decodes a JPEG camera frame, scales it to the canvas size, lays
// the strokes over it and returns the result as JPEG.
func (c *MatCanvas) Composite(frameJPEG []byte) ([]byte, error) {
	img, err := gocv.IMDecode(frameJPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	out := img
	if img.Cols() != c.w || img.Rows() != c.h {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(img, &scaled, image.Pt(c.w, c.h), 0, 0, gocv.InterpolationLinear)
		out = scaled
	}

	c.mu.Lock()
	c.color.CopyToWithMask(&out, c.mask)
	quality := c.quality
	c.mu.Unlock()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	result := make([]byte, len(buf.GetBytes()))
	copy(result, buf.GetBytes())
	return result, nil
}

// Close releases the matrices.
func (c *MatCanvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color.Close()
	c.mask.Close()
	return nil
}

// Verify MatCanvas implements overlay.Canvas at compile time.
var _ overlay.Canvas = (*MatCanvas)(nil)

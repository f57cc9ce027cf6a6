package canvas

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-facemesh/pkg/overlay"
	"gocv.io/x/gocv"
)

func blankJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	defer img.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		t.Fatalf("IMEncode failed: %v", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

func TestMatCanvasDrawing(t *testing.T) {
	c := New(DefaultWidth, DefaultHeight)
	defer c.Close()

	if c.Width() != 1280 || c.Height() != 720 {
		t.Fatalf("Expected 1280x720, got %dx%d", c.Width(), c.Height())
	}

	c.Save()
	c.Save()
	c.Restore()
	if c.Depth() != 1 {
		t.Errorf("Expected depth 1, got %d", c.Depth())
	}
	c.Restore()
	c.Restore()
	if c.Depth() != 0 {
		t.Errorf("Expected depth clamped at 0, got %d", c.Depth())
	}

	style := overlay.Style{Color: overlay.MustParseHex("#FF3030"), LineWidth: 4}
	c.Line(10, 10, 200, 200, style)
	c.Line(0, 0, 0, 0, overlay.Style{})
	if c.Lines() != 2 {
		t.Errorf("Expected 2 lines, got %d", c.Lines())
	}

	c.Clear()
	if c.Lines() != 0 {
		t.Errorf("Expected lines reset by Clear, got %d", c.Lines())
	}
}

func TestComposite(t *testing.T) {
	c := New(DefaultWidth, DefaultHeight)
	defer c.Close()
	c.SetQuality(70)

	c.Line(100, 100, 600, 400, overlay.Style{Color: overlay.MustParseHex("#30FF30"), LineWidth: 4})

	// A smaller frame is scaled up to the canvas.
	out, err := c.Composite(blankJPEG(t, 640, 480))
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	img, err := gocv.IMDecode(out, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("IMDecode failed: %v", err)
	}
	defer img.Close()

	if img.Cols() != 1280 || img.Rows() != 720 {
		t.Errorf("Expected 1280x720 output, got %dx%d", img.Cols(), img.Rows())
	}

	// Green stroke over a black frame: the midpoint should be clearly green.
	v := img.GetVecbAt(250, 350)
	if v[1] < 128 || v[2] > 128 {
		t.Errorf("Expected green pixel on stroke, got BGR %v", v)
	}
	bg := img.GetVecbAt(700, 1200)
	if bg[0] > 32 || bg[1] > 32 || bg[2] > 32 {
		t.Errorf("Expected untouched background, got BGR %v", bg)
	}
}

func TestCompositeBadFrame(t *testing.T) {
	c := New(64, 36)
	defer c.Close()

	_, err := c.Composite([]byte("not a jpeg"))
	if err == nil {
		t.Fatal("Expected error for invalid frame")
	}
	if !errors.Is(err, ErrEmptyFrame) {
		t.Logf("Decode reported %v", err)
	}
}

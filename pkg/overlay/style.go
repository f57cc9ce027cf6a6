package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA". Alpha defaults to opaque.
func ParseHex(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// MustParseHex is ParseHex for constant colors. It panics on bad input.
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#RRGGBBAA".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// Style is the stroke used for one connector group.
type Style struct {
	Color     Color
	LineWidth float64
}

// DefaultLineWidth is used when a style does not set one.
const DefaultLineWidth = 4

var (
	meshColor  = MustParseHex("#C0C0C070")
	rightColor = MustParseHex("#FF3030")
	leftColor  = MustParseHex("#30FF30")
	lineColor  = MustParseHex("#E0E0E0")
)

// DefaultStyles returns the stroke for each connector group.
func DefaultStyles() map[topology.Group]Style {
	return map[topology.Group]Style{
		topology.Tesselation:  {Color: meshColor, LineWidth: 1},
		topology.RightEye:     {Color: rightColor, LineWidth: DefaultLineWidth},
		topology.RightEyebrow: {Color: rightColor, LineWidth: DefaultLineWidth},
		topology.LeftEye:      {Color: leftColor, LineWidth: DefaultLineWidth},
		topology.LeftEyebrow:  {Color: leftColor, LineWidth: DefaultLineWidth},
		topology.FaceOval:     {Color: lineColor, LineWidth: DefaultLineWidth},
		topology.Lips:         {Color: lineColor, LineWidth: DefaultLineWidth},
		topology.RightIris:    {Color: rightColor, LineWidth: DefaultLineWidth},
		topology.LeftIris:     {Color: leftColor, LineWidth: DefaultLineWidth},
	}
}

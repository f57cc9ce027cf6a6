package overlay

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strconv"

	"github.com/teslashibe/go-facemesh/pkg/landmarker"
)

// Bar is one row of the blend-shape list.
type Bar struct {
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	WidthPercent float64 `json:"widthPercent"`
	Value        string  `json:"value"`
}

// List receives the blend-shape bars of each drawn frame. Every call replaces
// the previous content entirely.
type List interface {
	Replace(bars []Bar)
}

// ListFunc adapts a function to List.
type ListFunc func(bars []Bar)

// Replace calls f.
func (f ListFunc) Replace(bars []Bar) { f(bars) }

// NewBar builds the bar for one category. The label prefers the display name.
func NewBar(c landmarker.Category) Bar {
	label := c.DisplayName
	if label == "" {
		label = c.CategoryName
	}
	return Bar{
		Label:        label,
		Score:        c.Score,
		WidthPercent: widthPercent(c.Score),
		Value:        strconv.FormatFloat(c.Score, 'f', 4, 64),
	}
}

// BarsFromCategories converts categories to bars, preserving order.
func BarsFromCategories(cats []landmarker.Category) []Bar {
	bars := make([]Bar, len(cats))
	for i, c := range cats {
		bars[i] = NewBar(c)
	}
	return bars
}

func widthPercent(score float64) float64 {
	w := score * 100
	switch {
	case w < 0 || math.IsNaN(w):
		return 0
	case w > 100:
		return 100
	}
	return w
}

// Style returns the inline CSS sizing the bar. 120px is reserved for the label.
func (b Bar) Style() template.CSS {
	return template.CSS(fmt.Sprintf("width: calc(%s%% - 120px)", strconv.FormatFloat(b.WidthPercent, 'f', -1, 64)))
}

var barsTemplate = template.Must(template.New("bars").Parse(
	`{{range .}}<li class="blend-shapes-item"><span class="blend-shapes-label">{{.Label}}</span><span class="blend-shapes-value" style="{{.Style}}">{{.Value}}</span></li>
{{end}}`))

// RenderHTML renders bars as the list items of the blend-shape list.
func RenderHTML(bars []Bar) (string, error) {
	var buf bytes.Buffer
	if err := barsTemplate.Execute(&buf, bars); err != nil {
		return "", fmt.Errorf("render bars: %w", err)
	}
	return buf.String(), nil
}

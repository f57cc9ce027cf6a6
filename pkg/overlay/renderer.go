// Package overlay draws face landmark connectors onto a canvas and turns
// blend-shape scores into a list of labeled bars.
package overlay

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-facemesh/pkg/debug"
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Renderer draws detection results. Draw is called from a single goroutine;
// Loaded and SetTopology are safe from any goroutine.
type Renderer struct {
	canvas Canvas
	list   List
	styles map[topology.Group]Style
	topo   atomic.Pointer[topology.Set]
	logger *slog.Logger

	loaded     atomic.Bool
	loadedOnce sync.Once
	onLoaded   func()
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithStyles overrides the stroke of individual groups.
func WithStyles(styles map[topology.Group]Style) RendererOption {
	return func(r *Renderer) {
		for g, s := range styles {
			r.styles[g] = s
		}
	}
}

// WithOnLoaded registers fn to run once, on the first draw.
func WithOnLoaded(fn func()) RendererOption {
	return func(r *Renderer) { r.onLoaded = fn }
}

// WithRendererLogger sets the structured logger.
func WithRendererLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a renderer drawing onto canvas and publishing bars to
// list. A nil topo uses the built-in groups.
func NewRenderer(canvas Canvas, list List, topo *topology.Set, opts ...RendererOption) *Renderer {
	r := &Renderer{
		canvas: canvas,
		list:   list,
		styles: DefaultStyles(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if topo == nil {
		topo = topology.Default()
	}
	r.topo.Store(topo)
	r.logger = r.logger.With("component", "overlay")
	return r
}

// SetTopology swaps the connector groups used by subsequent draws.
func (r *Renderer) SetTopology(topo *topology.Set) {
	if topo != nil {
		r.topo.Store(topo)
	}
}

// Topology returns the connector groups in use.
func (r *Renderer) Topology() *topology.Set {
	return r.topo.Load()
}

// Loaded reports whether a frame has been drawn.
func (r *Renderer) Loaded() bool {
	return r.loaded.Load()
}

// Draw clears the canvas and strokes all connector groups for each face in
// draw order. The blend-shape list is then replaced with the first face's
// scores, which empties it when that face has none. It is left as is when
// the result carries no blend-shape sets at all.
func (r *Renderer) Draw(res *landmarker.Result) {
	r.markLoaded()

	topo := r.topo.Load()

	r.canvas.Save()
	r.canvas.Clear()
	if res != nil {
		for _, landmarks := range res.FaceLandmarks {
			for _, g := range topology.DrawOrder {
				DrawConnectors(r.canvas, landmarks, topo.Connections(g), r.styles[g])
			}
		}
	}
	r.canvas.Restore()

	if res == nil || len(res.FaceBlendshapes) == 0 {
		return
	}
	if r.list != nil {
		r.list.Replace(BarsFromCategories(res.FaceBlendshapes[0].Categories))
	}

	debug.FrameLog("overlay drawn", "faces", res.Faces(), "categories", len(res.FaceBlendshapes[0].Categories))
}

func (r *Renderer) markLoaded() {
	r.loadedOnce.Do(func() {
		r.loaded.Store(true)
		r.logger.Info("first frame drawn")
		if r.onLoaded != nil {
			r.onLoaded()
		}
	})
}

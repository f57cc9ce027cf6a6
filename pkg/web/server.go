// Package web serves the live overlay page and its data feeds.
package web

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-facemesh/pkg/hub"
	"github.com/teslashibe/go-facemesh/pkg/overlay"
)

//go:embed static/index.html
var static embed.FS

// Status is what the page needs to decide between spinner, overlay and error.
type Status struct {
	State     string     `json:"state"`
	Loaded    bool       `json:"loaded"`
	Error     string     `json:"error,omitempty"`
	ErrorAt   *time.Time `json:"error_at,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

// Server is the overlay web server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	// State
	status   Status
	statusMu sync.RWMutex

	// Last blend-shape list, replaced whole on every frame
	bars     []overlay.Bar
	barsHTML string
	barsMu   sync.RWMutex

	// Hubs for websocket broadcast
	frameHub  *hub.Hub
	statusHub *hub.Hub
	barsHub   *hub.Hub

	// CameraConfig returns the current camera settings
	CameraConfig func() map[string]interface{}

	// OnCameraConfig applies a partial camera settings update
	OnCameraConfig func(params map[string]interface{}) error

	// Stats returns loop and capture counters
	Stats func() map[string]interface{}
}

// NewServer creates the server listening on addr (":8090")
func NewServer(addr string) *Server {
	s := &Server{
		addr:      addr,
		logger:    slog.Default().With("component", "web"),
		status:    Status{State: "uninitialized"},
		frameHub:  hub.New("frames"),
		statusHub: hub.New("status"),
		barsHub:   hub.New("blendshapes"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facemesh",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/blendshapes", s.handleBlendShapes)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/stats", s.handleStats)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/blendshapes", websocket.New(s.handleBlendShapesWS))

	s.app = app
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and listens until ctx is done or Listen fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("web server listening", "url", "http://localhost"+s.addr)

	go s.frameHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.barsHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(s.addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownErr := s.Shutdown()
		if err := <-errCh; err != nil {
			return err
		}
		return shutdownErr
	}
}

// Replace stores the blend-shape bars and pushes them to clients.
// Implements overlay.List.
func (s *Server) Replace(bars []overlay.Bar) {
	html, err := overlay.RenderHTML(bars)
	if err != nil {
		s.logger.Warn("render blend shapes failed", "error", err)
		return
	}

	s.barsMu.Lock()
	s.bars = bars
	s.barsHTML = html
	s.barsMu.Unlock()

	s.barsHub.BroadcastText(html)
}

// SetLoaded hides the loading spinner on every page
func (s *Server) SetLoaded() {
	s.updateStatus(func(st *Status) { st.Loaded = true })
}

// SetState publishes the render loop state
func (s *Server) SetState(state string) {
	s.updateStatus(func(st *Status) { st.State = state })
}

// SetSessionID publishes the detector session id
func (s *Server) SetSessionID(id string) {
	s.updateStatus(func(st *Status) { st.SessionID = id })
}

// ReportError shows err on every page
func (s *Server) ReportError(err error) {
	if err == nil {
		return
	}
	s.updateStatus(func(st *Status) {
		now := time.Now()
		st.Error = err.Error()
		st.ErrorAt = &now
	})
}

// SendFrame sends a composited frame to all connected clients
func (s *Server) SendFrame(jpeg []byte) {
	s.frameHub.BroadcastBinary(jpeg)
}

// GetStatus returns a copy of the current status
func (s *Server) GetStatus() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Server) updateStatus(update func(*Status)) {
	s.statusMu.Lock()
	update(&s.status)
	status := s.status // Copy for broadcast
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(status); err != nil {
		s.logger.Warn("broadcast status failed", "error", err)
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	err := s.app.ShutdownWithTimeout(5 * time.Second)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Verify Server implements overlay.List at compile time.
var _ overlay.List = (*Server)(nil)

package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-facemesh/pkg/hub"
	"github.com/teslashibe/go-facemesh/pkg/overlay"
)

// handleIndex serves the overlay page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}

// handleStatus returns the current status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.GetStatus())
}

// handleBlendShapes returns the last blend-shape list
func (s *Server) handleBlendShapes(c *fiber.Ctx) error {
	s.barsMu.RLock()
	defer s.barsMu.RUnlock()
	if s.bars == nil {
		return c.JSON([]overlay.Bar{})
	}
	return c.JSON(s.bars)
}

// handleGetCamera returns camera settings
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.CameraConfig == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Camera not configured",
		})
	}
	return c.JSON(s.CameraConfig())
}

// handleUpdateCamera applies a partial camera update, e.g. {"preset":"1080p"}
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.OnCameraConfig == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Camera not configured",
		})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON body",
		})
	}

	if err := s.OnCameraConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if s.CameraConfig != nil {
		return c.JSON(s.CameraConfig())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleStats returns loop and capture counters
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats := fiber.Map{
		"clients": fiber.Map{
			"frames":      s.frameHub.ClientCount(),
			"status":      s.statusHub.ClientCount(),
			"blendshapes": s.barsHub.ClientCount(),
		},
		"dropped_broadcasts": s.frameHub.Dropped(),
	}
	if s.Stats != nil {
		for k, v := range s.Stats() {
			stats[k] = v
		}
	}
	return c.JSON(stats)
}

// handleFramesWS streams composited JPEG frames
func (s *Server) handleFramesWS(c *websocket.Conn) {
	if client := hub.NewClient(s.frameHub, c); client != nil {
		client.Run()
	}
}

// handleStatusWS streams status updates, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	data, err := json.Marshal(s.GetStatus())
	if err != nil {
		return
	}
	if client := hub.NewClient(s.statusHub, c, hub.NewJSONMessage(data)); client != nil {
		client.Run()
	}
}

// handleBlendShapesWS streams the blend-shape list as HTML fragments
func (s *Server) handleBlendShapesWS(c *websocket.Conn) {
	var initial []hub.Message
	s.barsMu.RLock()
	if s.barsHTML != "" {
		initial = append(initial, hub.NewTextMessage([]byte(s.barsHTML)))
	}
	s.barsMu.RUnlock()

	if client := hub.NewClient(s.barsHub, c, initial...); client != nil {
		client.Run()
	}
}

package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/session"
)

// handleStatus returns the session snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleConfig returns the effective configuration.
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.config)
}

// handleAlerts returns recent spoken alerts, oldest first.
func (s *Server) handleAlerts(c *fiber.Ctx) error {
	s.alertsMu.RLock()
	defer s.alertsMu.RUnlock()
	return c.JSON(s.alerts)
}

// handleControl forwards stop, voice, capture or disparity to the loop.
func (s *Server) handleControl(c *fiber.Ctx) error {
	ctl, err := session.ParseControl(c.Params("name"))
	if errors.Is(err, session.ErrUnknownControl) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if !s.ctrl.Send(ctl) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "control queue full"})
	}
	s.logger.Info("remote control", "control", ctl.String(), "ip", c.IP())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"control": ctl.String()})
}

func (s *Server) handleResultsWS(c *websocket.Conn) {
	hub.NewClient(s.resultsHub, c).Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

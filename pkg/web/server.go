// Package web serves the live dashboard: session status, remote controls
// and websocket streams of frame results and annotated camera frames.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/session"
)

// Controller is the running session as seen by the dashboard.
type Controller interface {
	Status() session.Status
	Send(c session.Control) bool
}

// AlertEntry is one announced alert in the dashboard history.
type AlertEntry struct {
	Time   string      `json:"time"`
	Seq    uint64      `json:"seq"`
	Alert  alert.Alert `json:"alert"`
	Phrase string      `json:"phrase"`
}

const maxAlerts = 200

// Server is the dashboard HTTP server.
type Server struct {
	app      *fiber.App
	addr     string
	ctrl     Controller
	config   any
	phrasing alert.Phrasing
	logger   *slog.Logger

	alerts   []AlertEntry
	alertsMu sync.RWMutex

	resultsHub *hub.Hub
	cameraHub  *hub.Hub

	ln net.Listener
}

// NewServer builds the app. config is served read-only at /api/config and
// must not contain secrets.
func NewServer(addr string, ctrl Controller, config any, phrasing alert.Phrasing, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		addr:       addr,
		ctrl:       ctrl,
		config:     config,
		phrasing:   phrasing,
		logger:     logger,
		alerts:     make([]AlertEntry, 0, maxAlerts),
		resultsHub: hub.New("results", logger),
		cameraHub:  hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "wayfinder",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/alerts", s.handleAlerts)
	api.Post("/controls/:name", s.handleControl)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/results", websocket.New(s.handleResultsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Bind reserves the listen address so a port conflict is reported before
// the session starts. Run binds on its own when Bind was not called.
func (s *Server) Bind() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Bind.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Bind(); err != nil {
		return err
	}
	go s.resultsHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.Addr())
		errc <- s.app.Listener(s.ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

// Close releases a listener that was bound but never served.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Observe implements session.Observer. Processed frames are streamed to
// results clients and their alerts recorded.
func (s *Server) Observe(v session.View) {
	if !v.Processed {
		return
	}
	if err := s.resultsHub.BroadcastJSON("frame", v.Result.Report()); err != nil {
		s.logger.Debug("encode result", "error", err)
	}
	if !v.VoiceEnabled {
		return
	}
	for _, a := range v.Result.Alerts {
		s.addAlert(AlertEntry{
			Time:   a.At.Format("15:04:05"),
			Seq:    v.Result.Seq,
			Alert:  a,
			Phrase: s.phrasing.Phrase(a),
		})
	}
}

// PublishFrame sends a JPEG to camera clients.
func (s *Server) PublishFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

func (s *Server) addAlert(e AlertEntry) {
	s.alertsMu.Lock()
	s.alerts = append(s.alerts, e)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[1:]
	}
	s.alertsMu.Unlock()
}

var _ session.Observer = (*Server)(nil)

// Package web exposes the planar simulator over HTTP and websockets.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fws "github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-planar/internal/log"
	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/hub"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/sim"
)

// inputQueue is how many operator commands may wait for the loop.
const inputQueue = 64

// Server is the simulator control surface
type Server struct {
	app  *fiber.App
	port string
	log  *slog.Logger

	// Simulation
	arm   robot.Arm
	loop  *sim.Loop
	field *obstacle.Field
	input *sim.ChanInput

	// Last drawn frame and move result
	mu         sync.RWMutex
	lastFrame  *sim.Frame
	lastResult *sim.Result

	// Hub for websocket broadcast
	telemetry *hub.Hub
	cancel    context.CancelFunc
}

// NewServer creates a server that owns the simulation loop for arm.
// The loop draws into the telemetry hub every drawStep samples and takes
// obstacle commands from the HTTP and websocket input endpoints.
func NewServer(port string, arm robot.Arm, ctrl *control.Controller, field *obstacle.Field, drawStep int, opts ...sim.Option) *Server {
	s := &Server{
		port:      port,
		log:       log.With("component", "web"),
		arm:       arm,
		field:     field,
		input:     sim.NewChanInput(inputQueue),
		telemetry: hub.New("telemetry"),
	}

	opts = append(opts,
		sim.WithDraw(drawStep, s.Draw),
		sim.WithInput(s.input),
	)
	if field != nil {
		opts = append(opts, sim.WithObstacles(field))
	}
	s.loop = sim.NewLoop(arm, ctrl, opts...)

	app := fiber.New(fiber.Config{
		AppName:               "Planar Simulator",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/history", s.handleHistory)
	api.Get("/frame", s.handleFrame)
	api.Get("/result", s.handleResult)
	api.Post("/move", s.handleMove)
	api.Post("/reset", s.handleReset)
	api.Post("/input", s.handleInput)
	api.Get("/obstacles", s.handleListObstacles)
	api.Post("/obstacles", s.handleAddObstacle)
	api.Delete("/obstacles/:id", s.handleRemoveObstacle)
	api.Post("/obstacles/:id/select", s.handleSelectObstacle)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/telemetry", fws.New(s.handleTelemetryWS))
	app.Get("/ws/input", websocket.New(s.handleInputWS))

	s.app = app
	return s
}

// Loop returns the simulation loop driven by the server.
func (s *Server) Loop() *sim.Loop {
	return s.loop
}

// Telemetry returns the telemetry hub.
func (s *Server) Telemetry() *hub.Hub {
	return s.telemetry
}

// Run starts the telemetry hub. It stops when ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.telemetry.Run(ctx)
}

// Start starts the hub and the web server, blocking until shutdown.
func (s *Server) Start() error {
	s.Run(context.Background())
	s.log.Info("web server listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server error", "error", err)
		}
	}()
}

// Draw records a frame and broadcasts it. It is the loop's draw callback.
func (s *Server) Draw(frame sim.Frame) {
	s.mu.Lock()
	s.lastFrame = &frame
	s.mu.Unlock()

	s.publish(hub.EventFrame, frame)
}

// LastFrame returns the most recent frame, if any.
func (s *Server) LastFrame() (sim.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFrame == nil {
		return sim.Frame{}, false
	}
	return *s.lastFrame, true
}

// Shutdown gracefully stops the web server and the hub
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

func (s *Server) publish(eventType string, data any) {
	if !s.telemetry.IsRunning() {
		return
	}
	if err := s.telemetry.Publish(eventType, data); err != nil {
		s.log.Warn("event not broadcast", "type", eventType, "error", err)
	}
}

package web

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/hub"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/trajectory"
)

// StateResponse describes the arm's live configuration
type StateResponse struct {
	State       []float64 `json:"state"`
	Home        []float64 `json:"home"`
	EndEffector r2.Vec    `json:"end_effector"`
	Links       []r2.Vec  `json:"links"`
}

// MoveRequest is the request body for a move
type MoveRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Duration float64 `json:"duration"`
}

// ObstacleRequest is the request body for adding an obstacle
type ObstacleRequest struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// InputRequest is the request body for an operator command
type InputRequest struct {
	Command string `json:"command"`
}

// handleState returns the arm's current state
func (s *Server) handleState(c *fiber.Ctx) error {
	state, err := s.snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(state)
}

// handleHistory returns every applied joint vector, home first
func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.historyOf())
}

// handleFrame returns the last drawn frame
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frame, ok := s.LastFrame()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame drawn yet"})
	}
	return c.JSON(frame)
}

// handleResult returns the last move result
func (s *Server) handleResult(c *fiber.Ctx) error {
	s.mu.RLock()
	res := s.lastResult
	s.mu.RUnlock()
	if res == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no move yet"})
	}
	return c.JSON(res)
}

// handleMove runs a move to completion and returns its result
func (s *Server) handleMove(c *fiber.Ctx) error {
	var req MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	res, err := s.loop.Move(c.UserContext(), r2.Vec{X: req.X, Y: req.Y}, req.Duration)
	if res != nil {
		s.mu.Lock()
		s.lastResult = res
		s.mu.Unlock()
		s.publish(hub.EventMove, res)
	}
	if err != nil {
		s.log.Warn("move failed", "error", err)
		return c.Status(moveStatus(err)).JSON(fiber.Map{
			"error":  err.Error(),
			"result": res,
		})
	}
	return c.JSON(res)
}

// handleReset returns the arm to home
func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.loop.Reset(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	state, err := s.snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.publish(hub.EventReset, state)
	return c.JSON(state)
}

// handleInput queues an operator command for the running loop
func (s *Server) handleInput(c *fiber.Ctx) error {
	var req InputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if !s.input.Push(strings.TrimSpace(req.Command)) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "input queue full"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queued":  req.Command,
		"pending": s.input.Pending(),
	})
}

// handleListObstacles returns obstacles sorted by id
func (s *Server) handleListObstacles(c *fiber.Ctx) error {
	if s.field == nil {
		return c.JSON(fiber.Map{"selected": "", "obstacles": []obstacle.Obstacle{}})
	}
	return c.JSON(fiber.Map{
		"selected":  s.field.Selected(),
		"obstacles": s.field.Obstacles(),
	})
}

// handleAddObstacle inserts or replaces an obstacle
func (s *Server) handleAddObstacle(c *fiber.Ctx) error {
	if s.field == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no obstacle field"})
	}
	var req ObstacleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	o := obstacle.Obstacle{ID: req.ID, Center: r2.Vec{X: req.X, Y: req.Y}, Radius: req.Radius}
	if err := s.field.Add(o); err != nil {
		return c.Status(obstacleStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	s.publish(hub.EventObstacles, s.field.Obstacles())
	return c.Status(fiber.StatusCreated).JSON(o)
}

// handleRemoveObstacle deletes an obstacle
func (s *Server) handleRemoveObstacle(c *fiber.Ctx) error {
	if s.field == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no obstacle field"})
	}
	if err := s.field.Remove(c.Params("id")); err != nil {
		return c.Status(obstacleStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	s.publish(hub.EventObstacles, s.field.Obstacles())
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSelectObstacle makes an obstacle the target of unprefixed commands
func (s *Server) handleSelectObstacle(c *fiber.Ctx) error {
	if s.field == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no obstacle field"})
	}
	if err := s.field.Select(c.Params("id")); err != nil {
		return c.Status(obstacleStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"selected": s.field.Selected()})
}

// handleTelemetryWS streams hub events to one client
func (s *Server) handleTelemetryWS(c *fws.Conn) {
	client := hub.NewClient(s.telemetry, c)
	client.Run() // Blocks until disconnect
}

// handleInputWS reads one operator command per text message
func (s *Server) handleInputWS(c *websocket.Conn) {
	s.log.Info("input client connected")
	defer s.log.Info("input client disconnected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		command := strings.TrimSpace(string(data))
		ack := fiber.Map{"command": command, "queued": s.input.Push(command)}
		if err := c.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (s *Server) snapshot() (StateResponse, error) {
	state := s.arm.State()
	n := s.arm.Joints()

	links := make([]r2.Vec, n+1)
	for k := 0; k <= n; k++ {
		t, err := s.arm.PoseAt(state, k)
		if err != nil {
			return StateResponse{}, err
		}
		links[k] = robot.Translation(t)
	}

	return StateResponse{
		State:       state,
		Home:        s.arm.Home(),
		EndEffector: links[n],
		Links:       links,
	}, nil
}

func (s *Server) historyOf() [][]float64 {
	if h, ok := s.arm.(robot.Historian); ok {
		return h.History()
	}
	return [][]float64{s.arm.State()}
}

func moveStatus(err error) int {
	switch {
	case errors.Is(err, trajectory.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, control.ErrSingularConfiguration),
		errors.Is(err, robot.ErrInvalidState),
		errors.Is(err, obstacle.ErrInvalidCommand),
		errors.Is(err, obstacle.ErrNotFound):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func obstacleStatus(err error) int {
	switch {
	case errors.Is(err, obstacle.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, obstacle.ErrInvalidObstacle):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/hub"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/sim"
)

func newTestServer(t *testing.T, port string, damping float64) *Server {
	t.Helper()

	arm, err := robot.NewChain([]float64{1, 1, 1}, []float64{0, 0, 0})
	require.NoError(t, err)

	field, err := obstacle.NewField(0.5,
		obstacle.Obstacle{ID: "a", Center: r2.Vec{X: -3, Y: -3}, Radius: 0.2},
		obstacle.Obstacle{ID: "b", Center: r2.Vec{X: 0, Y: 4}, Radius: 0.2},
	)
	require.NoError(t, err)

	cfg := control.DefaultConfig()
	cfg.Period = 0.1
	cfg.Damping = damping
	ctrl, err := control.NewController(arm, field, cfg)
	require.NoError(t, err)

	return NewServer(port, arm, ctrl, field, 1)
}

func do(t *testing.T, s *Server, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestState(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, body := do(t, s, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, code)

	var state StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, []float64{0, 0, 0}, state.State)
	assert.Len(t, state.Links, 4)
	assert.InDelta(t, 3, state.EndEffector.X, 1e-12)
}

func TestMoveAndReset(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, body := do(t, s, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 1})
	require.Equal(t, http.StatusOK, code, string(body))

	var res sim.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.States, 11)
	assert.Less(t, res.Error, 1e-2)

	frame, ok := s.LastFrame()
	require.True(t, ok)
	assert.True(t, frame.Final)
	assert.Equal(t, res.RunID, frame.RunID)

	code, body = do(t, s, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, code)
	var history [][]float64
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history, 12)

	code, _ = do(t, s, http.MethodGet, "/api/result", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = do(t, s, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, code)
	var state StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, []float64{0, 0, 0}, state.State)
}

func TestMoveErrors(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, _ := do(t, s, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 0})
	assert.Equal(t, http.StatusBadRequest, code)

	singular := newTestServer(t, "0", 0)
	code, body := do(t, singular, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(body), "singular")

	code, _ = do(t, s, http.MethodGet, "/api/frame", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInputMovesObstacleDuringMove(t *testing.T) {
	s := newTestServer(t, "0", 0.05)
	require.NoError(t, s.field.Select("b"))

	code, _ := do(t, s, http.MethodPost, "/api/input", InputRequest{Command: "up"})
	require.Equal(t, http.StatusAccepted, code)
	code, _ = do(t, s, http.MethodPost, "/api/input", InputRequest{Command: "a:right"})
	require.Equal(t, http.StatusAccepted, code)

	code, _ = do(t, s, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 1})
	require.Equal(t, http.StatusOK, code)

	b, _ := s.field.Get("b")
	assert.InDelta(t, 4.5, b.Center.Y, 1e-12)
	a, _ := s.field.Get("a")
	assert.InDelta(t, -2.5, a.Center.X, 1e-12)
}

func TestInvalidInputAbortsMove(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, _ := do(t, s, http.MethodPost, "/api/input", InputRequest{Command: "jump"})
	require.Equal(t, http.StatusAccepted, code)

	code, body := do(t, s, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(body), "invalid obstacle command")
}

func TestObstacles(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, _ := do(t, s, http.MethodPost, "/api/obstacles", ObstacleRequest{ID: "c", X: 1, Y: 1, Radius: 0.3})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = do(t, s, http.MethodPost, "/api/obstacles", ObstacleRequest{ID: "bad", Radius: -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, s, http.MethodPost, "/api/obstacles/c/select", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"selected":"c"`)

	code, _ = do(t, s, http.MethodDelete, "/api/obstacles/b", nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, s, http.MethodDelete, "/api/obstacles/zz", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, s, http.MethodGet, "/api/obstacles", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Selected  string              `json:"selected"`
		Obstacles []obstacle.Obstacle `json:"obstacles"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, "c", list.Selected)
	require.Len(t, list.Obstacles, 2)
	assert.Equal(t, "a", list.Obstacles[0].ID)
	assert.Equal(t, "c", list.Obstacles[1].ID)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t, "0", 0.05)

	code, _ := do(t, s, http.MethodGet, "/ws/telemetry", nil)
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestWebSocketTelemetryAndInput(t *testing.T) {
	s := newTestServer(t, "18091", 0.05)
	s.StartAsync()
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/telemetry", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return s.Telemetry().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	in, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/input", nil)
	require.NoError(t, err)
	defer in.Close()

	require.NoError(t, in.WriteMessage(websocket.TextMessage, []byte("b:up")))
	var ack struct {
		Command string `json:"command"`
		Queued  bool   `json:"queued"`
	}
	require.NoError(t, in.ReadJSON(&ack))
	assert.Equal(t, "b:up", ack.Command)
	assert.True(t, ack.Queued)

	code, body := do(t, s, http.MethodPost, "/api/move", MoveRequest{X: 2, Y: 1, Duration: 1})
	require.Equal(t, http.StatusOK, code, string(body))

	b, _ := s.field.Get("b")
	assert.InDelta(t, 4.5, b.Center.Y, 1e-12)

	frames := 0
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)

		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == hub.EventFrame {
			frames++
			continue
		}
		if ev.Type == hub.EventMove {
			break
		}
	}
	assert.Equal(t, 11, frames)
}

// Package sim runs the discrete-time control loop that drives a planar arm
// along a planned trajectory.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/trajectory"
)

// Result summarizes one move.
type Result struct {
	RunID   string              `json:"run_id"`
	Target  r2.Vec              `json:"target"`
	Profile *trajectory.Profile `json:"-"`
	States  [][]float64         `json:"states"` // Joint vectors applied, one per completed step
	Final   r2.Vec              `json:"final"`  // End-effector after the last applied step
	Error   float64             `json:"error"`  // |target − final|
}

// Steps returns the number of applied steps.
func (r *Result) Steps() int {
	return len(r.States)
}

// Loop executes moves one control period at a time.
// Move and Reset are serialized; the arm may be read concurrently.
type Loop struct {
	mu   sync.Mutex
	arm  robot.Arm
	ctrl *control.Controller
	cfg  *Config
	log  *slog.Logger
}

// NewLoop creates a loop driving arm with ctrl. The controller must have
// been built for the same arm.
func NewLoop(arm robot.Arm, ctrl *control.Controller, opts ...Option) *Loop {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		arm:  arm,
		ctrl: ctrl,
		cfg:  cfg,
		log:  cfg.Logger.With("component", "sim"),
	}
}

// Arm returns the driven arm.
func (l *Loop) Arm() robot.Arm {
	return l.arm
}

// Controller returns the controller.
func (l *Loop) Controller() *control.Controller {
	return l.ctrl
}

// Move plans a trajectory from the current end-effector position to target
// over duration seconds and tracks it. Cancellation is checked between
// steps. On error the steps already applied stay applied and the partial
// result is returned alongside the error.
func (l *Loop) Move(ctx context.Context, target r2.Vec, duration float64) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ee, err := l.arm.ForwardKinematics(robot.Full)
	if err != nil {
		return nil, err
	}
	start := robot.Translation(ee)

	period := l.ctrl.Config().Period
	profile, err := trajectory.PlanVec(start, target, duration, period)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:   uuid.NewString(),
		Target:  target,
		Profile: profile,
		States:  make([][]float64, 0, profile.Len()),
		Final:   start,
	}
	log := l.log.With("run", res.RunID)
	log.Info("move started",
		"from", fmt.Sprintf("(%.3f, %.3f)", start.X, start.Y),
		"to", fmt.Sprintf("(%.3f, %.3f)", target.X, target.Y),
		"duration", duration,
		"samples", profile.Len(),
		"mode", l.ctrl.Mode().Name())

	var ticker *time.Ticker
	if l.cfg.Realtime {
		ticker = time.NewTicker(time.Duration(period * float64(time.Second)))
		defer ticker.Stop()
	}

	last := profile.Len() - 1
	for i, s := range profile.Samples {
		if err := ctx.Err(); err != nil {
			log.Warn("move cancelled", "step", i)
			return l.finish(res), err
		}
		if ticker != nil && i > 0 {
			select {
			case <-ctx.Done():
				log.Warn("move cancelled", "step", i)
				return l.finish(res), ctx.Err()
			case <-ticker.C:
			}
		}

		if err := l.applyInput(); err != nil {
			log.Warn("input rejected", "step", i, "error", err)
			return l.finish(res), err
		}

		cmd, err := l.ctrl.Step(s)
		if err != nil {
			log.Error("control step failed", "step", i, "error", err)
			return l.finish(res), err
		}
		if err := l.arm.Move(cmd.Angles); err != nil {
			log.Error("apply failed", "step", i, "error", err)
			return l.finish(res), err
		}
		res.States = append(res.States, cmd.Angles)

		current, err := l.endEffector()
		if err != nil {
			return l.finish(res), err
		}
		l.record(s, cmd, current)

		if l.cfg.Draw != nil && (i == last || (l.cfg.DrawStep > 0 && i%l.cfg.DrawStep == 0)) {
			frame, err := l.frame(res, s, cmd, current, i == last)
			if err != nil {
				return l.finish(res), err
			}
			l.cfg.Draw(frame)
		}
	}

	l.finish(res)
	log.Info("move finished", "steps", res.Steps(), "error", res.Error)
	return res, nil
}

// Reset returns the arm to home and re-seeds the controller.
func (l *Loop) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.arm.Reset()
	if err := l.ctrl.Reset(); err != nil {
		return err
	}
	l.log.Info("reset", "state", l.arm.State())
	return nil
}

// applyInput forwards one operator command to the obstacle provider.
// Provider errors are returned unchanged.
func (l *Loop) applyInput() error {
	if l.cfg.Input == nil {
		return nil
	}
	command := l.cfg.Input.Next()
	if command == "" {
		return nil
	}
	if l.cfg.Obstacles == nil {
		l.log.Debug("input ignored, no obstacles", "command", command)
		return nil
	}
	return l.cfg.Obstacles.Move(command)
}

func (l *Loop) record(s trajectory.Sample, cmd *control.Command, current r2.Vec) {
	r := l.cfg.Recorder
	if r == nil {
		return
	}
	r.Record("error", r2.Norm(r2.Sub(s.Position, current)))
	r.Record("state", cmd.Angles)
	r.Record("secondary", norm(cmd.Secondary))
	if d := cmd.MinDistance(); !math.IsInf(d, 1) {
		r.Record("min_dist", d)
	}
}

// frame builds a draw frame. Link positions come from the pure PoseAt
// query so drawing never touches the arm's state or caches.
func (l *Loop) frame(res *Result, s trajectory.Sample, cmd *control.Command, current r2.Vec, final bool) (Frame, error) {
	n := l.arm.Joints()
	links := make([]r2.Vec, n+1)
	for k := 0; k <= n; k++ {
		t, err := l.arm.PoseAt(cmd.Angles, k)
		if err != nil {
			return Frame{}, err
		}
		links[k] = robot.Translation(t)
	}

	f := Frame{
		RunID:      res.RunID,
		Index:      s.Index,
		Time:       s.Time,
		Final:      final,
		Current:    current,
		Desired:    s.Position,
		Target:     res.Target,
		Links:      links,
		Angles:     cmd.Angles,
		Repulsions: cmd.Repulsions,
	}
	if l.cfg.Obstacles != nil {
		f.Obstacles = l.cfg.Obstacles.Obstacles()
	}
	return f, nil
}

func (l *Loop) finish(res *Result) *Result {
	if current, err := l.endEffector(); err == nil {
		res.Final = current
	}
	res.Error = r2.Norm(r2.Sub(res.Target, res.Final))
	return res
}

func (l *Loop) endEffector() (r2.Vec, error) {
	t, err := l.arm.ForwardKinematics(robot.Full)
	if err != nil {
		return r2.Vec{}, err
	}
	return robot.Translation(t), nil
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

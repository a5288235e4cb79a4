package control

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/trajectory"
)

// Mode is a control law. The set is closed: MinEnergy, OpenLoop and
// ClosedLoop are the only implementations.
type Mode interface {
	// Name returns the configuration name of the mode.
	Name() string

	// taskVelocity turns a desired sample into a commanded end-effector
	// velocity. dt is the interval the command will be integrated over.
	taskVelocity(d *Differentiator, s trajectory.Sample, actual r2.Vec, dt float64) r2.Vec

	// jointVelocity resolves the task velocity into joint rates and fills the
	// primary/secondary breakdown of cmd.
	jointVelocity(c *Controller, v r2.Vec, cmd *Command) (*mat.VecDense, error)
}

var (
	// MinEnergy differentiates the desired position stream and resolves it
	// with the Moore-Penrose inverse of the full 6xn Jacobian against a
	// zero-padded twist. For n >= 3 this also holds the end-effector heading.
	// No secondary task.
	MinEnergy Mode = minEnergy{}

	// OpenLoop feeds the planned velocity forward through task-priority
	// control. Tracking errors are never corrected.
	OpenLoop Mode = openLoop{}

	// ClosedLoop differentiates the desired position against the measured
	// end-effector position, so every step also removes the accumulated
	// tracking error. Task-priority control.
	ClosedLoop Mode = closedLoop{}
)

// Modes lists every control mode.
var Modes = []Mode{MinEnergy, OpenLoop, ClosedLoop}

// ParseMode resolves a configuration name ("min_energy", "open_loop",
// "closed_loop"). Matching ignores case and accepts '-' for '_'.
func ParseMode(name string) (Mode, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, m := range Modes {
		if m.Name() == key {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, name)
}

type minEnergy struct{}

func (minEnergy) Name() string { return "min_energy" }

func (minEnergy) taskVelocity(d *Differentiator, s trajectory.Sample, _ r2.Vec, dt float64) r2.Vec {
	return d.RateOver(d.Last(), s.Position, dt)
}

func (minEnergy) jointVelocity(c *Controller, v r2.Vec, cmd *Command) (*mat.VecDense, error) {
	j, err := c.arm.Jacobian(robot.Full)
	if err != nil {
		return nil, err
	}
	pinv, err := PseudoInverse(j)
	if err != nil {
		return nil, err
	}

	twist := mat.NewVecDense(6, []float64{v.X, v.Y, 0, 0, 0, 0})
	qdot := mat.NewVecDense(c.arm.Joints(), nil)
	qdot.MulVec(pinv, twist)

	cmd.Primary = toSlice(qdot)
	cmd.Secondary = make([]float64, qdot.Len())
	return qdot, nil
}

type openLoop struct{}

func (openLoop) Name() string { return "open_loop" }

func (openLoop) taskVelocity(_ *Differentiator, s trajectory.Sample, _ r2.Vec, _ float64) r2.Vec {
	return s.Velocity
}

func (openLoop) jointVelocity(c *Controller, v r2.Vec, cmd *Command) (*mat.VecDense, error) {
	return c.taskPriority(v, cmd)
}

type closedLoop struct{}

func (closedLoop) Name() string { return "closed_loop" }

func (closedLoop) taskVelocity(d *Differentiator, s trajectory.Sample, actual r2.Vec, dt float64) r2.Vec {
	return d.RateOver(actual, s.Position, dt)
}

func (closedLoop) jointVelocity(c *Controller, v r2.Vec, cmd *Command) (*mat.VecDense, error) {
	return c.taskPriority(v, cmd)
}

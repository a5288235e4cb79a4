// Package control resolves end-effector motion commands into joint
// velocities with task-priority control.
//
// The primary task tracks a commanded end-effector velocity through the
// right pseudo-inverse of the 2xn positional Jacobian. The secondary task
// pushes the link closest to each obstacle away from it, and is projected
// into the null space of the primary task so it never changes the achieved
// end-effector velocity.
package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
	"github.com/teslashibe/go-planar/pkg/trajectory"
)

// Arm is the subset of robot capabilities the controller reads.
// The controller never moves the arm; the simulation loop applies commands.
type Arm interface {
	robot.PoseQuerier
	robot.JacobianQuerier
	State() []float64
}

// Repulsion describes one obstacle's contribution in a control step.
type Repulsion struct {
	ObstacleID string  `json:"obstacle_id"`
	Link       int     `json:"link"`       // Closest link frame (0 = base)
	Distance   float64 `json:"distance"`   // Link to obstacle center
	Weight     float64 `json:"weight"`     // Gaussian density ratio, 1 at the center
	Degenerate bool    `json:"degenerate"` // Zero-norm gradient, contribution clamped to zero
}

// Command is the outcome of one control step.
type Command struct {
	Index         int         `json:"index"`
	Desired       r2.Vec      `json:"desired"`
	Actual        r2.Vec      `json:"actual"`        // End-effector before the step
	TaskVelocity  r2.Vec      `json:"task_velocity"` // Commanded end-effector velocity
	Primary       []float64   `json:"primary"`       // Joint rates from the tracking task
	Secondary     []float64   `json:"secondary"`     // Null-space projected avoidance rates
	JointVelocity []float64   `json:"joint_velocity"`
	Angles        []float64   `json:"angles"` // Integrated joint angles to apply
	Repulsions    []Repulsion `json:"repulsions,omitempty"`
}

// MinDistance returns the smallest link-to-obstacle distance, or +Inf
// when no obstacle was considered.
func (c *Command) MinDistance() float64 {
	d := math.Inf(1)
	for _, r := range c.Repulsions {
		d = math.Min(d, r.Distance)
	}
	return d
}

// Controller runs one task-priority control cycle per Step.
// Not safe for concurrent use; the simulation loop serializes access.
type Controller struct {
	arm       Arm
	obstacles obstacle.Source
	cfg       Config

	diff  *Differentiator
	integ *Integrator
}

// NewController creates a controller for arm. obstacles may be nil.
// The integrator and differentiator are seeded from the arm's current state.
func NewController(arm Arm, obstacles obstacle.Source, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		arm:       arm,
		obstacles: obstacles,
		cfg:       cfg,
		diff:      NewDifferentiator(cfg.Period, r2.Vec{}),
		integ:     NewIntegrator(cfg.Period, arm.State()),
	}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Mode returns the control law in use.
func (c *Controller) Mode() Mode {
	return c.cfg.Mode
}

// Reset re-seeds the integrator from the arm state and the differentiator
// from the end-effector position. Call after resetting the arm.
func (c *Controller) Reset() error {
	ee, err := c.endEffector()
	if err != nil {
		return err
	}
	c.integ.Reset(c.arm.State())
	c.diff.Reset(ee)
	return nil
}

// IntegratorState returns the controller's running joint-angle estimate.
func (c *Controller) IntegratorState() []float64 {
	return c.integ.State()
}

// DifferentiatorState returns the last fed position sample.
func (c *Controller) DifferentiatorState() r2.Vec {
	return c.diff.Last()
}

// Step runs one control cycle for a desired sample: differentiate, resolve
// the primary and secondary tasks, integrate. Rates are taken over the
// sample's Interval, or the configured period when it is unset. The step is
// atomic: on error neither the integrator nor the differentiator changes.
func (c *Controller) Step(s trajectory.Sample) (*Command, error) {
	actual, err := c.endEffector()
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		Index:   s.Index,
		Desired: s.Position,
		Actual:  actual,
	}
	dt := s.Interval
	if !(dt > 0) {
		dt = c.cfg.Period
	}
	cmd.TaskVelocity = c.cfg.Mode.taskVelocity(c.diff, s, actual, dt)

	qdot, err := c.cfg.Mode.jointVelocity(c, cmd.TaskVelocity, cmd)
	if err != nil {
		return nil, fmt.Errorf("step %d (%s): %w", s.Index, c.cfg.Mode.Name(), err)
	}

	cmd.JointVelocity = toSlice(qdot)
	cmd.Angles = c.integ.IntegrateOver(qdot, dt)
	c.diff.Reset(s.Position)
	return cmd, nil
}

// taskPriority resolves v as the primary task and obstacle avoidance as the
// secondary task projected into the primary task's null space.
func (c *Controller) taskPriority(v r2.Vec, cmd *Command) (*mat.VecDense, error) {
	n := c.arm.Joints()

	j, err := c.arm.Jacobian(robot.Full)
	if err != nil {
		return nil, err
	}
	jp := j.Slice(0, 2, 0, n)

	pinv, err := RightPseudoInverse(jp, c.cfg.Damping)
	if err != nil {
		return nil, err
	}

	primary := mat.NewVecDense(n, nil)
	primary.MulVec(pinv, mat.NewVecDense(2, []float64{v.X, v.Y}))

	secondary, reps, err := c.avoidance(jp, pinv)
	if err != nil {
		return nil, err
	}

	qdot := mat.NewVecDense(n, nil)
	qdot.AddVec(primary, secondary)

	cmd.Primary = toSlice(primary)
	cmd.Secondary = toSlice(secondary)
	cmd.Repulsions = reps
	return qdot, nil
}

// avoidance computes the null-space projected repulsion from every obstacle.
// Each obstacle acts on its closest link frame only.
func (c *Controller) avoidance(jp mat.Matrix, pinv *mat.Dense) (*mat.VecDense, []Repulsion, error) {
	n := c.arm.Joints()
	secondary := mat.NewVecDense(n, nil)

	var obs []obstacle.Obstacle
	if c.obstacles != nil {
		obs = c.obstacles.Obstacles()
	}
	if len(obs) == 0 {
		return secondary, nil, nil
	}

	links := make([]r2.Vec, n+1)
	for i := 0; i <= n; i++ {
		t, err := c.arm.ForwardKinematics(i)
		if err != nil {
			return nil, nil, err
		}
		links[i] = robot.Translation(t)
	}

	sum := mat.NewVecDense(n, nil)
	reps := make([]Repulsion, 0, len(obs))

	for _, o := range obs {
		link, dist := closestLink(links, o.Center)
		rep := Repulsion{ObstacleID: o.ID, Link: link, Distance: dist}

		if !(o.Radius > 0) {
			reps = append(reps, rep)
			continue
		}
		rep.Weight = math.Exp(-dist * dist / (2 * o.Radius * o.Radius))

		jl, err := c.arm.Jacobian(link)
		if err != nil {
			return nil, nil, err
		}

		// ∇q ½|x_link − c|² = (x_link − c)ᵗ J_link[:2]
		away := r2.Sub(links[link], o.Center)
		grad := mat.NewVecDense(n, nil)
		for col := 0; col < n; col++ {
			grad.SetVec(col, away.X*jl.At(0, col)+away.Y*jl.At(1, col))
		}

		norm := mat.Norm(grad, 2)
		if norm <= c.cfg.GradientEpsilon || math.IsNaN(norm) {
			rep.Degenerate = true
			reps = append(reps, rep)
			continue
		}

		sum.AddScaledVec(sum, rep.Weight/norm, grad)
		reps = append(reps, rep)
	}

	sum.ScaleVec(c.cfg.AvoidanceGain, sum)
	secondary.MulVec(NullSpaceProjector(jp, pinv), sum)
	return secondary, reps, nil
}

func (c *Controller) endEffector() (r2.Vec, error) {
	t, err := c.arm.ForwardKinematics(robot.Full)
	if err != nil {
		return r2.Vec{}, err
	}
	return robot.Translation(t), nil
}

// closestLink returns the index and distance of the link frame nearest p.
// Ties resolve to the lower index.
func closestLink(links []r2.Vec, p r2.Vec) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, l := range links {
		if d := r2.Norm(r2.Sub(l, p)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func toSlice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

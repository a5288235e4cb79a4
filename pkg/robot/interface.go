// Package robot models a serial planar manipulator.
//
// Consumers depend on the small capability interfaces below rather than on
// *Chain directly, so the controller and the simulation loop can run
// against a mocked or simulated arm in tests.
package robot

import "gonum.org/v1/gonum/mat"

// Full selects the whole chain (the end-effector frame) in ForwardKinematics
// and Jacobian queries.
const Full = -1

// PoseQuerier provides forward kinematics on the live joint state.
type PoseQuerier interface {
	// Joints returns the number of joints n.
	Joints() int
	// ForwardKinematics returns the 4x4 homogeneous transform of joint frame
	// 0..n (or Full).
	ForwardKinematics(joint int) (*mat.Dense, error)
}

// JacobianQuerier provides the 6xn manipulator Jacobian, optionally
// truncated at an intermediate frame.
type JacobianQuerier interface {
	Jacobian(limit int) (*mat.Dense, error)
}

// Mover applies joint-angle vectors.
type Mover interface {
	State() []float64
	Move(state []float64) error
}

// Homer restores the canonical configuration.
type Homer interface {
	Home() []float64
	Reset()
}

// Previewer answers kinematic queries for an explicit joint state without
// touching the live one. Used for drawing and planning previews.
type Previewer interface {
	PoseAt(state []float64, joint int) (*mat.Dense, error)
}

// Historian exposes every applied joint vector, home first.
type Historian interface {
	History() [][]float64
}

// Arm is the composite interface for full chain control.
type Arm interface {
	PoseQuerier
	JacobianQuerier
	Mover
	Homer
	Previewer
}

// Ensure Chain implements Arm
var (
	_ Arm       = (*Chain)(nil)
	_ Historian = (*Chain)(nil)
)

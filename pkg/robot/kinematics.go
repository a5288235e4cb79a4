package robot

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// cumulative returns the running sum of joint angles. Both forward
// kinematics and the Jacobian read from one such array per call so related
// entries never disagree by floating-point drift.
func cumulative(state []float64) []float64 {
	cum := make([]float64, len(state))
	sum := 0.0
	for i, q := range state {
		sum += q
		cum[i] = sum
	}
	return cum
}

// identity returns the 4x4 identity transform (base frame).
func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// forwardKinematics computes the transform of joint frame `joint` (1..n).
// Rotation is about z only; the chain is planar.
func forwardKinematics(lengths, cum []float64, joint int) *mat.Dense {
	if joint == 0 {
		return identity()
	}

	var x, y float64
	for i := 0; i < joint; i++ {
		x += lengths[i] * math.Cos(cum[i])
		y += lengths[i] * math.Sin(cum[i])
	}

	c, s := math.Cos(cum[joint-1]), math.Sin(cum[joint-1])
	return mat.NewDense(4, 4, []float64{
		c, -s, 0, x,
		s, c, 0, y,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// jacobian computes the 6xn Jacobian of the frame at `limit`, treating
// lengths at index >= limit as zero. The column count stays n so every
// truncated Jacobian lives in the same joint space.
func jacobian(lengths, cum []float64, limit int) *mat.Dense {
	n := len(lengths)
	j := mat.NewDense(6, n, nil)

	for col := 0; col < n; col++ {
		var dx, dy float64
		for k := col; k < limit; k++ {
			dx -= lengths[k] * math.Sin(cum[k])
			dy += lengths[k] * math.Cos(cum[k])
		}
		j.Set(0, col, dx)
		j.Set(1, col, dy)
		j.Set(5, col, 1)
	}
	return j
}

// Translation extracts the planar (x, y) translation of a homogeneous transform.
func Translation(t mat.Matrix) r2.Vec {
	return r2.Vec{X: t.At(0, 3), Y: t.At(1, 3)}
}

// Heading extracts the rotation angle about z of a homogeneous transform.
func Heading(t mat.Matrix) float64 {
	return math.Atan2(t.At(1, 0), t.At(0, 0))
}

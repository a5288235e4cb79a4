// Package trajectory plans straight-line end-effector motions.
//
// Position follows a cubic whose velocity is the quadratic
//
//	v(t) = a·t² + b·t,  a = 6(start−end)/d³,  b = −a·d
//
// so the motion starts and stops at rest and lands exactly on end at t = d.
package trajectory

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidRequest is returned for a non-positive duration or period,
// non-finite inputs, or an endpoint with fewer than two coordinates.
var ErrInvalidRequest = errors.New("invalid trajectory request")

// Sample is one point of a planned profile.
type Sample struct {
	Index    int     `json:"index"`
	Time     float64 `json:"time"`
	Position r2.Vec  `json:"position"`
	Velocity r2.Vec  `json:"velocity"`
	Interval float64 `json:"interval"` // Spacing to the neighbouring sample, 0 when not sampled
}

// Profile is a sampled point-to-point motion.
type Profile struct {
	Start    r2.Vec
	End      r2.Vec
	Duration float64
	Period   float64 // Requested sample period
	Step     float64 // Actual spacing, Duration/steps (<= Period)
	Samples  []Sample

	a, b r2.Vec
}

// Plan samples a motion from start to end. Endpoints need at least two
// coordinates; anything past (x, y) is ignored because the chain is planar.
func Plan(start, end []float64, duration, period float64) (*Profile, error) {
	if len(start) < 2 {
		return nil, fmt.Errorf("%w: start has %d coordinates", ErrInvalidRequest, len(start))
	}
	if len(end) < 2 {
		return nil, fmt.Errorf("%w: end has %d coordinates", ErrInvalidRequest, len(end))
	}
	return PlanVec(r2.Vec{X: start[0], Y: start[1]}, r2.Vec{X: end[0], Y: end[1]}, duration, period)
}

// PlanVec is Plan for planar points.
func PlanVec(start, end r2.Vec, duration, period float64) (*Profile, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: duration %v must be positive", ErrInvalidRequest, duration)
	}
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, fmt.Errorf("%w: period %v must be positive", ErrInvalidRequest, period)
	}
	if !finite(start) || !finite(end) {
		return nil, fmt.Errorf("%w: endpoints must be finite", ErrInvalidRequest)
	}

	a := r2.Scale(6/(duration*duration*duration), r2.Sub(start, end))
	p := &Profile{
		Start:    start,
		End:      end,
		Duration: duration,
		Period:   period,
		a:        a,
		b:        r2.Scale(-duration, a),
	}

	// Tolerate period not dividing duration exactly due to rounding
	steps := int(math.Ceil(duration/period - 1e-9))
	if steps < 1 {
		steps = 1
	}
	p.Step = duration / float64(steps)

	p.Samples = make([]Sample, steps+1)
	for k := 0; k <= steps; k++ {
		t := float64(k) * p.Step
		if k == steps {
			t = duration
		}
		p.Samples[k] = p.at(k, t)
		p.Samples[k].Interval = p.Step
	}
	p.Samples[0].Position = start
	p.Samples[steps].Position = end

	return p, nil
}

// Evaluate returns the closed-form sample at time t, clamped to [0, Duration].
// The returned sample has Index -1.
func (p *Profile) Evaluate(t float64) Sample {
	if t < 0 {
		t = 0
	}
	if t > p.Duration {
		t = p.Duration
	}
	return p.at(-1, t)
}

func (p *Profile) at(index int, t float64) Sample {
	t2 := t * t
	t3 := t2 * t
	return Sample{
		Index:    index,
		Time:     t,
		Position: r2.Add(r2.Add(r2.Scale(t3/3, p.a), r2.Scale(t2/2, p.b)), p.Start),
		Velocity: r2.Add(r2.Scale(t2, p.a), r2.Scale(t, p.b)),
	}
}

// Len returns the number of samples.
func (p *Profile) Len() int {
	return len(p.Samples)
}

// Positions returns the sampled position profile.
func (p *Profile) Positions() []r2.Vec {
	out := make([]r2.Vec, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = s.Position
	}
	return out
}

// Velocities returns the sampled velocity profile.
func (p *Profile) Velocities() []r2.Vec {
	out := make([]r2.Vec, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = s.Velocity
	}
	return out
}

// Times returns the sample time stamps.
func (p *Profile) Times() []float64 {
	out := make([]float64, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = s.Time
	}
	return out
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

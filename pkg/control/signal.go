package control

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Differentiator turns a position stream into a velocity estimate at a
// fixed period.
type Differentiator struct {
	period float64
	last   r2.Vec
}

// NewDifferentiator creates a differentiator primed with an initial sample.
func NewDifferentiator(period float64, initial r2.Vec) *Differentiator {
	return &Differentiator{period: period, last: initial}
}

// Rate returns (sample − from)/period without updating state.
func (d *Differentiator) Rate(from, sample r2.Vec) r2.Vec {
	return d.RateOver(from, sample, d.period)
}

// RateOver is Rate over an explicit interval. A non-positive dt falls back
// to the period.
func (d *Differentiator) RateOver(from, sample r2.Vec, dt float64) r2.Vec {
	if !(dt > 0) {
		dt = d.period
	}
	return r2.Scale(1/dt, r2.Sub(sample, from))
}

// Differentiate returns (sample − last)/period and stores sample.
func (d *Differentiator) Differentiate(sample r2.Vec) r2.Vec {
	v := d.Rate(d.last, sample)
	d.last = sample
	return v
}

// Last returns the most recently stored sample.
func (d *Differentiator) Last() r2.Vec {
	return d.last
}

// Reset re-primes the differentiator.
func (d *Differentiator) Reset(sample r2.Vec) {
	d.last = sample
}

// Integrator accumulates joint velocities into joint angles at a fixed period.
type Integrator struct {
	period float64
	state  []float64
}

// NewIntegrator creates an integrator starting from initial angles.
func NewIntegrator(period float64, initial []float64) *Integrator {
	return &Integrator{period: period, state: clone(initial)}
}

// Next returns rate·period + state without updating state.
func (i *Integrator) Next(rate mat.Vector) []float64 {
	return i.NextOver(rate, i.period)
}

// NextOver is Next over an explicit interval. A non-positive dt falls back
// to the period.
func (i *Integrator) NextOver(rate mat.Vector, dt float64) []float64 {
	if !(dt > 0) {
		dt = i.period
	}
	out := make([]float64, len(i.state))
	for k := range i.state {
		out[k] = rate.AtVec(k)*dt + i.state[k]
	}
	return out
}

// Integrate advances the state by one period and returns a copy of it.
func (i *Integrator) Integrate(rate mat.Vector) []float64 {
	return i.IntegrateOver(rate, i.period)
}

// IntegrateOver advances the state by dt and returns a copy of it.
func (i *Integrator) IntegrateOver(rate mat.Vector, dt float64) []float64 {
	i.state = i.NextOver(rate, dt)
	return clone(i.state)
}

// State returns a copy of the accumulated angles.
func (i *Integrator) State() []float64 {
	return clone(i.state)
}

// Reset replaces the accumulated angles.
func (i *Integrator) Reset(state []float64) {
	i.state = clone(state)
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

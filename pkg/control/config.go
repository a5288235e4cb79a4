package control

import (
	"fmt"
	"math"
)

// Config holds the tunable parameters of the task-priority controller.
type Config struct {
	// Timing
	Period float64 // Control period in seconds (integration and differentiation step)

	// Task resolution
	Mode    Mode    // Control law, fixed at construction
	Damping float64 // Damped least-squares factor λ; 0 = exact pseudo-inverse

	// Obstacle avoidance
	AvoidanceGain   float64 // Gain on the summed repulsion gradients
	GradientEpsilon float64 // Gradients with a smaller norm contribute nothing
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Period:          0.01, // 100 Hz
		Mode:            ClosedLoop,
		Damping:         0,
		AvoidanceGain:   1.0,
		GradientEpsilon: 1e-9,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if !(c.Period > 0) || math.IsInf(c.Period, 0) {
		return fmt.Errorf("%w: period %v must be positive", ErrInvalidConfig, c.Period)
	}
	if c.Mode == nil {
		return fmt.Errorf("%w: mode is required", ErrInvalidConfig)
	}
	if c.Damping < 0 || math.IsNaN(c.Damping) {
		return fmt.Errorf("%w: damping %v must be >= 0", ErrInvalidConfig, c.Damping)
	}
	if c.AvoidanceGain < 0 || math.IsNaN(c.AvoidanceGain) {
		return fmt.Errorf("%w: avoidance gain %v must be >= 0", ErrInvalidConfig, c.AvoidanceGain)
	}
	if c.GradientEpsilon < 0 || math.IsNaN(c.GradientEpsilon) {
		return fmt.Errorf("%w: gradient epsilon %v must be >= 0", ErrInvalidConfig, c.GradientEpsilon)
	}
	return nil
}

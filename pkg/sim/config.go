package sim

import (
	"log/slog"
)

// Config holds simulation loop configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Drawing
	DrawStep int      // Draw every DrawStep samples; 0 draws only the last sample
	Draw     DrawFunc // Optional draw callback

	// Timing
	Realtime bool // Wait one control period between steps

	// Collaborators
	Obstacles ObstacleField // Optional obstacle provider, also fed input commands
	Input     InputSource   // Optional operator command stream
	Recorder  Recorder      // Optional sample logger

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the loop.
type Option func(*Config)

// WithDraw sets the draw callback and its cadence in samples.
func WithDraw(step int, draw DrawFunc) Option {
	return func(c *Config) {
		c.DrawStep = step
		c.Draw = draw
	}
}

// WithRealtime paces steps at the controller period.
func WithRealtime(realtime bool) Option {
	return func(c *Config) {
		c.Realtime = realtime
	}
}

// WithObstacles sets the obstacle provider.
func WithObstacles(field ObstacleField) Option {
	return func(c *Config) {
		c.Obstacles = field
	}
}

// WithInput sets the operator command stream.
func WithInput(input InputSource) Option {
	return func(c *Config) {
		c.Input = input
	}
}

// WithRecorder sets the sample logger.
func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		DrawStep: 10,
		Logger:   slog.Default(),
	}
}

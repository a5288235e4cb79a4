// Package config loads go-planar configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/sim"
)

// ErrInvalidConfig is returned when a configuration value is unusable.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Default server configuration.
const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the complete configuration of a planar run.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Arm       ArmConfig       `yaml:"arm"`
	Control   ControlConfig   `yaml:"control"`
	Sim       SimConfig       `yaml:"sim"`
	Obstacles ObstaclesConfig `yaml:"obstacles"`
	Moves     []MoveConfig    `yaml:"moves"`
	Input     []string        `yaml:"input"` // Scripted obstacle commands, one per step
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// ServerConfig configures the web surface.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ArmConfig describes the kinematic chain.
type ArmConfig struct {
	Lengths []float64 `yaml:"lengths"`
	Home    []float64 `yaml:"home"`
}

// ControlConfig mirrors control.Config in YAML form.
type ControlConfig struct {
	Period          float64 `yaml:"period"`
	Mode            string  `yaml:"mode"`
	Damping         float64 `yaml:"damping"`
	AvoidanceGain   float64 `yaml:"avoidance_gain"`
	GradientEpsilon float64 `yaml:"gradient_epsilon"`
}

// SimConfig configures the control loop.
type SimConfig struct {
	DrawStep int  `yaml:"draw_step"`
	Realtime bool `yaml:"realtime"`
}

// ObstaclesConfig holds the initial obstacle field.
type ObstaclesConfig struct {
	Step  float64          `yaml:"step"`
	Items []ObstacleConfig `yaml:"items"`
}

// ObstacleConfig is one obstacle.
type ObstacleConfig struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// MoveConfig is one scripted move.
type MoveConfig struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Duration float64 `yaml:"duration"`
}

// Default returns the reference setup: three unit links stretched along +x,
// a 10 Hz closed-loop controller with light damping and two obstacles.
func Default() *Config {
	ctrl := control.DefaultConfig()
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerConfig{Port: DefaultPort},
		Arm: ArmConfig{
			Lengths: []float64{1, 1, 1},
			Home:    []float64{0, 0, 0},
		},
		Control: ControlConfig{
			Period:          0.1,
			Mode:            ctrl.Mode.Name(),
			Damping:         0.05, // home is a stretched, singular pose
			AvoidanceGain:   ctrl.AvoidanceGain,
			GradientEpsilon: ctrl.GradientEpsilon,
		},
		Sim: SimConfig{DrawStep: sim.DefaultConfig().DrawStep},
		Obstacles: ObstaclesConfig{
			Step: 0.1,
			Items: []ObstacleConfig{
				{ID: "a", X: -3, Y: -3, Radius: 0.2},
				{ID: "b", X: 0, Y: 4, Radius: 0.2},
			},
		},
		Moves: []MoveConfig{{X: 2, Y: 1, Duration: 1}},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides values from PLANAR_LOG_LEVEL, PLANAR_LOG_FORMAT and
// PLANAR_PORT.
func (c *Config) ApplyEnv() {
	c.Log.Level = Env("PLANAR_LOG_LEVEL", c.Log.Level)
	c.Log.Format = Env("PLANAR_LOG_FORMAT", c.Log.Format)
	c.Server.Port = Env("PLANAR_PORT", c.Server.Port)
}

// Validate checks every section. Chain and obstacle checks are left to the
// constructors that consume them.
func (c *Config) Validate() error {
	if len(c.Arm.Lengths) == 0 {
		return fmt.Errorf("%w: arm needs at least one link", ErrInvalidConfig)
	}
	if len(c.Arm.Home) != len(c.Arm.Lengths) {
		return fmt.Errorf("%w: arm home has %d angles for %d links",
			ErrInvalidConfig, len(c.Arm.Home), len(c.Arm.Lengths))
	}
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port is required", ErrInvalidConfig)
	}
	if c.Sim.DrawStep < 0 {
		return fmt.Errorf("%w: draw step %d must be >= 0", ErrInvalidConfig, c.Sim.DrawStep)
	}
	if !(c.Obstacles.Step > 0) {
		return fmt.Errorf("%w: obstacle step %v must be positive", ErrInvalidConfig, c.Obstacles.Step)
	}
	for i, m := range c.Moves {
		if !(m.Duration > 0) {
			return fmt.Errorf("%w: move %d duration %v must be positive", ErrInvalidConfig, i, m.Duration)
		}
	}
	if _, err := c.ControlConfig(); err != nil {
		return err
	}
	return nil
}

// ControlConfig converts the control section.
func (c *Config) ControlConfig() (control.Config, error) {
	mode, err := control.ParseMode(c.Control.Mode)
	if err != nil {
		return control.Config{}, err
	}
	cfg := control.Config{
		Period:          c.Control.Period,
		Mode:            mode,
		Damping:         c.Control.Damping,
		AvoidanceGain:   c.Control.AvoidanceGain,
		GradientEpsilon: c.Control.GradientEpsilon,
	}
	return cfg, cfg.Validate()
}

// ObstacleList converts the obstacle section.
func (c *Config) ObstacleList() []obstacle.Obstacle {
	out := make([]obstacle.Obstacle, 0, len(c.Obstacles.Items))
	for _, o := range c.Obstacles.Items {
		out = append(out, obstacle.Obstacle{
			ID:     o.ID,
			Center: r2.Vec{X: o.X, Y: o.Y},
			Radius: o.Radius,
		})
	}
	return out
}

// Target returns the move's end point.
func (m MoveConfig) Target() r2.Vec {
	return r2.Vec{X: m.X, Y: m.Y}
}

// Env returns the named environment variable, or def if it is unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

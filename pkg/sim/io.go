package sim

import (
	"log/slog"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/obstacle"
)

// ObstacleField provides obstacles to the controller and accepts operator
// commands that move them. obstacle.Field implements it.
type ObstacleField interface {
	obstacle.Source
	Move(command string) error
}

// InputSource yields one operator command per control step.
// An empty string means no command.
type InputSource interface {
	Next() string
}

// Recorder receives named samples. Recording never fails the loop.
type Recorder interface {
	Record(name string, value any)
}

// DrawFunc renders one frame. It must not mutate the arm.
type DrawFunc func(Frame)

// Frame is a snapshot handed to the draw callback.
type Frame struct {
	RunID      string              `json:"run_id"`
	Index      int                 `json:"index"`
	Time       float64             `json:"time"`
	Final      bool                `json:"final"`
	Current    r2.Vec              `json:"current"` // End-effector after the step
	Desired    r2.Vec              `json:"desired"`
	Target     r2.Vec              `json:"target"`
	Links      []r2.Vec            `json:"links"` // Link frame origins, base first
	Angles     []float64           `json:"angles"`
	Obstacles  []obstacle.Obstacle `json:"obstacles,omitempty"`
	Repulsions []control.Repulsion `json:"repulsions,omitempty"`
}

// ChanInput is a buffered command queue fed by other goroutines,
// typically the web surface.
type ChanInput struct {
	ch chan string
}

// NewChanInput creates a queue holding up to size pending commands.
func NewChanInput(size int) *ChanInput {
	if size < 1 {
		size = 1
	}
	return &ChanInput{ch: make(chan string, size)}
}

// Push queues a command. Returns false if the queue is full.
func (in *ChanInput) Push(command string) bool {
	select {
	case in.ch <- command:
		return true
	default:
		return false
	}
}

// Next returns the oldest pending command, or "" without blocking.
func (in *ChanInput) Next() string {
	select {
	case cmd := <-in.ch:
		return cmd
	default:
		return ""
	}
}

// Pending returns the number of queued commands.
func (in *ChanInput) Pending() int {
	return len(in.ch)
}

// ScriptInput replays a fixed command list, one per step, then goes quiet.
type ScriptInput struct {
	mu       sync.Mutex
	commands []string
	pos      int
}

// NewScriptInput creates a scripted command source.
func NewScriptInput(commands ...string) *ScriptInput {
	return &ScriptInput{commands: append([]string(nil), commands...)}
}

// Next returns the next scripted command, or "" once exhausted.
func (in *ScriptInput) Next() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.pos >= len(in.commands) {
		return ""
	}
	cmd := in.commands[in.pos]
	in.pos++
	return cmd
}

// Rewind restarts the script.
func (in *ScriptInput) Rewind() {
	in.mu.Lock()
	in.pos = 0
	in.mu.Unlock()
}

// MemoryRecorder keeps every recorded sample in memory.
type MemoryRecorder struct {
	mu      sync.RWMutex
	samples map[string][]any
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{samples: make(map[string][]any)}
}

// Record appends value to the named series.
func (r *MemoryRecorder) Record(name string, value any) {
	r.mu.Lock()
	r.samples[name] = append(r.samples[name], value)
	r.mu.Unlock()
}

// Values returns a copy of the named series.
func (r *MemoryRecorder) Values(name string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]any(nil), r.samples[name]...)
}

// Floats returns the named series as float64 values, skipping others.
func (r *MemoryRecorder) Floats(name string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]float64, 0, len(r.samples[name]))
	for _, v := range r.samples[name] {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the recorded series names, sorted.
func (r *MemoryRecorder) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.samples))
	for name := range r.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops every series.
func (r *MemoryRecorder) Clear() {
	r.mu.Lock()
	r.samples = make(map[string][]any)
	r.mu.Unlock()
}

// LogRecorder writes samples to a structured logger at debug level.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder backed by logger (slog.Default if nil).
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs one sample.
func (r *LogRecorder) Record(name string, value any) {
	r.logger.Debug("sample", "name", name, "value", value)
}

// MultiRecorder fans samples out to several recorders.
type MultiRecorder []Recorder

// Record forwards to every recorder.
func (m MultiRecorder) Record(name string, value any) {
	for _, r := range m {
		r.Record(name, value)
	}
}

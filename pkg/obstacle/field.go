// Package obstacle keeps the set of circular obstacles the arm steers
// around, and moves them in response to operator commands.
package obstacle

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrInvalidCommand is returned when a move command cannot be parsed.
	ErrInvalidCommand = errors.New("invalid obstacle command")

	// ErrNotFound is returned for an unknown obstacle id.
	ErrNotFound = errors.New("obstacle not found")

	// ErrInvalidObstacle is returned for an empty id or a non-positive radius.
	ErrInvalidObstacle = errors.New("invalid obstacle")
)

// Obstacle is a circular region of influence.
type Obstacle struct {
	ID     string  `json:"id"`
	Center r2.Vec  `json:"center"`
	Radius float64 `json:"radius"`
}

// Validate checks the id and radius.
func (o Obstacle) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidObstacle)
	}
	if !(o.Radius > 0) || math.IsInf(o.Radius, 0) {
		return fmt.Errorf("%w: %s has radius %v", ErrInvalidObstacle, o.ID, o.Radius)
	}
	if math.IsNaN(o.Center.X) || math.IsNaN(o.Center.Y) {
		return fmt.Errorf("%w: %s has no center", ErrInvalidObstacle, o.ID)
	}
	return nil
}

// Source exposes a read-only snapshot of obstacles.
type Source interface {
	Obstacles() []Obstacle
}

// Directions accepted by Move, with their single-key aliases.
var directions = map[string]r2.Vec{
	"up":    {X: 0, Y: 1},
	"w":     {X: 0, Y: 1},
	"down":  {X: 0, Y: -1},
	"s":     {X: 0, Y: -1},
	"left":  {X: -1, Y: 0},
	"a":     {X: -1, Y: 0},
	"right": {X: 1, Y: 0},
	"d":     {X: 1, Y: 0},
}

// Field holds obstacles keyed by id. Safe for concurrent use.
type Field struct {
	mu        sync.RWMutex
	obstacles map[string]Obstacle
	selected  string  // Target of unprefixed commands
	step      float64 // Distance moved per command
}

// NewField creates a field that moves obstacles by step per command.
// The first obstacle is selected.
func NewField(step float64, obstacles ...Obstacle) (*Field, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("%w: step %v must be positive", ErrInvalidObstacle, step)
	}

	f := &Field{
		obstacles: make(map[string]Obstacle),
		step:      step,
	}
	for _, o := range obstacles {
		if err := f.Add(o); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Add inserts or replaces an obstacle. The first one added becomes selected.
func (f *Field) Add(o Obstacle) error {
	if err := o.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.obstacles[o.ID] = o
	if f.selected == "" {
		f.selected = o.ID
	}
	return nil
}

// Remove deletes an obstacle.
func (f *Field) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.obstacles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(f.obstacles, id)
	if f.selected == id {
		f.selected = ""
		if ids := f.sortedIDs(); len(ids) > 0 {
			f.selected = ids[0]
		}
	}
	return nil
}

// Select makes id the target of unprefixed commands.
func (f *Field) Select(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.obstacles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f.selected = id
	return nil
}

// Selected returns the id targeted by unprefixed commands.
func (f *Field) Selected() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selected
}

// Get returns a single obstacle.
func (f *Field) Get(id string) (Obstacle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.obstacles[id]
	return o, ok
}

// Obstacles returns all obstacles ordered by id.
func (f *Field) Obstacles() []Obstacle {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Obstacle, 0, len(f.obstacles))
	for _, id := range f.sortedIDs() {
		out = append(out, f.obstacles[id])
	}
	return out
}

// Move applies one operator command.
//
//	""  or "stay"          no-op
//	"up" | "w", ...        move the selected obstacle by one step
//	"<id>:<direction>"     move obstacle id by one step
func (f *Field) Move(command string) error {
	cmd := strings.TrimSpace(command)
	if cmd == "" || strings.EqualFold(cmd, "stay") {
		return nil
	}

	id := ""
	if i := strings.IndexByte(cmd, ':'); i >= 0 {
		id, cmd = strings.TrimSpace(cmd[:i]), strings.TrimSpace(cmd[i+1:])
		if id == "" {
			return fmt.Errorf("%w: %q has an empty id", ErrInvalidCommand, command)
		}
	}

	dir, ok := directions[strings.ToLower(cmd)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if id == "" {
		id = f.selected
	}
	o, ok := f.obstacles[id]
	if !ok {
		return fmt.Errorf("%w: %q targets unknown obstacle %q", ErrInvalidCommand, command, id)
	}
	o.Center = r2.Add(o.Center, r2.Scale(f.step, dir))
	f.obstacles[id] = o
	return nil
}

// sortedIDs must be called with mu held.
func (f *Field) sortedIDs() []string {
	ids := make([]string, 0, len(f.obstacles))
	for id := range f.obstacles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

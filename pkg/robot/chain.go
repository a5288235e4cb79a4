package robot

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// CacheKind identifies which memoized computation ran.
type CacheKind int

const (
	// ForwardKinematicsCache holds joint transforms keyed by joint index.
	ForwardKinematicsCache CacheKind = iota
	// JacobianCache holds Jacobians keyed by truncation index (Full for the whole chain).
	JacobianCache
)

// String returns the cache name (for logging).
func (k CacheKind) String() string {
	switch k {
	case ForwardKinematicsCache:
		return "fk"
	case JacobianCache:
		return "jacobian"
	default:
		return "unknown"
	}
}

// Chain is a serial planar manipulator with n revolute joints.
// Forward kinematics and Jacobians are memoized for the current state; every
// Move or Reset empties both caches.
type Chain struct {
	lengths []float64 // Link lengths, immutable
	home    []float64 // Canonical reset configuration

	mu      sync.Mutex
	state   []float64   // Current joint angles (radians)
	history [][]float64 // Every state held since the last reset, home first

	fkCache map[int]*mat.Dense // joint index -> transform
	jCache  map[int]*mat.Dense // limit index -> Jacobian

	onCompute func(kind CacheKind, key int)
}

// NewChain creates a chain from link lengths and home joint angles.
// The chain starts at home.
func NewChain(lengths, home []float64) (*Chain, error) {
	n := len(lengths)
	if n == 0 {
		return nil, fmt.Errorf("%w: at least one link is required", ErrInvalidChain)
	}
	if len(home) != n {
		return nil, fmt.Errorf("%w: %d link lengths but %d home angles", ErrInvalidChain, n, len(home))
	}
	for i, l := range lengths {
		if !(l > 0) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("%w: link %d has length %v", ErrInvalidChain, i, l)
		}
	}
	for i, q := range home {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, fmt.Errorf("%w: home angle %d is %v", ErrInvalidChain, i, q)
		}
	}

	c := &Chain{
		lengths: clone(lengths),
		home:    clone(home),
	}
	c.resetLocked()
	return c, nil
}

// OnCompute sets a callback invoked once per fresh (uncached) forward
// kinematics or Jacobian computation on the live state.
func (c *Chain) OnCompute(callback func(kind CacheKind, key int)) {
	c.mu.Lock()
	c.onCompute = callback
	c.mu.Unlock()
}

// Joints returns the number of joints n.
func (c *Chain) Joints() int {
	return len(c.lengths)
}

// Lengths returns a copy of the link lengths.
func (c *Chain) Lengths() []float64 {
	return clone(c.lengths)
}

// Reach returns the sum of link lengths.
func (c *Chain) Reach() float64 {
	sum := 0.0
	for _, l := range c.lengths {
		sum += l
	}
	return sum
}

// Home returns a copy of the home configuration.
func (c *Chain) Home() []float64 {
	return clone(c.home)
}

// State returns a copy of the current joint angles.
func (c *Chain) State() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.state)
}

// History returns a copy of every state held since the last reset, home first
// and the current state last.
func (c *Chain) History() [][]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]float64, len(c.history))
	for i, s := range c.history {
		out[i] = clone(s)
	}
	return out
}

// Move replaces the joint state and invalidates both caches.
func (c *Chain) Move(state []float64) error {
	if err := c.checkState(state); err != nil {
		return err
	}

	next := clone(state)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = next
	c.history = append(c.history, next)
	c.fkCache = make(map[int]*mat.Dense)
	c.jCache = make(map[int]*mat.Dense)
	return nil
}

// Reset restores the home configuration, truncates history to the home entry
// and clears both caches.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Chain) resetLocked() {
	c.state = clone(c.home)
	c.history = [][]float64{c.state}
	c.fkCache = make(map[int]*mat.Dense)
	c.jCache = make(map[int]*mat.Dense)
}

// ForwardKinematics returns the transform of joint frame `joint` for the
// current state. 0 is the base frame (identity); n or Full is the
// end-effector.
func (c *Chain) ForwardKinematics(joint int) (*mat.Dense, error) {
	key, err := c.resolveJoint(joint)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.fkCache[key]; ok {
		return mat.DenseCopyOf(t), nil
	}

	t := forwardKinematics(c.lengths, cumulative(c.state), key)
	c.fkCache[key] = t
	if c.onCompute != nil {
		c.onCompute(ForwardKinematicsCache, key)
	}
	return mat.DenseCopyOf(t), nil
}

// Jacobian returns the 6xn Jacobian of the frame at `limit` for the current
// state. Full (or n) selects the end-effector; a smaller limit truncates the
// chain there while keeping n columns.
func (c *Chain) Jacobian(limit int) (*mat.Dense, error) {
	key, err := c.resolveLimit(limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if j, ok := c.jCache[key]; ok {
		return mat.DenseCopyOf(j), nil
	}

	j := jacobian(c.lengths, cumulative(c.state), c.limitIndex(key))
	c.jCache[key] = j
	if c.onCompute != nil {
		c.onCompute(JacobianCache, key)
	}
	return mat.DenseCopyOf(j), nil
}

// PoseAt returns the transform of joint frame `joint` for an explicit state.
// The live state and the caches are left untouched.
func (c *Chain) PoseAt(state []float64, joint int) (*mat.Dense, error) {
	if err := c.checkState(state); err != nil {
		return nil, err
	}
	key, err := c.resolveJoint(joint)
	if err != nil {
		return nil, err
	}
	return forwardKinematics(c.lengths, cumulative(state), key), nil
}

// JacobianAt returns the Jacobian of the frame at `limit` for an explicit
// state without touching the live state or the caches.
func (c *Chain) JacobianAt(state []float64, limit int) (*mat.Dense, error) {
	if err := c.checkState(state); err != nil {
		return nil, err
	}
	key, err := c.resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	return jacobian(c.lengths, cumulative(state), c.limitIndex(key)), nil
}

func (c *Chain) checkState(state []float64) error {
	if len(state) != len(c.lengths) {
		return fmt.Errorf("%w: got %d angles, chain has %d joints", ErrDimensionMismatch, len(state), len(c.lengths))
	}
	for i, q := range state {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return fmt.Errorf("%w: angle %d is %v", ErrInvalidState, i, q)
		}
	}
	return nil
}

// resolveJoint maps Full to n and rejects anything outside [0, n].
func (c *Chain) resolveJoint(joint int) (int, error) {
	n := len(c.lengths)
	if joint == Full {
		return n, nil
	}
	if joint < 0 || joint > n {
		return 0, fmt.Errorf("%w: joint %d not in [0, %d]", ErrOutOfBounds, joint, n)
	}
	return joint, nil
}

// resolveLimit maps n to Full so both spellings share a cache entry.
func (c *Chain) resolveLimit(limit int) (int, error) {
	n := len(c.lengths)
	if limit == Full || limit == n {
		return Full, nil
	}
	if limit < 0 || limit > n {
		return 0, fmt.Errorf("%w: truncation %d not in [0, %d]", ErrOutOfBounds, limit, n)
	}
	return limit, nil
}

func (c *Chain) limitIndex(key int) int {
	if key == Full {
		return len(c.lengths)
	}
	return key
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

package obstacle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func newField(t *testing.T) *Field {
	t.Helper()
	f, err := NewField(0.1,
		Obstacle{ID: "b", Center: r2.Vec{X: 1, Y: 1}, Radius: 0.2},
		Obstacle{ID: "a", Center: r2.Vec{X: -1, Y: 2}, Radius: 0.3},
	)
	require.NoError(t, err)
	return f
}

func TestNewField_Validation(t *testing.T) {
	_, err := NewField(0)
	assert.ErrorIs(t, err, ErrInvalidObstacle)

	_, err = NewField(0.1, Obstacle{ID: "x", Radius: 0})
	assert.ErrorIs(t, err, ErrInvalidObstacle)

	_, err = NewField(0.1, Obstacle{Radius: 1})
	assert.ErrorIs(t, err, ErrInvalidObstacle)
}

func TestField_ObstaclesSortedByID(t *testing.T) {
	f := newField(t)

	obs := f.Obstacles()
	require.Len(t, obs, 2)
	assert.Equal(t, "a", obs[0].ID)
	assert.Equal(t, "b", obs[1].ID)

	// First added is selected
	assert.Equal(t, "b", f.Selected())
}

func TestField_MoveSelected(t *testing.T) {
	f := newField(t)

	require.NoError(t, f.Move("up"))
	require.NoError(t, f.Move("d"))

	o, ok := f.Get("b")
	require.True(t, ok)
	assert.InDelta(t, 1.1, o.Center.X, 1e-12)
	assert.InDelta(t, 1.1, o.Center.Y, 1e-12)
}

func TestField_MoveByID(t *testing.T) {
	f := newField(t)

	require.NoError(t, f.Move("a:LEFT"))
	o, _ := f.Get("a")
	assert.InDelta(t, -1.1, o.Center.X, 1e-12)

	untouched, _ := f.Get("b")
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, untouched.Center)
}

func TestField_NoOpCommands(t *testing.T) {
	f := newField(t)
	before := f.Obstacles()

	require.NoError(t, f.Move(""))
	require.NoError(t, f.Move("  "))
	require.NoError(t, f.Move("stay"))

	assert.Equal(t, before, f.Obstacles())
}

func TestField_InvalidCommands(t *testing.T) {
	f := newField(t)

	for _, cmd := range []string{"jump", "a:", ":up", "zz:up", "up up"} {
		err := f.Move(cmd)
		assert.ErrorIs(t, err, ErrInvalidCommand, "command %q", cmd)
	}
}

func TestField_RemoveAndSelect(t *testing.T) {
	f := newField(t)

	require.NoError(t, f.Select("a"))
	assert.Equal(t, "a", f.Selected())

	require.NoError(t, f.Remove("a"))
	assert.Equal(t, "b", f.Selected())

	assert.ErrorIs(t, f.Remove("a"), ErrNotFound)
	assert.ErrorIs(t, f.Select("a"), ErrNotFound)

	require.NoError(t, f.Remove("b"))
	assert.Empty(t, f.Obstacles())
	assert.ErrorIs(t, f.Move("up"), ErrInvalidCommand)
}

func TestField_ConcurrentAccess(t *testing.T) {
	f := newField(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = f.Move("up")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = f.Obstacles()
			}
		}()
	}
	wg.Wait()

	o, _ := f.Get("b")
	assert.InDelta(t, 1+800*0.1, o.Center.Y, 1e-6)
}

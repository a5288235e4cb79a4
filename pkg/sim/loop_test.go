package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-planar/pkg/control"
	"github.com/teslashibe/go-planar/pkg/obstacle"
	"github.com/teslashibe/go-planar/pkg/robot"
)

type fixture struct {
	arm   *robot.Chain
	ctrl  *control.Controller
	field *obstacle.Field
}

// newFixture builds the reference setup: three unit links stretched along
// +x, two obstacles far from the workspace path.
func newFixture(t *testing.T, period, damping float64) *fixture {
	t.Helper()

	arm, err := robot.NewChain([]float64{1, 1, 1}, []float64{0, 0, 0})
	require.NoError(t, err)

	field, err := obstacle.NewField(0.5,
		obstacle.Obstacle{ID: "a", Center: r2.Vec{X: -3, Y: -3}, Radius: 0.2},
		obstacle.Obstacle{ID: "b", Center: r2.Vec{X: 0, Y: 4}, Radius: 0.2},
	)
	require.NoError(t, err)

	cfg := control.DefaultConfig()
	cfg.Period = period
	cfg.Damping = damping
	ctrl, err := control.NewController(arm, field, cfg)
	require.NoError(t, err)

	return &fixture{arm: arm, ctrl: ctrl, field: field}
}

func TestMove_ReachesTarget(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	rec := NewMemoryRecorder()
	loop := NewLoop(f.arm, f.ctrl, WithObstacles(f.field), WithRecorder(rec))

	target := r2.Vec{X: 2, Y: 1}
	res, err := loop.Move(context.Background(), target, 1)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 11, res.Steps())
	assert.InDelta(t, 2, res.Final.X, 1e-2)
	assert.InDelta(t, 1, res.Final.Y, 1e-2)
	assert.Less(t, res.Error, 1e-2)

	// Every applied state is in the history, after home
	history := f.arm.History()
	require.Len(t, history, 12)
	assert.Equal(t, []float64{0, 0, 0}, history[0])
	assert.Equal(t, res.States[10], history[11])
	assert.Equal(t, res.States[10], f.arm.State())

	// Far obstacles leave the secondary task idle
	secondary := rec.Floats("secondary")
	require.Len(t, secondary, 11)
	for i, s := range secondary {
		assert.InDelta(t, 0, s, 1e-9, "step %d", i)
	}
	assert.Len(t, rec.Floats("error"), 11)
	assert.Len(t, rec.Floats("min_dist"), 11)
	assert.Len(t, rec.Values("state"), 11)
}

func TestMove_DrawCadence(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)

	var frames []Frame
	loop := NewLoop(f.arm, f.ctrl, WithObstacles(f.field), WithDraw(4, func(fr Frame) {
		frames = append(frames, fr)
	}))

	res, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)

	require.Len(t, frames, 4)
	indexes := []int{frames[0].Index, frames[1].Index, frames[2].Index, frames[3].Index}
	assert.Equal(t, []int{0, 4, 8, 10}, indexes)

	lastFrame := frames[3]
	assert.True(t, lastFrame.Final)
	assert.False(t, frames[0].Final)
	assert.Equal(t, res.RunID, lastFrame.RunID)
	assert.Equal(t, r2.Vec{X: 2, Y: 1}, lastFrame.Target)
	assert.Len(t, lastFrame.Obstacles, 2)

	require.Len(t, lastFrame.Links, 4)
	assert.Equal(t, r2.Vec{}, lastFrame.Links[0])
	assert.InDelta(t, lastFrame.Current.X, lastFrame.Links[3].X, 1e-12)
	assert.InDelta(t, lastFrame.Current.Y, lastFrame.Links[3].Y, 1e-12)
}

func TestMove_DrawSeesAppliedState(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)

	calls := 0
	loop := NewLoop(f.arm, f.ctrl, WithDraw(1, func(fr Frame) {
		calls++
		assert.Equal(t, fr.Angles, f.arm.State())
		assert.Len(t, f.arm.History(), fr.Index+2)
	}))

	_, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 11, calls)
}

func TestMove_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	loop := NewLoop(f.arm, f.ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := loop.Move(ctx, r2.Vec{X: 2, Y: 1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Steps())
	assert.Equal(t, []float64{0, 0, 0}, f.arm.State())
}

func TestMove_CancelledMidway(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(f.arm, f.ctrl, WithDraw(1, func(fr Frame) {
		if fr.Index == 4 {
			cancel()
		}
	}))

	res, err := loop.Move(ctx, r2.Vec{X: 2, Y: 1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, res.Steps())
	assert.Equal(t, res.States[4], f.arm.State())
}

func TestMove_InputMovesObstacle(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	require.NoError(t, f.field.Select("b"))

	loop := NewLoop(f.arm, f.ctrl,
		WithObstacles(f.field),
		WithInput(NewScriptInput("up", "", "stay", "a:left")),
	)

	_, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)

	b, ok := f.field.Get("b")
	require.True(t, ok)
	assert.InDelta(t, 4.5, b.Center.Y, 1e-12)

	a, ok := f.field.Get("a")
	require.True(t, ok)
	assert.InDelta(t, -3.5, a.Center.X, 1e-12)
}

func TestMove_InvalidInputAborts(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	loop := NewLoop(f.arm, f.ctrl,
		WithObstacles(f.field),
		WithInput(NewScriptInput("", "", "jump")),
	)

	res, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	assert.ErrorIs(t, err, obstacle.ErrInvalidCommand)
	assert.Equal(t, 2, res.Steps())
	assert.Len(t, f.arm.History(), 3)
}

func TestMove_SingularStartAborts(t *testing.T) {
	f := newFixture(t, 0.1, 0) // undamped at a stretched pose
	loop := NewLoop(f.arm, f.ctrl, WithObstacles(f.field))

	res, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	assert.ErrorIs(t, err, control.ErrSingularConfiguration)
	assert.Zero(t, res.Steps())
	assert.Equal(t, []float64{0, 0, 0}, f.arm.State())
	assert.Len(t, f.arm.History(), 1)
}

func TestMove_InvalidRequest(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	loop := NewLoop(f.arm, f.ctrl)

	res, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 0)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestMove_Realtime(t *testing.T) {
	f := newFixture(t, 0.01, 0.05)
	loop := NewLoop(f.arm, f.ctrl, WithRealtime(true))

	start := time.Now()
	res, err := loop.Move(context.Background(), r2.Vec{X: 2.9, Y: 0.3}, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Steps())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestReset(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	loop := NewLoop(f.arm, f.ctrl)

	_, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)

	require.NoError(t, loop.Reset())
	assert.Equal(t, []float64{0, 0, 0}, f.arm.State())
	assert.Equal(t, [][]float64{{0, 0, 0}}, f.arm.History())
	assert.Equal(t, []float64{0, 0, 0}, f.ctrl.IntegratorState())
	assert.InDelta(t, 3, f.ctrl.DifferentiatorState().X, 1e-12)

	// A second run from home behaves like the first
	res, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)
	assert.Less(t, res.Error, 1e-2)
}

func TestMove_ConsecutiveMoves(t *testing.T) {
	f := newFixture(t, 0.1, 0.05)
	loop := NewLoop(f.arm, f.ctrl)

	_, err := loop.Move(context.Background(), r2.Vec{X: 2, Y: 1}, 1)
	require.NoError(t, err)

	// Second move plans from wherever the first one ended
	res, err := loop.Move(context.Background(), r2.Vec{X: 1.5, Y: 1.5}, 1)
	require.NoError(t, err)
	assert.Less(t, res.Error, 1e-2)
	assert.Len(t, f.arm.History(), 23)
}

func TestMove_OpenLoopPeriodNotDividingDuration(t *testing.T) {
	run := func(period float64) *Result {
		arm, err := robot.NewChain([]float64{1, 1, 1}, []float64{0.3, 0.6, 0.4})
		require.NoError(t, err)
		cfg := control.DefaultConfig()
		cfg.Mode = control.OpenLoop
		cfg.Period = period
		ctrl, err := control.NewController(arm, nil, cfg)
		require.NoError(t, err)

		res, err := NewLoop(arm, ctrl).Move(context.Background(), r2.Vec{X: 1.5, Y: 1.5}, 1)
		require.NoError(t, err)
		return res
	}

	// T=0.3 samples every 0.25s, the same grid as T=0.25
	uneven := run(0.3)
	even := run(0.25)
	assert.Equal(t, 5, uneven.Steps())
	assert.Equal(t, 5, even.Steps())
	assert.InDelta(t, even.Error, uneven.Error, 1e-9)
	assert.InDelta(t, even.Final.X, uneven.Final.X, 1e-9)
	assert.InDelta(t, even.Final.Y, uneven.Final.Y, 1e-9)

	// Open loop only drifts by the Riemann error of the coarse grid
	assert.Less(t, uneven.Error, 0.05)
	assert.Less(t, run(0.1).Error, 0.02)
}

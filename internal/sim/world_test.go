package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	radar "github.com/Woonters/better-kartoffel-radar"
)

func TestScanShapeAndCenter(t *testing.T) {
	t.Parallel()
	w := NewWorld(1, 40, 40, nil)

	res, err := w.Scan(context.Background(), radar.Size5)
	require.NoError(t, err)

	require.Len(t, res.Cells, 5)
	for _, row := range res.Cells {
		assert.Len(t, row, 5)
	}
	assert.Equal(t, TileAgent, res.Cells[2][2], "agent sees itself at the center")
}

func TestSameSeedSameWorld(t *testing.T) {
	t.Parallel()
	a := NewWorld(7, 30, 30, nil)
	b := NewWorld(7, 30, 30, nil)

	resA, err := a.Scan(context.Background(), radar.Size9)
	require.NoError(t, err)
	resB, err := b.Scan(context.Background(), radar.Size9)
	require.NoError(t, err)

	assert.Equal(t, resA.Cells, resB.Cells)
	assert.Equal(t, resA.Cooldown, resB.Cooldown)
}

func TestCooldownWithinJitterBounds(t *testing.T) {
	t.Parallel()
	w := NewWorld(3, 20, 20, nil)

	for i := 0; i < 20; i++ {
		res, err := w.Scan(context.Background(), radar.Size3)
		require.NoError(t, err)
		// 10s base with +-10% jitter.
		assert.GreaterOrEqual(t, res.Cooldown, 9*time.Second)
		assert.LessOrEqual(t, res.Cooldown, 11*time.Second)
	}
}

func TestScanBeyondBoundaryReadsVoid(t *testing.T) {
	t.Parallel()
	w := NewWorld(5, 20, 20, nil)
	// Push the agent into the top-left corner so part of the scan square
	// falls outside the world.
	w.MoveAgent(-100, -100)

	res, err := w.Scan(context.Background(), radar.Size5)
	require.NoError(t, err)
	assert.Equal(t, TileVoid, res.Cells[0][0], "cells beyond the world edge read as void")
}

func TestMoveAgentClampsAndReportsDelta(t *testing.T) {
	t.Parallel()
	w := NewWorld(2, 10, 10, nil)

	dx, dy := w.MoveAgent(2, -1)
	assert.Equal(t, 2, dx)
	assert.Equal(t, -1, dy)

	dx, dy = w.MoveAgent(100, 100)
	x, y := w.AgentPosition()
	assert.Equal(t, 9, x)
	assert.Equal(t, 9, y)
	assert.Less(t, dx, 100, "movement clamps at the boundary")
	assert.Less(t, dy, 100)
}

func TestScanRejectsBadSizeAndCancelledContext(t *testing.T) {
	t.Parallel()
	w := NewWorld(4, 20, 20, nil)

	_, err := w.Scan(context.Background(), radar.Size(6))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Scan(ctx, radar.Size3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlakyScannerCadence(t *testing.T) {
	t.Parallel()
	f := &FlakyScanner{Inner: NewWorld(9, 20, 20, nil), EveryN: 3}

	var errs int
	for i := 0; i < 9; i++ {
		if _, err := f.Scan(context.Background(), radar.Size3); err != nil {
			assert.ErrorIs(t, err, ErrFlaky)
			errs++
		}
	}
	assert.Equal(t, 3, errs)
}

// End-to-end: the controller wired to the sim world behaves like the real
// thing, cooldown gate included.
func TestControllerAgainstSimWorld(t *testing.T) {
	t.Parallel()
	w := NewWorld(11, 40, 40, nil)
	c, err := radar.New(radar.Config[rune]{
		Scanner: w,
		Logf:    func(string, ...interface{}) {},
	})
	require.NoError(t, err)

	outcome, err := c.Scan(context.Background(), radar.Size5)
	require.NoError(t, err)
	assert.Equal(t, 25, outcome.CellsMerged)

	v, _, ok := c.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, TileAgent, v)

	_, err = c.Scan(context.Background(), radar.Size3)
	var cdErr *radar.CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Greater(t, cdErr.RetryAfter, time.Duration(0))
}

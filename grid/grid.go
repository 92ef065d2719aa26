// Package grid implements a sparse, staleness-aware store of radar cell
// observations.
//
// Keys are agent-relative offsets captured at scan time: (0,0) is the agent,
// (-1,0) one cell to its left at the moment the producing scan fired. Offsets
// are not world coordinates; if the agent moves between scans the stored keys
// drift out of frame. Callers that track agent movement should re-anchor the
// store with Shift, or drop it with Reset (see the package-level notes on
// the radar controller).
package grid

import (
	"sync"
	"time"
)

// Offset is an agent-relative cell coordinate. DX grows rightward, DY grows
// downward, matching the row/column order of raw scan arrays.
type Offset struct {
	DX int
	DY int
}

// Cell is the most recent observation of a single offset: the opaque scanned
// value and the merge time of the scan that produced it. ObservedAt is always
// a merge time, never a query time.
type Cell[V any] struct {
	Value      V
	ObservedAt time.Time
}

// Observation pairs an offset with its stored cell, for snapshots.
type Observation[V any] struct {
	Offset     Offset
	Value      V
	ObservedAt time.Time
}

// Grid is a mutex-guarded sparse map from offset to last observation.
// Reads take the read lock and run concurrently; the write lock is held only
// for the duration of a merge pass, a shift, or a reset.
//
// There is no eviction: staleness is communicated through ObservedAt, not by
// removing records.
type Grid[V any] struct {
	mu    sync.RWMutex
	cells map[Offset]Cell[V]
}

// New returns an empty grid.
func New[V any]() *Grid[V] {
	return &Grid[V]{cells: make(map[Offset]Cell[V])}
}

// Get returns the stored cell for off, or false if the offset has never been
// observed.
func (g *Grid[V]) Get(off Offset) (Cell[V], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.cells[off]
	return c, ok
}

// Merge stores value at off with the given observation time, unless an
// existing record carries an equal or newer timestamp, in which case the call
// is a no-op. Ties keep the existing record so duplicate delivery is
// idempotent; older timestamps never downgrade a cell, which protects against
// out-of-order completion of concurrently issued scans.
//
// Merge reports whether the record was stored.
func (g *Grid[V]) Merge(off Offset, value V, observedAt time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mergeLocked(off, value, observedAt)
}

func (g *Grid[V]) mergeLocked(off Offset, value V, observedAt time.Time) bool {
	if existing, ok := g.cells[off]; ok && !existing.ObservedAt.Before(observedAt) {
		return false
	}
	g.cells[off] = Cell[V]{Value: value, ObservedAt: observedAt}
	return true
}

// MergeSquare merges a whole square scan result, anchored so the center cell
// of the array lands on offset (0,0). Rows index DY, columns DX. The write
// lock is taken once for the whole pass so a concurrent reader never sees a
// half-merged scan. Returns the number of cells stored.
func (g *Grid[V]) MergeSquare(cells [][]V, observedAt time.Time) int {
	r := len(cells) / 2

	g.mu.Lock()
	defer g.mu.Unlock()

	merged := 0
	for y, row := range cells {
		for x, v := range row {
			off := Offset{DX: x - r, DY: y - r}
			if g.mergeLocked(off, v, observedAt) {
				merged++
			}
		}
	}
	return merged
}

// Len returns the number of observed cells.
func (g *Grid[V]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Shift re-keys every stored record by (dx, dy). Use it to re-anchor the
// store after the agent moves: an agent that moved one cell right should
// shift by (-1, 0) so old observations stay aligned with the new frame.
func (g *Grid[V]) Shift(dx, dy int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	shifted := make(map[Offset]Cell[V], len(g.cells))
	for off, c := range g.cells {
		shifted[Offset{DX: off.DX + dx, DY: off.DY + dy}] = c
	}
	g.cells = shifted
}

// Reset drops every stored record.
func (g *Grid[V]) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[Offset]Cell[V])
}

// Snapshot returns a copy of all stored observations, in no particular order.
func (g *Grid[V]) Snapshot() []Observation[V] {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Observation[V], 0, len(g.cells))
	for off, c := range g.cells {
		out = append(out, Observation[V]{Offset: off, Value: c.Value, ObservedAt: c.ObservedAt})
	}
	return out
}

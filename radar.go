// Package radar keeps a freshness-tracked picture of the agent's
// surroundings across scans of different sizes.
//
// The host game's raw scans are awkward to consume directly: a 3x3 read and a
// 9x9 read taken moments apart disagree about the same cells, and each scan
// only covers its own square. The controller merges every scan into one
// sparse grid keyed by agent-relative offset, keeping for each cell whichever
// scan most recently covered it along with the time it was observed. Callers
// compare that time against the current clock to judge how reliable a value
// still is.
//
// Offsets are agent-relative at scan time, not world coordinates. If the
// agent moves or turns between scans the stored picture drifts out of frame;
// the controller does not detect movement itself. Callers that track their
// own movement should call Rebase with the cell delta, or Reset to drop the
// picture entirely.
//
// A single controller is safe for use from many goroutines: scans are
// serialised through one critical section so concurrent callers cannot both
// slip past the cooldown gate, while queries only take the grid's read lock.
package radar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Woonters/better-kartoffel-radar/grid"
	"github.com/Woonters/better-kartoffel-radar/internal/config"
	"github.com/Woonters/better-kartoffel-radar/internal/monitoring"
	"github.com/Woonters/better-kartoffel-radar/internal/timeutil"
)

// Config configures a Controller. Scanner is required; every other field has
// a usable zero value.
type Config[V any] struct {
	// Scanner is the host scan primitive.
	Scanner Scanner[V]

	// Clock abstracts time for testability. Defaults to the real clock.
	Clock timeutil.Clock

	// FallbackCooldown supplies a cooldown estimate when the host reports
	// none for a scan. Defaults to the host game's published table.
	FallbackCooldown func(Size) time.Duration

	// Logf receives scan lifecycle diagnostics. Defaults to the package
	// logger in internal/monitoring.
	Logf func(format string, v ...interface{})
}

// ScanOutcome describes one successful scan.
type ScanOutcome struct {
	// ScanID uniquely identifies this scan, for correlating logs.
	ScanID string

	// Size is the scan size that ran.
	Size Size

	// At is the merge timestamp every stored cell received.
	At time.Time

	// Cooldown is the delay until the next scan is permitted.
	Cooldown time.Duration

	// CellsMerged counts the cells actually stored; cells already covered
	// by an equal-or-newer observation are skipped.
	CellsMerged int
}

// Controller owns the grid store and the cooldown gate. Create one with New
// and share it between all consumers; see the package documentation for the
// concurrency guarantees.
type Controller[V any] struct {
	scanner  Scanner[V]
	clock    timeutil.Clock
	fallback func(Size) time.Duration
	logf     func(format string, v ...interface{})

	store *grid.Grid[V]

	// scanMu serialises the whole scan critical section: cooldown check,
	// host invocation and merge. Queries never take it.
	scanMu sync.Mutex

	stateMu     sync.RWMutex
	nextReadyAt time.Time
}

// New creates a Controller from cfg. The controller starts Ready with an
// empty grid.
func New[V any](cfg Config[V]) (*Controller[V], error) {
	if cfg.Scanner == nil {
		return nil, errors.New("radar: Config.Scanner is required")
	}
	c := &Controller[V]{
		scanner:  cfg.Scanner,
		clock:    cfg.Clock,
		fallback: cfg.FallbackCooldown,
		logf:     cfg.Logf,
		store:    grid.New[V](),
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.fallback == nil {
		table := config.EmptyCooldownConfig()
		c.fallback = func(s Size) time.Duration { return table.CooldownFor(int(s)) }
	}
	if c.logf == nil {
		c.logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	return c, nil
}

// Scan triggers one host scan of the given size and merges its result.
//
// The cooldown check, the host call and the merge run as one critical
// section, so of two concurrent calls racing an expired cooldown exactly one
// scans; the loser gets a *CooldownError carrying the winner's fresh
// retry-after. A *HostError or ErrInvalidSize leaves the grid and the
// cooldown state untouched, and the controller remains usable.
func (c *Controller[V]) Scan(ctx context.Context, size Size) (*ScanOutcome, error) {
	if !size.Valid() {
		return nil, ErrInvalidSize
	}

	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	now := c.clock.Now()
	if next := c.nextReady(); now.Before(next) {
		return nil, &CooldownError{RetryAfter: next.Sub(now)}
	}

	res, err := c.scanner.Scan(ctx, size)
	if err != nil {
		return nil, &HostError{Size: size, Err: err}
	}
	if err := checkShape(res.Cells, int(size)); err != nil {
		return nil, &HostError{Size: size, Err: err}
	}

	// Stamp cells with the merge time, not the trigger time: the host call
	// itself may take a while.
	now = c.clock.Now()
	merged := c.store.MergeSquare(res.Cells, now)

	cooldown := res.Cooldown
	if cooldown <= 0 {
		cooldown = c.fallback(size)
	}
	c.setNextReady(now.Add(cooldown))

	outcome := &ScanOutcome{
		ScanID:      uuid.New().String(),
		Size:        size,
		At:          now,
		Cooldown:    cooldown,
		CellsMerged: merged,
	}
	c.logf("radar: scan %s id=%s merged %d cells, next scan in %s", size, outcome.ScanID, merged, cooldown)
	return outcome, nil
}

// Wait suspends the calling goroutine until the cooldown gate is expected to
// be open, then returns. It holds no lock while suspended and performs no
// scan itself; a concurrent caller may still win the subsequent Scan race,
// in which case Scan returns *CooldownError and the caller can Wait again.
// Returns early with ctx.Err() if the context is cancelled.
func (c *Controller[V]) Wait(ctx context.Context) error {
	for {
		d := c.TimeToNextScan()
		if d <= 0 {
			return nil
		}
		timer := c.clock.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
			// The deadline may have moved while we slept; re-check.
		}
	}
}

// At returns the most recent observation of the cell at agent-relative
// offset (dx, dy) and the time it was observed, or ok=false if no scan has
// ever covered that offset. It never blocks behind an in-progress scan
// beyond the grid's brief merge lock.
func (c *Controller[V]) At(dx, dy int) (value V, observedAt time.Time, ok bool) {
	cell, ok := c.store.Get(grid.Offset{DX: dx, DY: dy})
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return cell.Value, cell.ObservedAt, true
}

// TimeToNextScan returns how long until the next scan is permitted, or zero
// if one is permitted now. It is recomputed from the live clock on every
// call.
func (c *Controller[V]) TimeToNextScan() time.Duration {
	if d := c.nextReady().Sub(c.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Ready reports whether a scan is permitted right now.
func (c *Controller[V]) Ready() bool {
	return c.TimeToNextScan() == 0
}

// Rebase re-keys every stored observation by (dx, dy), re-anchoring the grid
// after the agent moves. An agent that moved one cell east should rebase by
// (-1, 0) so its old observations line up with the new frame.
func (c *Controller[V]) Rebase(dx, dy int) {
	c.store.Shift(dx, dy)
}

// Reset drops every stored observation. Cooldown state is unaffected.
func (c *Controller[V]) Reset() {
	c.store.Reset()
}

// Grid exposes the underlying store for read-side consumers such as
// staleness reporting. Mutate it only through Scan, Rebase and Reset.
func (c *Controller[V]) Grid() *grid.Grid[V] {
	return c.store
}

func (c *Controller[V]) nextReady() time.Time {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.nextReadyAt
}

func (c *Controller[V]) setNextReady(t time.Time) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.nextReadyAt = t
}

func checkShape[V any](cells [][]V, size int) error {
	if len(cells) != size {
		return fmt.Errorf("malformed scan result: got %d rows, want %d", len(cells), size)
	}
	for y, row := range cells {
		if len(row) != size {
			return fmt.Errorf("malformed scan result: row %d has %d cells, want %d", y, len(row), size)
		}
	}
	return nil
}

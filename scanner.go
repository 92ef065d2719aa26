package radar

import (
	"context"
	"time"
)

// ScanResult is the raw output of one host scan: a size x size square of
// observed values anchored so the center cell is the agent's own position,
// plus the cooldown the host enforces before the next scan of any size.
//
// Cells is indexed [row][col] with row 0 the top of the scanned square, so
// Cells[size/2][size/2] is offset (0,0).
type ScanResult[V any] struct {
	Cells    [][]V
	Cooldown time.Duration
}

// Scanner is the external host scan primitive. Implementations perform one
// scan of the requested size and report the observed square together with
// the cooldown the host imposes for it. The controller treats any returned
// error as opaque and propagates it without merging.
type Scanner[V any] interface {
	Scan(ctx context.Context, size Size) (ScanResult[V], error)
}

// ScannerFunc adapts a plain function to the Scanner interface.
type ScannerFunc[V any] func(ctx context.Context, size Size) (ScanResult[V], error)

// Scan calls f.
func (f ScannerFunc[V]) Scan(ctx context.Context, size Size) (ScanResult[V], error) {
	return f(ctx, size)
}

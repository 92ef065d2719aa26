package sim

import (
	"context"
	"errors"
	"sync"

	radar "github.com/Woonters/better-kartoffel-radar"
)

// ErrFlaky is the failure a FlakyScanner injects.
var ErrFlaky = errors.New("sim: injected host failure")

// FlakyScanner wraps a Scanner and fails every Nth call, for exercising host
// error propagation.
type FlakyScanner struct {
	Inner radar.Scanner[rune]
	// EveryN makes every Nth call fail; 0 or 1 fails every call.
	EveryN int

	mu    sync.Mutex
	calls int
}

// Scan delegates to Inner, injecting ErrFlaky on the configured cadence.
func (f *FlakyScanner) Scan(ctx context.Context, size radar.Size) (radar.ScanResult[rune], error) {
	f.mu.Lock()
	f.calls++
	n := f.EveryN
	fail := n <= 1 || f.calls%n == 0
	f.mu.Unlock()

	if fail {
		return radar.ScanResult[rune]{}, ErrFlaky
	}
	return f.Inner.Scan(ctx, size)
}

package radar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSize is returned by Scan for sizes outside the legal set.
// The host primitive is not invoked and no state changes.
var ErrInvalidSize = errors.New("radar: scan size must be 3, 5, 7 or 9")

// CooldownError is returned by Scan when the radar is still cooling down
// from a previous scan. It is recoverable: retry after RetryAfter, or call
// Wait first. No host call and no merge happened.
type CooldownError struct {
	// RetryAfter is how long until the cooldown gate opens, measured at the
	// moment the failing Scan checked it.
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("radar: on cooldown, retry after %s", e.RetryAfter)
}

// HostError wraps a failure reported by the host scan primitive. The
// controller does not interpret or retry it; the grid and cooldown state are
// unchanged.
type HostError struct {
	Size Size
	Err  error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("radar: host scan %s failed: %v", e.Size, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

package radar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Woonters/better-kartoffel-radar/internal/timeutil"
)

func mute() func(string, ...interface{}) {
	return func(string, ...interface{}) {}
}

func square(size int, fill rune) [][]rune {
	cells := make([][]rune, size)
	for y := range cells {
		cells[y] = make([]rune, size)
		for x := range cells[y] {
			cells[y][x] = fill
		}
	}
	return cells
}

// fillScanner returns the same fill rune for every cell, with a fixed
// per-call cooldown.
func fillScanner(fill rune, cooldown time.Duration) ScannerFunc[rune] {
	return func(_ context.Context, size Size) (ScanResult[rune], error) {
		return ScanResult[rune]{Cells: square(int(size), fill), Cooldown: cooldown}, nil
	}
}

func newTestController(t *testing.T, clock timeutil.Clock, scanner Scanner[rune]) *Controller[rune] {
	t.Helper()
	c, err := New(Config[rune]{Scanner: scanner, Clock: clock, Logf: mute()})
	require.NoError(t, err)
	return c
}

func TestNewRequiresScanner(t *testing.T) {
	t.Parallel()
	_, err := New(Config[rune]{})
	assert.Error(t, err)
}

func TestScanRejectsInvalidSize(t *testing.T) {
	t.Parallel()
	hostCalled := false
	c := newTestController(t, timeutil.NewMockClock(time.Unix(0, 0)),
		ScannerFunc[rune](func(context.Context, Size) (ScanResult[rune], error) {
			hostCalled = true
			return ScanResult[rune]{}, nil
		}))

	for _, size := range []Size{0, 1, 2, 4, 11} {
		_, err := c.Scan(context.Background(), size)
		assert.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
	}
	assert.False(t, hostCalled, "host primitive must not run for an illegal size")
	assert.True(t, c.Ready(), "rejected scans must not start a cooldown")
}

func TestScanMergesAndStartsCooldown(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := newTestController(t, clock, fillScanner('.', 100*time.Second))

	outcome, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	assert.Equal(t, Size3, outcome.Size)
	assert.Equal(t, 9, outcome.CellsMerged)
	assert.Equal(t, 100*time.Second, outcome.Cooldown)
	assert.NotEmpty(t, outcome.ScanID)
	assert.True(t, outcome.At.Equal(clock.Now()))

	v, observedAt, ok := c.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, '.', v)
	assert.True(t, observedAt.Equal(outcome.At))

	assert.Equal(t, 100*time.Second, c.TimeToNextScan())
	assert.False(t, c.Ready())
}

func TestScanOnCooldownFails(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('.', 100*time.Second))

	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	clock.Advance(40 * time.Second)
	_, err = c.Scan(context.Background(), Size3)

	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 60*time.Second, cdErr.RetryAfter)

	// Once the cooldown elapses the gate reopens.
	clock.Advance(60 * time.Second)
	assert.Zero(t, c.TimeToNextScan())
	_, err = c.Scan(context.Background(), Size3)
	assert.NoError(t, err)
}

func TestTimeToNextScanTracksLiveClock(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('.', 30*time.Second))

	assert.Zero(t, c.TimeToNextScan(), "a fresh controller starts Ready")

	_, err := c.Scan(context.Background(), Size5)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, c.TimeToNextScan())
	clock.Advance(10 * time.Second)
	assert.Equal(t, 20*time.Second, c.TimeToNextScan())
	clock.Advance(25 * time.Second)
	assert.Zero(t, c.TimeToNextScan(), "never negative")
}

// A 3x3 at T=0 then a 5x5 at T=50: the larger scan overwrites the overlap
// and extends coverage to the (+-2,+-2) ring.
func TestLargerScanRefreshesOverlap(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	fill := '3'
	scanner := ScannerFunc[rune](func(_ context.Context, size Size) (ScanResult[rune], error) {
		return ScanResult[rune]{Cells: square(int(size), fill), Cooldown: 40 * time.Second}, nil
	})
	c := newTestController(t, clock, scanner)

	t0 := clock.Now()
	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	v, observedAt, ok := c.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, '3', v)
	assert.True(t, observedAt.Equal(t0))
	_, _, ok = c.At(2, 2)
	assert.False(t, ok, "a 3x3 scan must not cover (2,2)")

	clock.Advance(50 * time.Second)

	fill = '5'
	_, err = c.Scan(context.Background(), Size5)
	require.NoError(t, err)
	t1 := clock.Now()

	v, observedAt, ok = c.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, '5', v, "overlap must carry the newer value")
	assert.True(t, observedAt.Equal(t1))

	v, observedAt, ok = c.At(2, 2)
	require.True(t, ok, "the 5x5 scan extends coverage to (2,2)")
	assert.Equal(t, '5', v)
	assert.True(t, observedAt.Equal(t1))
}

func TestHostErrorPropagatesUnchanged(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	hostErr := errors.New("antenna fell off")
	c := newTestController(t, clock,
		ScannerFunc[rune](func(context.Context, Size) (ScanResult[rune], error) {
			return ScanResult[rune]{}, hostErr
		}))

	_, err := c.Scan(context.Background(), Size3)

	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.ErrorIs(t, err, hostErr)
	assert.Equal(t, Size3, he.Size)

	_, _, ok := c.At(0, 0)
	assert.False(t, ok, "a failed scan must not merge")
	assert.True(t, c.Ready(), "a failed scan must not start a cooldown")
}

func TestMalformedHostResultIsHostError(t *testing.T) {
	t.Parallel()
	c := newTestController(t, timeutil.NewMockClock(time.Unix(0, 0)),
		ScannerFunc[rune](func(context.Context, Size) (ScanResult[rune], error) {
			return ScanResult[rune]{Cells: square(4, '?')}, nil
		}))

	_, err := c.Scan(context.Background(), Size5)

	var he *HostError
	require.ErrorAs(t, err, &he)
	_, _, ok := c.At(0, 0)
	assert.False(t, ok)
	assert.True(t, c.Ready())
}

func TestFallbackCooldownWhenHostReportsNone(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c, err := New(Config[rune]{
		Scanner:          fillScanner('.', 0),
		Clock:            clock,
		FallbackCooldown: func(s Size) time.Duration { return time.Duration(s) * time.Second },
		Logf:             mute(),
	})
	require.NoError(t, err)

	outcome, err := c.Scan(context.Background(), Size7)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, outcome.Cooldown)
	assert.Equal(t, 7*time.Second, c.TimeToNextScan())
}

func TestDefaultFallbackUsesHostTable(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c, err := New(Config[rune]{Scanner: fillScanner('.', 0), Clock: clock, Logf: mute()})
	require.NoError(t, err)

	outcome, err := c.Scan(context.Background(), Size9)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, outcome.Cooldown)
}

func TestAtNeverObserved(t *testing.T) {
	t.Parallel()
	c := newTestController(t, timeutil.NewMockClock(time.Unix(0, 0)), fillScanner('.', time.Second))

	v, observedAt, ok := c.At(7, -7)
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.True(t, observedAt.IsZero())
}

func TestRebaseAndReset(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('w', 100*time.Second))

	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	// Agent moved one cell east: what was at (1,0) is now straight under it.
	c.Rebase(-1, 0)
	v, _, ok := c.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, 'w', v)
	_, _, ok = c.At(1, 0)
	assert.False(t, ok, "edge column shifts out of the stored square")

	c.Reset()
	assert.Zero(t, c.Grid().Len())
	assert.False(t, c.Ready(), "Reset drops observations, not the cooldown")
}

func TestWaitReturnsImmediatelyWhenReady(t *testing.T) {
	t.Parallel()
	c := newTestController(t, timeutil.NewMockClock(time.Unix(0, 0)), fillScanner('.', time.Second))
	assert.NoError(t, c.Wait(context.Background()))
}

func TestWaitSuspendsUntilCooldownElapses(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('.', 100*time.Second))

	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while still on cooldown")
	case <-time.After(20 * time.Millisecond):
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			assert.NoError(t, err)
			assert.Zero(t, c.TimeToNextScan())
			return
		case <-deadline:
			t.Fatal("Wait did not return after the cooldown elapsed")
		default:
			clock.Advance(10 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}

// timerTrackingClock reports each timer a waiter arms, so tests can
// sequence deterministically against Wait's internals.
type timerTrackingClock struct {
	*timeutil.MockClock
	created chan timeutil.Timer
}

func (c *timerTrackingClock) NewTimer(d time.Duration) timeutil.Timer {
	timer := c.MockClock.NewTimer(d)
	c.created <- timer
	return timer
}

// A waiter suspended on the cooldown deadline must not return if a
// concurrent scan pushed the deadline further out while it slept; it re-arms
// for the new deadline instead.
func TestWaitRechecksWhenDeadlineMoves(t *testing.T) {
	t.Parallel()
	mock := timeutil.NewMockClock(time.Unix(0, 0))
	clock := &timerTrackingClock{MockClock: mock, created: make(chan timeutil.Timer, 4)}
	c := newTestController(t, clock, fillScanner('.', 100*time.Second))

	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Wait(context.Background()) }()

	// The waiter is now suspended on a timer for the first deadline.
	<-clock.created

	// The gate opens and another caller wins the scan before the waiter
	// wakes: Set moves the clock without firing timers.
	mock.Set(time.Unix(100, 0))
	_, err = c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	// The first timer fires. The waiter must notice the pushed deadline
	// and arm a fresh timer rather than returning.
	mock.Advance(0)
	<-clock.created
	select {
	case <-done:
		t.Fatal("Wait returned while the new cooldown was still running")
	case <-time.After(20 * time.Millisecond):
	}

	mock.Advance(100 * time.Second)
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Zero(t, c.TimeToNextScan())
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the new deadline passed")
	}
}

func TestWaitHonoursContextCancellation(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('.', time.Hour))

	_, err := c.Scan(context.Background(), Size3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

// Two concurrent scans racing an open gate: exactly one merges, the loser
// observes a cooldown reflecting the winner's new deadline.
func TestConcurrentScansExactlyOneWins(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, clock, fillScanner('.', 100*time.Second))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = c.Scan(context.Background(), Size3)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var cdErr *CooldownError
		require.ErrorAs(t, err, &cdErr)
		assert.Equal(t, 100*time.Second, cdErr.RetryAfter)
	}
	assert.Equal(t, 1, wins, "exactly one concurrent scan may pass the gate")
}

func TestQueriesDoNotBlockBehindSlowScan(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	inHost := make(chan struct{})
	release := make(chan struct{})
	c := newTestController(t, clock,
		ScannerFunc[rune](func(_ context.Context, size Size) (ScanResult[rune], error) {
			close(inHost)
			<-release
			return ScanResult[rune]{Cells: square(int(size), '.'), Cooldown: time.Second}, nil
		}))

	go func() { _, _ = c.Scan(context.Background(), Size3) }()

	<-inHost
	queried := make(chan struct{})
	go func() {
		c.At(0, 0)
		c.TimeToNextScan()
		close(queried)
	}()

	select {
	case <-queried:
	case <-time.After(5 * time.Second):
		t.Fatal("queries blocked behind an in-progress host scan")
	}
	close(release)
}

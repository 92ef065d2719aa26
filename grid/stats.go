package grid

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CellAge is the staleness of one stored cell relative to a reference time.
type CellAge struct {
	Offset     Offset
	ObservedAt time.Time
	Age        time.Duration
}

// AgeStats summarises the staleness of all stored cells.
type AgeStats struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration
}

// Ages returns the staleness of every stored cell relative to now, in no
// particular order. Cells merged "in the future" relative to now report a
// negative age.
func (g *Grid[V]) Ages(now time.Time) []CellAge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]CellAge, 0, len(g.cells))
	for off, c := range g.cells {
		out = append(out, CellAge{
			Offset:     off,
			ObservedAt: c.ObservedAt,
			Age:        now.Sub(c.ObservedAt),
		})
	}
	return out
}

// AgeStats computes count, mean, standard deviation, min and max staleness
// over all stored cells. An empty grid returns the zero AgeStats.
func (g *Grid[V]) AgeStats(now time.Time) AgeStats {
	ages := g.Ages(now)
	if len(ages) == 0 {
		return AgeStats{}
	}

	xs := make([]float64, len(ages))
	for i, a := range ages {
		xs[i] = float64(a.Age)
	}

	s := AgeStats{
		Count: len(ages),
		Mean:  time.Duration(stat.Mean(xs, nil)),
		Min:   time.Duration(floats.Min(xs)),
		Max:   time.Duration(floats.Max(xs)),
	}
	if len(xs) > 1 {
		s.StdDev = time.Duration(stat.StdDev(xs, nil))
	}
	return s
}

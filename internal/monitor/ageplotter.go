package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Woonters/better-kartoffel-radar/grid"
)

// AgePlotter records the staleness of selected offsets over time for
// visualization. Call Sample on whatever cadence suits the run, then
// GeneratePlots to produce a PNG with one line per tracked offset.
type AgePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	offsets   []grid.Offset

	// samples holds per-offset time series keyed by offset.
	samples map[grid.Offset][]ageSample

	// startTime is the timestamp of the first sample, used for the x-axis.
	startTime time.Time
}

type ageSample struct {
	Elapsed time.Duration
	Age     time.Duration
	Seen    bool
}

// NewAgePlotter creates a plotter tracking the given offsets.
func NewAgePlotter(offsets []grid.Offset) *AgePlotter {
	return &AgePlotter{
		offsets: offsets,
		samples: make(map[grid.Offset][]ageSample),
	}
}

// Start initializes the plotter for a new run, creating outputDir if needed.
func (ap *AgePlotter) Start(outputDir string) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	ap.outputDir = outputDir
	ap.enabled = true
	ap.startTime = time.Time{}
	ap.samples = make(map[grid.Offset][]ageSample)
	return nil
}

// Stop disables sampling. Call GeneratePlots to produce output files.
func (ap *AgePlotter) Stop() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.enabled = false
}

// Sample captures the current staleness of every tracked offset.
func (ap *AgePlotter) Sample(source GridSource, now time.Time) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if !ap.enabled || source == nil {
		return
	}
	if ap.startTime.IsZero() {
		ap.startTime = now
	}
	elapsed := now.Sub(ap.startTime)

	byOffset := make(map[grid.Offset]time.Duration)
	for _, a := range source.Ages(now) {
		byOffset[a.Offset] = a.Age
	}

	for _, off := range ap.offsets {
		age, seen := byOffset[off]
		ap.samples[off] = append(ap.samples[off], ageSample{
			Elapsed: elapsed,
			Age:     age,
			Seen:    seen,
		})
	}
}

// GeneratePlots writes staleness.png to the output directory: one line per
// tracked offset, age in seconds over elapsed run time. Returns the number
// of series plotted.
func (ap *AgePlotter) GeneratePlots() (int, error) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	p := plot.New()
	p.Title.Text = "Cell staleness over time"
	p.X.Label.Text = "elapsed (s)"
	p.Y.Label.Text = "age (s)"

	// Stable series order regardless of map iteration.
	offsets := make([]grid.Offset, 0, len(ap.samples))
	for off := range ap.samples {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool {
		if offsets[i].DY != offsets[j].DY {
			return offsets[i].DY < offsets[j].DY
		}
		return offsets[i].DX < offsets[j].DX
	})

	series := 0
	for _, off := range offsets {
		samples := ap.samples[off]
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			if !s.Seen {
				continue
			}
			pts = append(pts, plotter.XY{X: s.Elapsed.Seconds(), Y: s.Age.Seconds()})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return series, fmt.Errorf("failed to build line for (%d,%d): %w", off.DX, off.DY, err)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(series)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("(%d,%d)", off.DX, off.DY), line)
		series++
	}

	if series == 0 {
		return 0, fmt.Errorf("no samples recorded for any tracked offset")
	}

	file := filepath.Join(ap.outputDir, "staleness.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return series, fmt.Errorf("failed to save %s: %w", file, err)
	}
	return series, nil
}

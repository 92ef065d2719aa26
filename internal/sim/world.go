// Package sim provides a deterministic fake host for the radar controller:
// a seeded tile world with a movable agent, square scans centered on it, and
// cooldowns drawn from the tuning table with the host game's jitter.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	radar "github.com/Woonters/better-kartoffel-radar"
	"github.com/Woonters/better-kartoffel-radar/internal/config"
)

// Tile values produced by the world generator.
const (
	TileFloor = '.'
	TileRock  = '#'
	TileBot   = 'e'
	TileAgent = '@'
	TileVoid  = ' '
)

// World is a seeded rectangular tile map with one agent. It implements
// radar.Scanner[rune]; the same seed always yields the same terrain and the
// same cooldown sequence.
type World struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cfg    *config.CooldownConfig
	width  int
	height int
	tiles  [][]rune
	agentX int
	agentY int
}

// NewWorld generates a world of the given dimensions from seed. cfg supplies
// the cooldown table; nil uses the defaults.
func NewWorld(seed int64, width, height int, cfg *config.CooldownConfig) *World {
	if cfg == nil {
		cfg = config.EmptyCooldownConfig()
	}
	rng := rand.New(rand.NewSource(seed))

	tiles := make([][]rune, height)
	for y := range tiles {
		tiles[y] = make([]rune, width)
		for x := range tiles[y] {
			switch {
			case x == 0 || y == 0 || x == width-1 || y == height-1:
				tiles[y][x] = TileRock
			case rng.Float64() < 0.08:
				tiles[y][x] = TileRock
			case rng.Float64() < 0.02:
				tiles[y][x] = TileBot
			default:
				tiles[y][x] = TileFloor
			}
		}
	}

	return &World{
		rng:    rng,
		cfg:    cfg,
		width:  width,
		height: height,
		tiles:  tiles,
		agentX: width / 2,
		agentY: height / 2,
	}
}

// Scan returns the size x size square centered on the agent. Cells beyond
// the world boundary read as void. The reported cooldown is the tuning
// table's base for this size with the configured jitter applied.
func (w *World) Scan(ctx context.Context, size radar.Size) (radar.ScanResult[rune], error) {
	if err := ctx.Err(); err != nil {
		return radar.ScanResult[rune]{}, err
	}
	if !size.Valid() {
		return radar.ScanResult[rune]{}, fmt.Errorf("sim: unsupported scan size %d", int(size))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r := size.Radius()
	cells := make([][]rune, int(size))
	for dy := -r; dy <= r; dy++ {
		row := make([]rune, int(size))
		for dx := -r; dx <= r; dx++ {
			row[dx+r] = w.tileAt(w.agentX+dx, w.agentY+dy)
		}
		cells[dy+r] = row
	}
	// The agent always sees itself at the center.
	cells[r][r] = TileAgent

	base := w.cfg.CooldownFor(int(size))
	jitter := w.cfg.JitterFor(int(size))
	factor := 1 + jitter*(2*w.rng.Float64()-1)
	cooldown := time.Duration(float64(base) * factor)

	return radar.ScanResult[rune]{Cells: cells, Cooldown: cooldown}, nil
}

func (w *World) tileAt(x, y int) rune {
	if x < 0 || y < 0 || x >= w.width || y >= w.height {
		return TileVoid
	}
	return w.tiles[y][x]
}

// MoveAgent shifts the agent by (dx, dy), clamped to the world. It returns
// the delta actually applied, which callers feed to the controller's Rebase
// (negated) to keep stored offsets aligned.
func (w *World) MoveAgent(dx, dy int) (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nx := clamp(w.agentX+dx, 0, w.width-1)
	ny := clamp(w.agentY+dy, 0, w.height-1)
	movedX, movedY := nx-w.agentX, ny-w.agentY
	w.agentX, w.agentY = nx, ny
	return movedX, movedY
}

// AgentPosition returns the agent's current world coordinates.
func (w *World) AgentPosition() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agentX, w.agentY
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

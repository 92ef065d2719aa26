// Command radar-heatmap runs the radar controller against a simulated world
// and serves a live staleness heatmap.
//
// A background loop waits out each cooldown and fires the next scan, cycling
// through the legal sizes, while the monitor server shows how fresh every
// cell of the merged picture is.
//
// Usage:
//
//	go run ./cmd/radar-heatmap [flags]
//
// Flags:
//
//	-listen  Listen address for the monitor server (default: :8080)
//	-seed    World generation seed (default: 1)
//	-config  Optional cooldown tuning JSON
//	-plots   Optional directory for PNG staleness plots on shutdown
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	radar "github.com/Woonters/better-kartoffel-radar"
	"github.com/Woonters/better-kartoffel-radar/grid"
	"github.com/Woonters/better-kartoffel-radar/internal/config"
	"github.com/Woonters/better-kartoffel-radar/internal/monitor"
	"github.com/Woonters/better-kartoffel-radar/internal/sim"
	"github.com/Woonters/better-kartoffel-radar/internal/version"
)

func main() {
	listen := flag.String("listen", ":8080", "Listen address for the monitor server")
	seed := flag.Int64("seed", 1, "World generation seed")
	configPath := flag.String("config", "", "Optional cooldown tuning JSON")
	plotsDir := flag.String("plots", "", "Optional directory for PNG staleness plots on shutdown")
	flag.Parse()

	log.Printf("radar-heatmap %s (%s)", version.Version, version.GitSHA)

	cooldowns := config.EmptyCooldownConfig()
	if *configPath != "" {
		var err error
		cooldowns, err = config.LoadCooldownConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load cooldown config: %v", err)
		}
	}

	world := sim.NewWorld(*seed, 64, 64, cooldowns)
	controller, err := radar.New(radar.Config[rune]{Scanner: world})
	if err != nil {
		log.Fatalf("failed to create controller: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var plotter *monitor.AgePlotter
	if *plotsDir != "" {
		plotter = monitor.NewAgePlotter([]grid.Offset{
			{DX: 0, DY: 0},
			{DX: 0, DY: -1},
			{DX: 2, DY: 2},
			{DX: -4, DY: 0},
		})
		if err := plotter.Start(*plotsDir); err != nil {
			log.Fatalf("failed to start plotter: %v", err)
		}
	}

	go scanLoop(ctx, controller, plotter)

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:        *listen,
		Grid:           controller.Grid(),
		TimeToNextScan: controller.TimeToNextScan,
	})
	log.Printf("monitor listening on %s (heatmap at /debug/grid)", *listen)
	if err := ws.Start(ctx); err != nil {
		log.Printf("monitor shutdown: %v", err)
	}

	if plotter != nil {
		plotter.Stop()
		if n, err := plotter.GeneratePlots(); err != nil {
			log.Printf("plot generation failed: %v", err)
		} else {
			log.Printf("wrote %d staleness series to %s", n, *plotsDir)
		}
	}
}

// scanLoop waits out each cooldown and fires the next scan, cycling through
// the legal sizes so differently sized scans overlap and re-cover the center.
func scanLoop(ctx context.Context, controller *radar.Controller[rune], plotter *monitor.AgePlotter) {
	sizes := radar.Sizes()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if err := controller.Wait(ctx); err != nil {
			return
		}

		size := sizes[i%len(sizes)]
		outcome, err := controller.Scan(ctx, size)
		var cdErr *radar.CooldownError
		switch {
		case errors.As(err, &cdErr):
			// Lost a race with another scanner; Wait again.
			continue
		case err != nil:
			log.Printf("scan %s failed: %v", size, err)
		default:
			log.Printf("scan %s merged %d cells, next in %s", outcome.Size, outcome.CellsMerged, outcome.Cooldown.Round(time.Millisecond))
		}

		if plotter != nil {
			// Sample on every tick until the next scan so the plot shows
			// ages ramping between merges.
			sampleUntilReady(ctx, controller, plotter, ticker)
		}
	}
}

func sampleUntilReady(ctx context.Context, controller *radar.Controller[rune], plotter *monitor.AgePlotter, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			plotter.Sample(controller.Grid(), now)
			if controller.Ready() {
				return
			}
		}
	}
}

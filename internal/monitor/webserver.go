// Package monitor serves debugging views of a radar grid's staleness: an
// HTML heatmap, JSON cell dumps, and PNG age-over-time plots.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Woonters/better-kartoffel-radar/grid"
	"github.com/Woonters/better-kartoffel-radar/internal/monitoring"
	"github.com/Woonters/better-kartoffel-radar/internal/timeutil"
)

// GridSource is the read-only view of a grid the monitor consumes. Any
// grid.Grid satisfies it regardless of its value type.
type GridSource interface {
	Ages(now time.Time) []grid.CellAge
	AgeStats(now time.Time) grid.AgeStats
}

// WebServerConfig configures a monitor WebServer.
type WebServerConfig struct {
	Address string
	Grid    GridSource

	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// TimeToNextScan, if set, is reported by the stats endpoint.
	TimeToNextScan func() time.Duration
}

// WebServer exposes debug endpoints for one grid:
//
//	/debug/grid  HTML staleness heatmap
//	/api/grid    JSON dump of per-cell ages
//	/api/stats   JSON staleness summary
type WebServer struct {
	address        string
	source         GridSource
	clock          timeutil.Clock
	timeToNextScan func() time.Duration
	server         *http.Server
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:        config.Address,
		source:         config.Grid,
		clock:          config.Clock,
		timeToNextScan: config.TimeToNextScan,
	}
	if ws.clock == nil {
		ws.clock = timeutil.RealClock{}
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.Routes(),
	}
	return ws
}

// Routes returns the handler serving the monitor endpoints.
func (ws *WebServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/grid", ws.handleGridHeatmap)
	mux.HandleFunc("/api/grid", ws.handleGridJSON)
	mux.HandleFunc("/api/stats", ws.handleStats)
	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("monitor: serving on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor: server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ws.server.Shutdown(shutdownCtx)
}

// handleGridHeatmap renders an HTML scatter heatmap of per-cell staleness:
// one point per observed offset, coloured by age in seconds.
func (ws *WebServer) handleGridHeatmap(w http.ResponseWriter, r *http.Request) {
	now := ws.clock.Now()
	ages := ws.source.Ages(now)
	if len(ages) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no cells observed yet")
		return
	}

	data := make([]opts.ScatterData, 0, len(ages))
	maxAbs := 1
	maxAge := 0.0
	for _, a := range ages {
		ageSecs := a.Age.Seconds()
		if ageSecs < 0 {
			ageSecs = 0
		}
		if ageSecs > maxAge {
			maxAge = ageSecs
		}
		if abs(a.Offset.DX) > maxAbs {
			maxAbs = abs(a.Offset.DX)
		}
		if abs(a.Offset.DY) > maxAbs {
			maxAbs = abs(a.Offset.DY)
		}
		// Flip DY so "in front of the agent" renders up.
		data = append(data, opts.ScatterData{Value: []interface{}{a.Offset.DX, -a.Offset.DY, ageSecs}})
	}
	pad := float32(maxAbs + 1)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radar Staleness", Theme: "dark", Width: "800px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "Radar Grid Staleness", Subtitle: fmt.Sprintf("cells=%d now=%s", len(data), now.Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "dx", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "dy", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxAge),
			Text:       []string{"stale", "fresh"},
			InRange:    &opts.VisualMapInRange{Color: []string{"#fde725", "#b5de2b", "#6ece58", "#35b779", "#1f9e89", "#26828e", "#31688e", "#3e4989", "#482777", "#440154"}},
		}),
	)
	scatter.AddSeries("age (s)", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 18}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "render failed: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type cellJSON struct {
	DX         int       `json:"dx"`
	DY         int       `json:"dy"`
	ObservedAt time.Time `json:"observed_at"`
	AgeSecs    float64   `json:"age_secs"`
}

func (ws *WebServer) handleGridJSON(w http.ResponseWriter, r *http.Request) {
	now := ws.clock.Now()
	ages := ws.source.Ages(now)

	cells := make([]cellJSON, 0, len(ages))
	for _, a := range ages {
		cells = append(cells, cellJSON{
			DX:         a.Offset.DX,
			DY:         a.Offset.DY,
			ObservedAt: a.ObservedAt,
			AgeSecs:    a.Age.Seconds(),
		})
	}

	ws.writeJSON(w, map[string]interface{}{
		"now":   now,
		"cells": cells,
	})
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	now := ws.clock.Now()
	stats := ws.source.AgeStats(now)

	payload := map[string]interface{}{
		"now":             now,
		"count":           stats.Count,
		"mean_age_secs":   stats.Mean.Seconds(),
		"stddev_age_secs": stats.StdDev.Seconds(),
		"min_age_secs":    stats.Min.Seconds(),
		"max_age_secs":    stats.Max.Seconds(),
	}
	if ws.timeToNextScan != nil {
		payload["time_to_next_scan_secs"] = ws.timeToNextScan().Seconds()
	}
	ws.writeJSON(w, payload)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		monitoring.Logf("monitor: encode response: %v", err)
	}
}

// writeJSONError writes a JSON error response.
func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

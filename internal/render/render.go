// Package render drives the per-frame work of the point renderer.
//
// Each frame the Scheduler:
// 1. Asks the tile set to start acquiring the tiles the view needs.
// 2. Drains deferred buffer construction for a bounded slice of time.
// 3. Snapshots the frame's parameters and assigns attribute slots.
// 4. Hands every ready tile's buffers to the Drawer in one batched call.
//
// Nothing here talks to the GPU directly; see the backend package.
package render

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/memory"
	"github.com/irfansharif/stipple/internal/overlay"
	"github.com/irfansharif/stipple/internal/tiles"
)

var renderLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("STIPPLE_DEBUG_RENDER") == "1" {
		renderLogger = log.New(os.Stdout, "[render] ", log.Ltime|log.Lmsgprefix)
	}
}

// TileSet is the level-of-detail hierarchy the scheduler draws from. It owns
// fetching and eviction; the scheduler only polls it.
type TileSet interface {
	// Loaded is closed once the hierarchy's root structure is available.
	Loaded() <-chan struct{}
	// Extent is the data-space bounding box of the whole hierarchy.
	Extent() geom.Box
	// DownloadMostNeeded requests the tiles covering corners, up to maxIndex
	// rows. It must not block.
	DownloadMostNeeded(corners geom.Box, maxIndex int)
	// DownloadToDepth requests tiles breadth-first until about maxPoints rows
	// are resident. It must not block.
	DownloadToDepth(maxPoints int)
	// VisibleTiles lists the loaded tiles overlapping corners, finest first.
	VisibleTiles(corners geom.Box) []*tiles.Tile
}

// Drawer executes a frame's batched draw.
type Drawer interface {
	Draw(call DrawCall) error
}

// Attribute is one bound per-row buffer.
type Attribute struct {
	Bound bool
	Slice memory.Slice
}

// TileBinding is everything needed to draw one tile's points.
type TileBinding struct {
	Tile       *tiles.Tile
	Count      int
	Attributes [MaxAttributeSlots]Attribute
}

// DrawCall is the single draw issued per frame. Tiles are in paint order.
type DrawCall struct {
	Params  *FrameParams
	Tiles   []TileBinding
	Overlay *overlay.Layer
}

// Prefs are the user-facing render preferences.
type Prefs struct {
	PointSize   float32       // base point diameter in pixels
	ZoomBalance float32       // how much points grow as the view zooms in
	Alpha       float32       // target overall opacity
	Duration    time.Duration // length of an encoding transition
	MaxPoints   int           // rows to keep resident at zoom 1
	Background  [4]float32
}

// DefaultPrefs returns the preferences used when none are configured.
func DefaultPrefs() Prefs {
	return Prefs{
		PointSize:   2,
		ZoomBalance: 0.35,
		Alpha:       0.4,
		Duration:    2 * time.Second,
		MaxPoints:   100_000,
		Background:  [4]float32{0.95, 0.95, 0.97, 1},
	}
}

// Stats tracks scheduler activity. Per-frame fields describe the last tick.
type Stats struct {
	Ticks int

	LastTickTimeMs  float64 // time spent in the last Tick, in milliseconds
	LastDrainTimeMs float64 // portion of that spent draining deferred work
	LastDrawTimeUs  float64 // time spent in the last Draw, in microseconds

	TilesDrawn   int // tiles in the last draw call
	TilesWaiting int // visible tiles skipped last frame because buffers weren't ready
	TilesFailed  int // visible tiles dropped last frame because of an error

	TasksRun     int // cumulative deferred tasks run
	TasksFailed  int // cumulative deferred task failures
	TasksQueued  int // deferred tasks left after the last drain
	DrawFailures int // cumulative failed draw calls
}

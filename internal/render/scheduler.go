package render

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/irfansharif/stipple/internal/deferred"
	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/memory"
	"github.com/irfansharif/stipple/internal/overlay"
	"github.com/irfansharif/stipple/internal/tiles"
)

// ErrClosed is returned by Tick and Flush after Close.
var ErrClosed = errors.New("render: scheduler closed")

// Scheduler drives frames. It owns the deferred-work queue and the arena
// backing every tile buffer, and must only be used from the render thread.
type Scheduler struct {
	tileSet TileSet
	arena   *memory.Arena
	queue   *deferred.Queue
	drawer  Drawer
	overlay *overlay.Layer

	enc    *encoding.Encoding
	prefs  Prefs
	modes  Modes
	budget time.Duration

	w, h int
	zoom geom.Zoom

	loaded           bool
	scales           [2]geom.Affine // current, last
	useScaleForTiles bool

	now     func() time.Time
	start   time.Time
	updated time.Time
	closed  bool
	stats   Stats
}

// NewScheduler creates a scheduler drawing tileSet through drawer, with tile
// buffers allocated from arena.
func NewScheduler(tileSet TileSet, arena *memory.Arena, drawer Drawer) *Scheduler {
	s := &Scheduler{
		tileSet: tileSet,
		arena:   arena,
		queue:   deferred.NewQueue(),
		drawer:  drawer,
		overlay: &overlay.Layer{},
		enc:     encoding.New(),
		prefs:   DefaultPrefs(),
		modes:   Modes{OnlyColor: NoColorFilter},
		budget:  deferred.DefaultBudget,
		zoom:    geom.IdentityZoom(),
		now:     time.Now,
	}
	s.start = s.now()
	s.updated = s.start
	return s
}

// SetClock overrides the clock for both frame timing and the drain budget.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
	s.queue.SetClock(now)
	s.start = now()
	s.updated = s.start
}

// SetBudget sets how long each tick may spend on deferred work.
func (s *Scheduler) SetBudget(d time.Duration) { s.budget = d }

// SetView sets the viewport size in pixels and the current zoom.
func (s *Scheduler) SetView(w, h int, zoom geom.Zoom) {
	s.w, s.h = w, h
	s.zoom = zoom
}

// SetPrefs replaces the render preferences.
func (s *Scheduler) SetPrefs(p Prefs) { s.prefs = p }

// Prefs returns the render preferences.
func (s *Scheduler) Prefs() Prefs { return s.prefs }

// SetModes replaces the draw-mode flags.
func (s *Scheduler) SetModes(m Modes) { s.modes = m }

// Modes returns the debug modes in effect.
func (s *Scheduler) Modes() Modes { return s.modes }

// Overlay returns the polygon layer drawn beneath the points.
func (s *Scheduler) Overlay() *overlay.Layer { return s.overlay }

// Encoding returns the live channel bindings. Use ApplyEncoding to change
// them.
func (s *Scheduler) Encoding() *encoding.Encoding { return s.enc }

// Queue returns the deferred-work queue.
func (s *Scheduler) Queue() *deferred.Queue { return s.queue }

// WindowScale returns the transform from x/y attribute values to clip space.
// It's the zero transform until the tile set loads.
func (s *Scheduler) WindowScale() geom.Affine { return s.scales[0] }

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() Stats { return s.stats }

// ApplyEncoding rebinds the given channels, each starting a transition from
// its previous binding. All of them share one transition.
func (s *Scheduler) ApplyEncoding(bindings map[encoding.Channel]encoding.Binding) {
	// Channels whose binding isn't changing stop animating.
	s.enc.Settle()
	for _, c := range encoding.Channels {
		if b, ok := bindings[c]; ok {
			s.enc.Apply(c, b)
			renderLogger.Printf("bound %s to %q (%s)", c, b.Field, s.enc.Binding(c, encoding.Current).Transform)
		}
	}
	s.updated = s.now()
	if s.loaded {
		s.applyWindowScale()
	}
}

// applyWindowScale pushes the transform for the current x/y bindings onto the
// two-entry scale history. When both use the tile set's own coordinates the
// transform spans the tile set's extent and tile requests can follow the
// viewport; otherwise it spans the bindings' output ranges.
func (s *Scheduler) applyWindowScale() {
	x := s.enc.Binding(encoding.X, encoding.Current)
	y := s.enc.Binding(encoding.Y, encoding.Current)

	extent := s.tileSet.Extent()
	s.useScaleForTiles = x.Transform == encoding.Literal && y.Transform == encoding.Literal
	if !s.useScaleForTiles {
		box := geom.MakeBox(
			float64(x.Range[0]), float64(y.Range[0]),
			float64(x.Range[1]-x.Range[0]), float64(y.Range[1]-y.Range[0]),
		)
		if box.W != 0 && box.H != 0 {
			extent = box
		} else {
			log.Printf("WARNING: degenerate x/y range %v, using tile extent", box)
		}
	}
	s.scales[1] = s.scales[0]
	s.scales[0] = geom.WindowTransform(extent)
}

// checkLoaded reports whether the tile set's root structure is available,
// initializing the window scale the first time it is.
func (s *Scheduler) checkLoaded() bool {
	if s.loaded {
		return true
	}
	select {
	case <-s.tileSet.Loaded():
	default:
		return false
	}
	s.loaded = true
	s.applyWindowScale()
	s.scales[1] = s.scales[0]
	renderLogger.Printf("tile set loaded, extent %+v", s.tileSet.Extent())
	return true
}

// Tick runs one frame. Tiles whose buffers aren't ready are left out and
// picked up on a later tick once their deferred work has run.
func (s *Scheduler) Tick() error {
	return s.tick(false)
}

// Flush runs one frame with every visible tile's buffers built inline, so the
// drawn frame is complete. It's meant for work that reads the frame back.
func (s *Scheduler) Flush() error {
	return s.tick(true)
}

func (s *Scheduler) tick(block bool) error {
	if s.closed {
		return ErrClosed
	}
	start := s.now()
	s.stats.Ticks++
	defer func() {
		s.stats.LastTickTimeMs = float64(s.now().Sub(start).Microseconds()) / 1000.0
	}()

	if !s.checkLoaded() {
		s.drain()
		return nil
	}

	corners, err := geom.Corners(s.scales[0], s.zoom, s.w, s.h)
	if err != nil {
		// A zero-sized viewport; there's nothing to draw.
		s.drain()
		return nil
	}

	if s.useScaleForTiles {
		s.tileSet.DownloadMostNeeded(corners, maxIndex(s.prefs.MaxPoints, s.zoom.K))
	} else {
		s.tileSet.DownloadToDepth(s.prefs.MaxPoints)
	}
	s.drain()

	params := s.snapshot(corners, block)
	return s.render(params)
}

func (s *Scheduler) drain() {
	ds := s.queue.Drain(s.budget)
	s.stats.LastDrainTimeMs = float64(ds.Elapsed.Microseconds()) / 1000.0
	s.stats.TasksRun += ds.Ran
	s.stats.TasksFailed += ds.Failed
	s.stats.TasksQueued = ds.Remaining
}

// snapshot assembles the frame's parameters. The encoding is deep-copied and
// slots are recomputed from it, since bound fields may change between frames.
func (s *Scheduler) snapshot(corners geom.Box, block bool) *FrameParams {
	enc := s.enc.Snapshot()
	now := s.now()
	view, err := geom.DataToClip(geom.MakeAffine(1, 0, 0, 0, 1, 0), s.zoom, s.w, s.h)
	if err != nil {
		// Unreachable once Corners has succeeded for the same viewport.
		log.Printf("WARNING: view transform: %v", err)
	}
	return &FrameParams{
		Width:            s.w,
		Height:           s.h,
		Zoom:             s.zoom,
		ZoomMatrix:       s.zoom.Affine().Matrix3(),
		Corners:          corners,
		ViewMatrix:       view.Matrix3(),
		WindowScale:      s.scales[0].Matrix3(),
		LastWindowScale:  s.scales[1].Matrix3(),
		UseScaleForTiles: s.useScaleForTiles,
		Encoding:         enc,
		Slots:            AllocateSlots(enc),
		Prefs:            s.prefs,
		MaxIndex:         maxIndex(s.prefs.MaxPoints, s.zoom.K),
		Time:             float32(now.Sub(s.start).Milliseconds()),
		UpdateTime:       float32(s.updated.Sub(s.start).Milliseconds()),
		Modes:            s.modes,
		BlockForBuffers:  block,
	}
}

// render prepares each visible tile and issues the frame's draw. A tile that
// fails to prepare is dropped; the rest of the frame still draws.
func (s *Scheduler) render(p *FrameParams) error {
	var (
		bindings []TileBinding
		waiting  int
		failed   int
	)
	for _, tile := range s.tileSet.VisibleTiles(p.Corners) {
		b, ready, err := s.prepare(tile, p)
		if err != nil {
			failed++
			log.Printf("WARNING: dropping tile %s from frame: %v", tile.Key, err)
			continue
		}
		if !ready {
			waiting++
			continue
		}
		bindings = append(bindings, b)
	}

	// Tiles arrive finest first; coarse tiles paint first so finer ones land
	// on top.
	for i, j := 0, len(bindings)-1; i < j; i, j = i+1, j-1 {
		bindings[i], bindings[j] = bindings[j], bindings[i]
	}

	s.stats.TilesDrawn = len(bindings)
	s.stats.TilesWaiting = waiting
	s.stats.TilesFailed = failed

	drawStart := s.now()
	err := s.drawer.Draw(DrawCall{Params: p, Tiles: bindings, Overlay: s.overlay})
	s.stats.LastDrawTimeUs = float64(s.now().Sub(drawStart).Microseconds())
	if err != nil {
		s.stats.DrawFailures++
		return fmt.Errorf("render: draw: %w", err)
	}
	return nil
}

// prepare readies one tile's buffers and binds them to the frame's slots.
func (s *Scheduler) prepare(tile *tiles.Tile, p *FrameParams) (b TileBinding, ready bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	m := tiles.NewManager(tile, s.arena, s.queue)
	ready, err = m.Ready(p.Encoding, p.BlockForBuffers)
	if err != nil || !ready {
		return TileBinding{}, false, err
	}

	b = TileBinding{Tile: tile, Count: m.Count()}
	for slot := 0; slot < p.Slots.Len(); slot++ {
		field, _ := p.Slots.Field(slot)
		slice, ok := m.Attribute(field)
		if !ok {
			return TileBinding{}, false, fmt.Errorf("no buffer for %q", field)
		}
		b.Attributes[slot] = Attribute{Bound: true, Slice: slice}
	}
	return b, true, nil
}

// Close drops queued work and releases every device buffer. The scheduler
// can't be used afterward.
func (s *Scheduler) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.queue.Discard()
	s.arena.Cleanup()
}

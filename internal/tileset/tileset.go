// Package tileset is an in-memory level-of-detail quadtree of synthetic
// points. It stands in for a remote tile server: requested tiles become
// visible only after a configurable number of download calls, so the
// renderer sees the same partial, incrementally loading hierarchy it would
// against the network.
package tileset

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/irfansharif/stipple/internal/geom"
	"github.com/irfansharif/stipple/internal/tiles"
)

var tilesetLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("STIPPLE_DEBUG_TILESET") == "1" {
		tilesetLogger = log.New(os.Stdout, "[tileset] ", log.Ltime|log.Lmsgprefix)
	}
}

// Config describes the tree.
type Config struct {
	Seed     int64
	Extent   geom.Box
	RowsPer  int // rows in every tile
	MaxDepth int // depth of the deepest tiles; the root is depth 0
	Latency  int // download calls before a requested tile loads
}

// DefaultConfig returns a modest tree over [-50, 50]².
func DefaultConfig() Config {
	return Config{
		Extent:   geom.MakeBox(-50, -50, 100, 100),
		RowsPer:  4096,
		MaxDepth: 6,
		Latency:  1,
	}
}

type node struct {
	tile     *tiles.Tile
	x, y     int     // quadrant coordinates at the tile's depth
	children []*node // nil until the node loads

	requested bool
	due       int // call on which a requested node loads
	order     int // load order, for stable enumeration
}

// TileSet is a lazily generated quadtree.
type TileSet struct {
	cfg     Config
	gen     *generator
	lookups *tiles.Lookups
	root    *node
	loaded  chan struct{}

	calls    int     // download calls so far
	inflight []*node // requested, not yet loaded
	rows     int     // rows across loaded and requested tiles
	nextIx   int
	loads    int
}

// New creates a tile set and loads its root.
func New(cfg Config) (*TileSet, error) {
	if cfg.RowsPer <= 0 || cfg.MaxDepth < 0 || cfg.Extent.W <= 0 || cfg.Extent.H <= 0 {
		return nil, fmt.Errorf("tileset: invalid config %+v", cfg)
	}
	if cfg.RowsPer > 1<<24 {
		// Row indexes must stay exact as float32.
		return nil, fmt.Errorf("tileset: %d rows per tile is too many", cfg.RowsPer)
	}

	ts := &TileSet{
		cfg:     cfg,
		gen:     newGenerator(cfg.Seed, cfg.Extent),
		lookups: tiles.NewLookups(),
		loaded:  make(chan struct{}),
	}
	// Register every dictionary value up front so global codes follow
	// cluster order regardless of which tiles load first.
	for _, c := range ts.gen.clusters {
		ts.lookups.Code("cluster", c.name)
	}

	ts.root = &node{tile: tiles.NewTile("0/0/0", 0, cfg.Extent)}
	ts.request(ts.root)
	if err := ts.load(ts.root); err != nil {
		return nil, err
	}
	ts.inflight = nil
	close(ts.loaded)
	return ts, nil
}

// Features returns the parameters the seed selected.
func (ts *TileSet) Features() Features { return ts.gen.features }

// Lookups returns the global dictionary codes shared by every tile.
func (ts *TileSet) Lookups() *tiles.Lookups { return ts.lookups }

// Loaded is closed once the root tile has loaded.
func (ts *TileSet) Loaded() <-chan struct{} { return ts.loaded }

// Extent returns the data-space bounds of the tree.
func (ts *TileSet) Extent() geom.Box { return ts.cfg.Extent }

// Rows returns the number of rows loaded or requested.
func (ts *TileSet) Rows() int { return ts.rows }

// DownloadMostNeeded requests unloaded tiles overlapping corners, coarsest
// first, while the loaded and requested rows stay within maxIndex.
func (ts *TileSet) DownloadMostNeeded(corners geom.Box, maxIndex int) {
	ts.advance()
	ts.walk(func(n *node) bool {
		if !n.tile.Extent.Intersects(corners) {
			return false
		}
		if !n.requested && ts.rows+ts.cfg.RowsPer <= maxIndex {
			ts.request(n)
		}
		return true
	})
}

// DownloadToDepth requests tiles breadth-first until about maxPoints rows
// are loaded or requested.
func (ts *TileSet) DownloadToDepth(maxPoints int) {
	ts.advance()
	ts.walk(func(n *node) bool {
		if ts.rows+ts.cfg.RowsPer > maxPoints {
			return false
		}
		if !n.requested {
			ts.request(n)
		}
		return true
	})
}

// VisibleTiles returns the loaded tiles overlapping corners, finest first.
func (ts *TileSet) VisibleTiles(corners geom.Box) []*tiles.Tile {
	var visible []*node
	ts.walk(func(n *node) bool {
		if !n.tile.Extent.Intersects(corners) {
			return false
		}
		if n.tile.Ready() {
			visible = append(visible, n)
		}
		return true
	})
	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if a.tile.Depth != b.tile.Depth {
			return a.tile.Depth > b.tile.Depth
		}
		return a.order > b.order
	})
	out := make([]*tiles.Tile, len(visible))
	for i, n := range visible {
		out[i] = n.tile
	}
	return out
}

// walk visits nodes breadth-first. Children of a node are visited only if
// visit returns true for it and it has loaded.
func (ts *TileSet) walk(visit func(n *node) bool) {
	queue := []*node{ts.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !visit(n) {
			continue
		}
		queue = append(queue, n.children...)
	}
}

func (ts *TileSet) request(n *node) {
	n.requested = true
	n.due = ts.calls + ts.cfg.Latency
	ts.rows += ts.cfg.RowsPer
	ts.inflight = append(ts.inflight, n)
	tilesetLogger.Printf("requested %s (due on call %d)", n.tile.Key, n.due)
}

// advance counts a download call and loads every request that's now due.
func (ts *TileSet) advance() {
	ts.calls++
	remaining := ts.inflight[:0]
	for _, n := range ts.inflight {
		if n.due > ts.calls {
			remaining = append(remaining, n)
			continue
		}
		if err := ts.load(n); err != nil {
			log.Printf("WARNING: loading tile %s: %v", n.tile.Key, err)
		}
	}
	ts.inflight = remaining
}

// load generates a node's rows and creates its (unrequested) children.
func (ts *TileSet) load(n *node) error {
	t := n.tile
	table, err := ts.gen.table(t.Key, t.Extent, ts.cfg.RowsPer, ts.nextIx)
	if err != nil {
		return err
	}
	ts.nextIx += table.Rows()
	t.Load(table, ts.lookups)
	n.order = ts.loads
	ts.loads++

	if t.Depth < ts.cfg.MaxDepth {
		n.children = n.split()
	}
	tilesetLogger.Printf("loaded %s (%d rows)", t.Key, table.Rows())
	return nil
}

// split returns the four quadrants of a node, keyed depth/x/y.
func (n *node) split() []*node {
	t := n.tile
	w, h := t.Extent.W/2, t.Extent.H/2
	out := make([]*node, 0, 4)
	for _, q := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := 2*n.x+q[0], 2*n.y+q[1]
		key := fmt.Sprintf("%d/%d/%d", t.Depth+1, x, y)
		box := geom.MakeBox(t.Extent.X+float64(q[0])*w, t.Extent.Y+float64(q[1])*h, w, h)
		out = append(out, &node{tile: tiles.NewTile(key, t.Depth+1, box), x: x, y: y})
	}
	return out
}

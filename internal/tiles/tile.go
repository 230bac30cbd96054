// Package tiles turns tile tables into GPU-resident attribute buffers.
//
// A tile is one node of a level-of-detail hierarchy. Its column data is
// materialized lazily into arena slices the first time a channel binding
// needs it; the resulting slices are cached on the tile itself so that the
// per-frame Manager can be thrown away and recreated freely.
package tiles

import (
	"errors"

	"github.com/irfansharif/stipple/internal/geom"
)

// RowIndexKey is the column holding each row's global index. It's always
// materialized and always bound to attribute slot 0.
const RowIndexKey = "ix"

var (
	// ErrTileNotReady is returned when materializing before the tile's table
	// has loaded.
	ErrTileNotReady = errors.New("tiles: tile table not loaded")

	// ErrMissingColumn is returned when neither a dictionary-index nor a raw
	// column exists for a requested key.
	ErrMissingColumn = errors.New("tiles: missing column")

	// ErrInvalidTransition is returned when a buffer state would move backward.
	ErrInvalidTransition = errors.New("tiles: invalid buffer state transition")
)

// Tile is a node of the level-of-detail tree.
type Tile struct {
	Key    string
	Depth  int
	Extent geom.Box

	table   *Table
	lookups *Lookups
	buffers *BufferCache
}

// NewTile creates an unloaded tile.
func NewTile(key string, depth int, extent geom.Box) *Tile {
	return &Tile{Key: key, Depth: depth, Extent: extent}
}

// Load attaches the tile's table and marks it ready. lookups translates
// dictionary values into global codes and is usually shared by the tile set.
func (t *Tile) Load(table *Table, lookups *Lookups) {
	t.table = table
	t.lookups = lookups
}

// Ready reports whether the tile's table has loaded.
func (t *Tile) Ready() bool { return t.table != nil }

// Table returns the tile's table, or nil before it has loaded.
func (t *Tile) Table() *Table { return t.table }

// Evict drops the table and every cached buffer reference. The arena memory
// behind the dropped slices isn't reclaimed.
func (t *Tile) Evict() {
	t.table = nil
	t.buffers = nil
}

// Buffers returns the tile's buffer cache, creating it on first access.
func (t *Tile) Buffers() *BufferCache {
	if t.buffers == nil {
		t.buffers = newBufferCache()
	}
	return t.buffers
}

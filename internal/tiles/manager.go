package tiles

import (
	"fmt"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/memory"
)

// bytesPerElement is the size of the float32 elements written to the GPU.
const bytesPerElement = 4

// Allocator hands out device memory for materialized columns.
type Allocator interface {
	Allocate(itemCount, bytesPerItem int) (memory.Slice, error)
}

// Deferrer queues work to run outside the current call.
type Deferrer interface {
	Push(name string, run func() error)
}

// Manager materializes the buffers a tile needs for the current encoding.
// It keeps no state of its own, so a new one can be created every frame.
type Manager struct {
	tile  *Tile
	alloc Allocator
	queue Deferrer
}

// NewManager returns a manager for tile.
func NewManager(tile *Tile, alloc Allocator, queue Deferrer) *Manager {
	return &Manager{tile: tile, alloc: alloc, queue: queue}
}

// Tile returns the managed tile.
func (m *Manager) Tile() *Tile { return m.tile }

// RequiredKeys returns the columns a tile must materialize to be drawn with
// enc: every bound field plus the row index.
func RequiredKeys(enc *encoding.Encoding) []string {
	return append(enc.Fields(), RowIndexKey)
}

// Ready reports whether every column enc needs is materialized. Columns not
// yet requested are claimed and then built inline when block is set, or
// queued for later otherwise; a queued build makes Ready return false until a
// later call finds it done.
func (m *Manager) Ready(enc *encoding.Encoding, block bool) (bool, error) {
	cache := m.tile.Buffers()
	for _, key := range RequiredKeys(enc) {
		switch cache.Lookup(key).State {
		case Ready:
			continue
		case Pending:
			return false, nil
		}

		if !m.tile.Ready() {
			return false, nil
		}
		if err := cache.claim(key); err != nil {
			return false, err
		}
		if !block {
			key := key
			m.queue.Push(fmt.Sprintf("materialize %s/%s", m.tile.Key, key), func() error {
				if cache.Lookup(key).State == Ready {
					return nil // built inline by Materialize meanwhile
				}
				return m.build(cache, key)
			})
			return false, nil
		}
		if err := m.build(cache, key); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Materialize builds the buffer for key now, unless it's already ready. A
// build already queued for the key becomes a no-op.
func (m *Manager) Materialize(key string) error {
	cache := m.tile.Buffers()
	switch cache.Lookup(key).State {
	case Ready:
		return nil
	case NotRequested:
		if err := cache.claim(key); err != nil {
			return err
		}
	}
	return m.build(cache, key)
}

// build writes key's column into a fresh arena slice and resolves the claim.
// cache is the one the claim was made on; if the tile was evicted since, the
// tile is no longer ready and the build fails.
func (m *Manager) build(cache *BufferCache, key string) error {
	data, err := m.columnData(key)
	if err != nil {
		return err
	}
	slice, err := m.alloc.Allocate(len(data), bytesPerElement)
	if err != nil {
		return fmt.Errorf("tiles: allocating %q for tile %s: %w", key, m.tile.Key, err)
	}
	if err := slice.Write(data); err != nil {
		return fmt.Errorf("tiles: uploading %q for tile %s: %w", key, m.tile.Key, err)
	}
	return cache.resolve(key, slice)
}

// columnData returns key's values as float32s. Dictionary columns are decoded
// through the tile-local dictionary and then the shared lookups; native
// float32 data is returned without copying.
func (m *Manager) columnData(key string) ([]float32, error) {
	table := m.tile.Table()
	if table == nil {
		return nil, fmt.Errorf("%w: tile %s", ErrTileNotReady, m.tile.Key)
	}

	col := table.Column(key + DictSuffix)
	if col == nil {
		col = table.Column(key)
	}
	if col == nil {
		return nil, fmt.Errorf("%w: %q in tile %s (have %v)", ErrMissingColumn, key, m.tile.Key, table.Names())
	}

	if col.Dictionary != nil {
		return decodeDictionary(key, col, m.tile.lookups, m.Count()), nil
	}
	data := toFloat32(col.Data)
	if data == nil && col.Len() == 0 && table.Rows() > 0 {
		return nil, fmt.Errorf("tiles: column %q in tile %s has unsupported type %T", key, m.tile.Key, col.Data)
	}
	return data, nil
}

// Count returns the tile's row count, caching it on first access. It's zero
// until the tile loads.
func (m *Manager) Count() int {
	cache := m.tile.Buffers()
	if cache.counted {
		return cache.rows
	}
	if !m.tile.Ready() {
		return 0
	}
	cache.rows = m.tile.Table().Rows()
	cache.counted = true
	return cache.rows
}

// Attribute returns the materialized slice for key.
func (m *Manager) Attribute(key string) (memory.Slice, bool) {
	entry := m.tile.Buffers().Lookup(key)
	if entry.State != Ready {
		return memory.Slice{}, false
	}
	return entry.Slice, true
}

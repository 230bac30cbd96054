package tiles

import (
	"fmt"

	"github.com/irfansharif/stipple/internal/memory"
)

// BufferState tracks how far a column has been materialized.
type BufferState int

const (
	NotRequested BufferState = iota
	Pending                  // claimed, construction queued or running
	Ready                    // slice holds the column's data
)

func (s BufferState) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// BufferEntry is a column's materialization state. Slice is only meaningful
// when State is Ready.
type BufferEntry struct {
	State BufferState
	Slice memory.Slice
}

// BufferCache records per-column materialization state for one tile. Entries
// only ever move NotRequested → Pending → Ready.
type BufferCache struct {
	entries map[string]BufferEntry
	rows    int
	counted bool
}

func newBufferCache() *BufferCache {
	return &BufferCache{entries: make(map[string]BufferEntry)}
}

// Lookup returns the entry for key; missing keys are NotRequested.
func (c *BufferCache) Lookup(key string) BufferEntry {
	return c.entries[key]
}

// Len returns the number of claimed or ready keys.
func (c *BufferCache) Len() int { return len(c.entries) }

func (c *BufferCache) claim(key string) error {
	if st := c.entries[key].State; st != NotRequested {
		return fmt.Errorf("%w: claiming %q in state %s", ErrInvalidTransition, key, st)
	}
	c.entries[key] = BufferEntry{State: Pending}
	return nil
}

func (c *BufferCache) resolve(key string, slice memory.Slice) error {
	if st := c.entries[key].State; st != Pending {
		return fmt.Errorf("%w: resolving %q in state %s", ErrInvalidTransition, key, st)
	}
	c.entries[key] = BufferEntry{State: Ready, Slice: slice}
	return nil
}

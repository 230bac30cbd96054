// Package memory provides GPU memory management for per-tile attribute data.
//
// The arena hands out slices of large fixed-capacity device buffers using a
// bump pointer. Buffers are never compacted and slices are never freed: a
// slice lives as long as the buffer it points into.
package memory

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

var memoryLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("STIPPLE_DEBUG_MEMORY") == "1" {
		memoryLogger = log.New(os.Stdout, "[memory] ", log.Ltime|log.Lmsgprefix)
	}
}

// DefaultBufferCapacity is the size of each device buffer (64 MiB).
const DefaultBufferCapacity = 64 * 1024 * 1024

// ErrCapacityExceeded is returned when a single allocation is larger than one
// device buffer.
var ErrCapacityExceeded = errors.New("memory: allocation exceeds buffer capacity")

// Buffer is a fixed-capacity block of device memory.
type Buffer interface {
	// Handle returns the backend's name for the buffer (e.g. the GL buffer object).
	Handle() uint32
	Capacity() int
	// Write copies data into the buffer starting at the given byte offset.
	Write(offset int, data []float32) error
	Release()
}

// Device creates device buffers.
type Device interface {
	NewBuffer(capacity int) (Buffer, error)
}

// Slice references a contiguous region of a device buffer.
type Slice struct {
	Buffer Buffer
	Offset int // byte offset into Buffer
	Stride int // bytes per element
	Count  int // number of elements
}

// Size returns the slice's length in bytes.
func (s Slice) Size() int { return s.Count * s.Stride }

// Write uploads data to the region backing the slice.
func (s Slice) Write(data []float32) error {
	if len(data) > s.Count {
		return fmt.Errorf("memory: writing %d elements into slice of %d", len(data), s.Count)
	}
	return s.Buffer.Write(s.Offset, data)
}

// Arena is an append-only allocator over a pool of device buffers. Only the
// most recently created buffer receives new allocations.
type Arena struct {
	device   Device
	capacity int

	buffers []Buffer // oldest first; the last one is active
	cursor  int      // write cursor into the active buffer
	wasted  int64    // unreclaimed tails of superseded buffers

	allocations int
}

// NewArena creates an arena over the given device. A non-positive capacity
// selects DefaultBufferCapacity.
func NewArena(device Device, capacity int) *Arena {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Arena{
		device:   device,
		capacity: capacity,
	}
}

// Capacity returns the per-buffer capacity in bytes.
func (a *Arena) Capacity() int { return a.capacity }

// Allocate reserves itemCount*bytesPerItem bytes. If the active buffer can't
// fit the request a new buffer is created and made active first; the old one
// keeps serving its existing slices.
func (a *Arena) Allocate(itemCount, bytesPerItem int) (Slice, error) {
	if itemCount < 0 || bytesPerItem <= 0 {
		return Slice{}, fmt.Errorf("memory: invalid allocation of %d items × %d bytes", itemCount, bytesPerItem)
	}

	// Compare before multiplying so huge requests can't overflow past the check.
	if itemCount > a.capacity/bytesPerItem {
		return Slice{}, fmt.Errorf("%w: %s items × %d bytes requested, %s per buffer",
			ErrCapacityExceeded, formatNumber(int64(itemCount)), bytesPerItem, formatNumber(int64(a.capacity)))
	}
	size := itemCount * bytesPerItem

	if len(a.buffers) == 0 || a.cursor+size > a.capacity {
		if err := a.growBuffer(); err != nil {
			return Slice{}, err
		}
	}

	slice := Slice{
		Buffer: a.buffers[len(a.buffers)-1],
		Offset: a.cursor,
		Stride: bytesPerItem,
		Count:  itemCount,
	}
	a.cursor += size
	a.allocations++
	return slice, nil
}

// growBuffer retires the active buffer (if any) and creates a new one.
func (a *Arena) growBuffer() error {
	buf, err := a.device.NewBuffer(a.capacity)
	if err != nil {
		return fmt.Errorf("memory: creating buffer #%d: %w", len(a.buffers), err)
	}

	if len(a.buffers) > 0 {
		tail := a.capacity - a.cursor
		a.wasted += int64(tail)
		memoryLogger.Printf("retiring buffer#%03d with %s unused tail", len(a.buffers)-1, formatNumber(int64(tail)))
	}

	a.buffers = append(a.buffers, buf)
	a.cursor = 0
	memoryLogger.Printf("created buffer#%03d (%s)", len(a.buffers)-1, formatNumber(int64(a.capacity)))
	return nil
}

// Cleanup releases every device buffer. Slices handed out earlier must not be
// used afterwards.
func (a *Arena) Cleanup() {
	for _, buf := range a.buffers {
		buf.Release()
	}
	a.buffers = nil
	a.cursor = 0
	a.wasted = 0
	a.allocations = 0
}

// Package backend implements the renderer's device and draw boundaries on
// OpenGL 4.1. Everything here must run on the thread owning the GL context.
package backend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/irfansharif/stipple/internal/memory"
)

// Device creates GL array buffers for the arena.
type Device struct{}

// NewDevice returns a device on the current GL context.
func NewDevice() *Device { return &Device{} }

// NewBuffer allocates an uninitialized array buffer of the given size.
func (d *Device) NewBuffer(capacity int) (memory.Buffer, error) {
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, capacity, nil, gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &vbo)
		return nil, fmt.Errorf("backend: allocating %d byte buffer: GL error 0x%x", capacity, code)
	}
	return &buffer{vbo: vbo, capacity: capacity}, nil
}

type buffer struct {
	vbo      uint32
	capacity int
}

var _ memory.Buffer = (*buffer)(nil)

func (b *buffer) Handle() uint32 { return b.vbo }
func (b *buffer) Capacity() int  { return b.capacity }

func (b *buffer) Write(offset int, data []float32) error {
	if len(data) == 0 {
		return nil
	}
	size := len(data) * 4
	if offset < 0 || offset+size > b.capacity {
		return fmt.Errorf("backend: write of %d bytes at %d overflows buffer %d", size, offset, b.vbo)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, offset, size, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func (b *buffer) Release() {
	if b.vbo == 0 {
		return
	}
	gl.DeleteBuffers(1, &b.vbo)
	b.vbo = 0
}

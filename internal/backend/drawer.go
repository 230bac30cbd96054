package backend

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/overlay"
	"github.com/irfansharif/stipple/internal/palette"
	"github.com/irfansharif/stipple/internal/render"
)

// Drawer executes frames with one point draw per tile, after the overlay.
type Drawer struct {
	points  *Program
	overlay *Program
	vao     uint32

	colorMap uint32
	scheme   string // stops the color map was built from

	overlayVAO     uint32
	overlayVBO     uint32
	overlayVersion int
	overlayVerts   int32
}

var _ render.Drawer = (*Drawer)(nil)

// NewDrawer compiles the shaders and creates the GL objects draws reuse.
func NewDrawer() (*Drawer, error) {
	points, err := NewProgram(pointVertexSource(), pointFragmentSource)
	if err != nil {
		return nil, fmt.Errorf("backend: point program: %w", err)
	}
	ov, err := NewProgram(overlayVertexSource, overlayFragmentSource)
	if err != nil {
		points.Delete()
		return nil, fmt.Errorf("backend: overlay program: %w", err)
	}

	d := &Drawer{points: points, overlay: ov, overlayVersion: -1}
	gl.GenVertexArrays(1, &d.vao)

	gl.GenTextures(1, &d.colorMap)
	gl.BindTexture(gl.TEXTURE_2D, d.colorMap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	// Overlay vertices: x, y, r, g, b, a.
	gl.GenVertexArrays(1, &d.overlayVAO)
	gl.GenBuffers(1, &d.overlayVBO)
	gl.BindVertexArray(d.overlayVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.overlayVBO)
	stride := int32(overlay.FloatsPerVertex * 4)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, stride, gl.PtrOffset(8))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return d, nil
}

// Draw clears the frame and draws the overlay, then every tile in order.
// Depth testing is off: later tiles paint over earlier ones.
func (d *Drawer) Draw(call render.DrawCall) error {
	p := call.Params
	bg := p.Prefs.Background
	if p.ColorPicker {
		bg = [4]float32{0, 0, 0, 0}
	}
	gl.ClearColor(bg[0], bg[1], bg[2], bg[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.PROGRAM_POINT_SIZE)

	if call.Overlay != nil && !p.ColorPicker {
		d.drawOverlay(call.Overlay, mul3(p.ViewMatrix, p.WindowScale))
	}

	if err := d.updateColorMap(p.Encoding.Binding(encoding.Color, encoding.Current).Scheme); err != nil {
		log.Printf("WARNING: keeping previous color map: %v", err)
	}

	d.points.Use()
	for name, value := range p.Uniforms() {
		if err := d.points.Set(name, value); err != nil {
			log.Printf("WARNING: skipping uniform: %v", err)
		}
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.colorMap)
	if err := d.points.Set("u_color_map", int32(0)); err != nil {
		return err
	}

	gl.BindVertexArray(d.vao)
	for _, tile := range call.Tiles {
		for slot, attr := range tile.Attributes {
			loc := uint32(slot)
			if !attr.Bound {
				gl.DisableVertexAttribArray(loc)
				gl.VertexAttrib1f(loc, 0)
				continue
			}
			gl.BindBuffer(gl.ARRAY_BUFFER, attr.Slice.Buffer.Handle())
			gl.EnableVertexAttribArray(loc)
			gl.VertexAttribPointer(loc, 1, gl.FLOAT, false, 0, gl.PtrOffset(attr.Slice.Offset))
		}
		gl.DrawArrays(gl.POINTS, 0, int32(tile.Count))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("backend: GL error 0x%x after drawing %d tiles", code, len(call.Tiles))
	}
	return nil
}

// updateColorMap rebuilds the color map texture when the scheme changes.
func (d *Drawer) updateColorMap(stops []string) error {
	if len(stops) == 0 {
		stops = encoding.DefaultBinding(encoding.Color).Scheme
	}
	key := strings.Join(stops, ",")
	if key == d.scheme {
		return nil
	}
	ramp, err := palette.Ramp(stops, palette.RampSize)
	if err != nil {
		return err
	}
	texels := palette.Texels(ramp)
	gl.BindTexture(gl.TEXTURE_2D, d.colorMap)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(len(ramp)), 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(texels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	d.scheme = key
	return nil
}

// drawOverlay uploads the layer's vertices if they changed and draws them.
func (d *Drawer) drawOverlay(layer *overlay.Layer, transform [9]float32) {
	if layer.Version() != d.overlayVersion {
		verts := layer.Vertices()
		gl.BindBuffer(gl.ARRAY_BUFFER, d.overlayVBO)
		if len(verts) > 0 {
			gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.DYNAMIC_DRAW)
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
		d.overlayVerts = int32(len(verts) / overlay.FloatsPerVertex)
		d.overlayVersion = layer.Version()
	}
	if d.overlayVerts == 0 {
		return
	}
	d.overlay.Use()
	if err := d.overlay.Set("uTransform", transform); err != nil {
		log.Printf("WARNING: overlay transform: %v", err)
		return
	}
	gl.BindVertexArray(d.overlayVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, d.overlayVerts)
	gl.BindVertexArray(0)
}

// Cleanup releases the drawer's GL objects.
func (d *Drawer) Cleanup() {
	d.points.Delete()
	d.overlay.Delete()
	gl.DeleteVertexArrays(1, &d.vao)
	gl.DeleteVertexArrays(1, &d.overlayVAO)
	gl.DeleteBuffers(1, &d.overlayVBO)
	gl.DeleteTextures(1, &d.colorMap)
}

// mul3 multiplies column-major 3x3 matrices.
func mul3(a, b [9]float32) [9]float32 {
	var out [9]float32
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += a[k*3+row] * b[col*3+k]
			}
			out[col*3+row] = sum
		}
	}
	return out
}

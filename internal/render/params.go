package render

import (
	"fmt"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/geom"
)

// NoColorFilter is OnlyColor's value when every color is drawn.
const NoColorFilter = -2

// Modes are the draw-mode flags carried into each frame.
type Modes struct {
	ColorPicker bool // draw each point's row index as its color, for readback
	Grid        bool
	OnlyColor   int // draw only points whose color code matches; NoColorFilter disables
}

// FrameParams is the immutable snapshot a frame is drawn from. Nothing in it
// is shared with the scheduler, so later binding changes can't tear a frame.
type FrameParams struct {
	Width, Height int
	Zoom          geom.Zoom
	ZoomMatrix    [9]float32
	Corners       geom.Box // data-space region under the viewport

	// ViewMatrix applies the zoom to clip-space positions: clip to screen,
	// zoom, back to clip.
	ViewMatrix [9]float32

	// WindowScale maps x/y attribute values into clip space. LastWindowScale
	// is the one in effect before the most recent encoding change, which the
	// shader interpolates from.
	WindowScale      [9]float32
	LastWindowScale  [9]float32
	UseScaleForTiles bool // x/y are the tile set's own coordinates

	Encoding *encoding.Encoding
	Slots    SlotMap
	Prefs    Prefs

	MaxIndex   int     // rows with a larger index are discarded by the shader
	Time       float32 // milliseconds since the scheduler started
	UpdateTime float32 // Time at which the current encoding was applied

	Modes
	BlockForBuffers bool
}

// maxIndex is the number of rows worth drawing at zoom level k: the
// configured budget grows with the visible area's shrinkage.
func maxIndex(maxPoints int, k float64) int {
	return int(float64(maxPoints) * k * k)
}

// Uniforms flattens the frame into named shader uniforms. Values are float32,
// int32, [2]float32, [9]float32 or []float32.
func (p *FrameParams) Uniforms() map[string]any {
	u := map[string]any{
		"u_width":             float32(p.Width),
		"u_height":            float32(p.Height),
		"u_k":                 float32(p.Zoom.K),
		"u_zoom":              p.ZoomMatrix,
		"u_view":              p.ViewMatrix,
		"u_window_scale":      p.WindowScale,
		"u_last_window_scale": p.LastWindowScale,
		"u_maxix":             float32(p.MaxIndex),
		"u_time":              p.Time,
		"u_update_time":       p.UpdateTime,
		"u_transition":        float32(p.Prefs.Duration.Milliseconds()),
		"u_base_size":         p.Prefs.PointSize,
		"u_zoom_balance":      p.Prefs.ZoomBalance,
		"u_alpha":             p.Prefs.Alpha,
		"u_color_picker_mode": boolToFloat(p.ColorPicker),
		"u_grid_mode":         boolToFloat(p.Grid),
		"u_only_color":        float32(p.OnlyColor),
	}
	for _, c := range encoding.Channels {
		for _, ph := range encoding.Phases {
			b := p.Encoding.Binding(c, ph)
			u[UniformName(c, ph, "domain")] = b.Domain
			if c != encoding.Color {
				u[UniformName(c, ph, "range")] = b.Range
			}
			u[UniformName(c, ph, "transform")] = b.Transform.Code()
			u[UniformName(c, ph, "constant")] = b.Constant
			u[UniformName(c, ph, "buffer_num")] = int32(p.Slots.Slot(c, ph))
		}
	}
	return u
}

// UniformName returns the uniform carrying part of a channel phase, e.g.
// u_last_color_domain.
func UniformName(c encoding.Channel, p encoding.Phase, part string) string {
	if p == encoding.Last {
		return fmt.Sprintf("u_last_%s_%s", c.Key(), part)
	}
	return fmt.Sprintf("u_%s_%s", c.Key(), part)
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

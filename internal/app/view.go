package app

import (
	"github.com/irfansharif/stipple/internal/geom"
)

const (
	minZoom = 0.5
	maxZoom = 256.0
)

// View manages the current view state including zoom, pan, and viewport.
// Zoom scales about the viewport center; pan is in screen pixels.
type View struct {
	Zoom          float64
	PanX, PanY    float64
	Width, Height int
}

// NewView creates a new view state with default values.
func NewView(width, height int) *View {
	return &View{
		Zoom:   1.0,
		Width:  width,
		Height: height,
	}
}

// SetZoom sets the zoom level, clamping to valid range.
func (vs *View) SetZoom(zoom float64) {
	if zoom < minZoom {
		vs.Zoom = minZoom
	} else if zoom > maxZoom {
		vs.Zoom = maxZoom
	} else {
		vs.Zoom = zoom
	}
}

// SetPan sets the pan position to the given coordinates.
func (vs *View) SetPan(x, y float64) {
	vs.PanX = x
	vs.PanY = y
}

// SetViewport updates the viewport dimensions.
func (vs *View) SetViewport(width, height int) {
	vs.Width = width
	vs.Height = height
}

// Reset returns to the unzoomed, unpanned view.
func (vs *View) Reset() {
	vs.Zoom = 1.0
	vs.PanX, vs.PanY = 0, 0
}

// CenterOn pans so the canvas point p sits at the viewport center, keeping
// the zoom.
func (vs *View) CenterOn(p geom.Point) {
	cx, cy := float64(vs.Width)/2, float64(vs.Height)/2
	vs.SetPan((cx-p.X)*vs.Zoom, (cy-p.Y)*vs.Zoom)
}

// Transform returns the view as a screen-space zoom:
// screen = canvas*zoom + center*(1-zoom) + pan.
func (vs *View) Transform() geom.Zoom {
	cx, cy := float64(vs.Width)/2, float64(vs.Height)/2
	return geom.Zoom{
		K: vs.Zoom,
		X: cx*(1-vs.Zoom) + vs.PanX,
		Y: cy*(1-vs.Zoom) + vs.PanY,
	}
}

// ScreenToCanvas maps a framebuffer position to unzoomed canvas coordinates.
func (vs *View) ScreenToCanvas(x, y float64) geom.Point {
	z := vs.Transform()
	return geom.MakePoint((x-z.X)/z.K, (y-z.Y)/z.K)
}

// ZoomAt scales the view by factor, keeping the canvas point under the
// screen position (x, y) fixed.
func (vs *View) ZoomAt(x, y, factor float64) {
	centerX, centerY := float64(vs.Width)/2, float64(vs.Height)/2
	oldZoom := vs.Zoom

	// Cursor position relative to viewport center.
	cursorOffsetX, cursorOffsetY := x-centerX, y-centerY

	// What canvas point (relative to center) is under the cursor right now?
	canvasOffsetX, canvasOffsetY := (cursorOffsetX-vs.PanX)/oldZoom, (cursorOffsetY-vs.PanY)/oldZoom

	vs.SetZoom(oldZoom * factor)

	// Calculate new pan to keep that canvas point at the cursor.
	vs.SetPan(cursorOffsetX-canvasOffsetX*vs.Zoom, cursorOffsetY-canvasOffsetY*vs.Zoom)
}

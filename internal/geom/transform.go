package geom

import "math"

// Zoom is a uniform scale K followed by a translation (X, Y), in screen
// pixels.
type Zoom struct {
	K, X, Y float64
}

// IdentityZoom returns the unzoomed, unpanned transform.
func IdentityZoom() Zoom { return Zoom{K: 1} }

// Affine returns the zoom as an affine transform.
func (z Zoom) Affine() Affine { return MakeAffine(z.K, 0, z.X, 0, z.K, z.Y) }

// WindowTransform maps the data-space extent onto clip space [-1, 1]².
func WindowTransform(extent Box) Affine {
	sx, sy := 2/extent.W, 2/extent.H
	return MakeAffine(
		sx, 0, -1-extent.X*sx,
		0, sy, -1-extent.Y*sy,
	)
}

// ClipToScreen maps clip space to pixel coordinates, y pointing down.
func ClipToScreen(w, h int) Affine {
	hw, hh := float64(w)/2, float64(h)/2
	return MakeAffine(hw, 0, hw, 0, -hh, hh)
}

// DataToClip composes the window transform with the zoom, which applies in
// screen space, and returns the transform from data space to clip space.
func DataToClip(window Affine, zoom Zoom, w, h int) (Affine, error) {
	toScreen := ClipToScreen(w, h)
	toClip, err := toScreen.Inv()
	if err != nil {
		return Affine{}, err
	}
	return toClip.Mul(zoom.Affine().Mul(toScreen.Mul(window))), nil
}

// Corners returns the data-space box visible through a w×h viewport.
func Corners(window Affine, zoom Zoom, w, h int) (Box, error) {
	toScreen := zoom.Affine().Mul(ClipToScreen(w, h).Mul(window))
	inv, err := toScreen.Inv()
	if err != nil {
		return Box{}, err
	}
	p := inv.MulPoint(MakePoint(0, 0))
	q := inv.MulPoint(MakePoint(float64(w), float64(h)))
	x0, x1 := math.Min(p.X, q.X), math.Max(p.X, q.X)
	y0, y1 := math.Min(p.Y, q.Y), math.Max(p.Y, q.Y)
	return MakeBox(x0, y0, x1-x0, y1-y0), nil
}

// Matrix3 converts the transform to a column-major 3x3 matrix for GLSL.
func (t Affine) Matrix3() [9]float32 {
	return [9]float32{
		float32(t.A), float32(t.D), 0,
		float32(t.B), float32(t.E), 0,
		float32(t.C), float32(t.F), 1,
	}
}

// Package geom holds the 2D types shared by the tile tree and the renderer:
// points and boxes in data space, and the affine transforms that carry them
// through clip space onto the screen.
package geom

import (
	"errors"
	"math"
)

// ErrSingular is returned when inverting a transform that collapses the
// plane, e.g. the zero window scale before a tile set has loaded.
var ErrSingular = errors.New("geom: singular transform")

// Point is a position in whichever space the caller is working in.
type Point struct{ X, Y float64 }

// Box is an axis-aligned rectangle anchored at its minimum corner.
type Box struct{ X, Y, W, H float64 }

// Affine is a 2D transform taking (x, y) to (A*x + B*y + C, D*x + E*y + F).
type Affine struct{ A, B, C, D, E, F float64 }

func MakePoint(x, y float64) Point               { return Point{X: x, Y: y} }
func MakeBox(x, y, w, h float64) Box             { return Box{X: x, Y: y, W: w, H: h} }
func MakeAffine(a, b, c, d, e, f float64) Affine { return Affine{A: a, B: b, C: c, D: d, E: e, F: f} }

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Dist is the Euclidean distance between two points.
func Dist(p, q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Center returns the midpoint of the box.
func (b Box) Center() Point { return Point{b.X + b.W/2, b.Y + b.H/2} }

// Contains reports whether p lies inside the box (edges inclusive).
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.W && p.Y >= b.Y && p.Y <= b.Y+b.H
}

// Intersects reports whether two boxes overlap. Boxes sharing only an edge
// count, so a viewport on a tile boundary still requests both neighbours.
func (b Box) Intersects(o Box) bool {
	return b.X <= o.X+o.W && o.X <= b.X+b.W && b.Y <= o.Y+o.H && o.Y <= b.Y+b.H
}

func (t Affine) MulPoint(p Point) Point {
	return Point{t.A*p.X + t.B*p.Y + t.C, t.D*p.X + t.E*p.Y + t.F}
}

// Mul returns t∘u: u applies first.
func (t Affine) Mul(u Affine) Affine {
	return Affine{
		A: t.A*u.A + t.B*u.D, B: t.A*u.B + t.B*u.E, C: t.A*u.C + t.B*u.F + t.C,
		D: t.D*u.A + t.E*u.D, E: t.D*u.B + t.E*u.E, F: t.D*u.C + t.E*u.F + t.F,
	}
}

// Inv returns the inverse transform, or ErrSingular.
func (t Affine) Inv() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if math.Abs(det) < 1e-12 {
		return Affine{}, ErrSingular
	}
	return Affine{
		A: t.E / det, B: -t.B / det, C: (t.B*t.F - t.C*t.E) / det,
		D: -t.D / det, E: t.A / det, F: (t.C*t.D - t.A*t.F) / det,
	}, nil
}

// Package overlay holds filled polygon annotations (regions, selections) that
// are drawn in data space underneath the point layer.
package overlay

import (
	"image/color"

	"github.com/irfansharif/stipple/internal/geom"
)

// FloatsPerVertex is the vertex layout: x, y, r, g, b, a.
const FloatsPerVertex = 6

// Polygon is a simple polygon in data coordinates.
type Polygon struct {
	Points []geom.Point
	Color  color.RGBA
}

// Layer is a set of polygons, triangulated once when added.
type Layer struct {
	polygons []Polygon
	vertices []float32
	version  int
}

// Add triangulates p and appends it to the layer.
func (l *Layer) Add(p Polygon) error {
	triangles, err := earClip(p.Points)
	if err != nil {
		return err
	}
	r := float32(p.Color.R) / 255.0
	g := float32(p.Color.G) / 255.0
	b := float32(p.Color.B) / 255.0
	a := float32(p.Color.A) / 255.0
	for _, tri := range triangles {
		for v := 0; v < 3; v++ {
			l.vertices = append(l.vertices,
				float32(tri[v].X), float32(tri[v].Y), // position
				r, g, b, a, // color
			)
		}
	}
	l.polygons = append(l.polygons, p)
	l.version++
	return nil
}

// Clear removes every polygon.
func (l *Layer) Clear() {
	l.polygons = nil
	l.vertices = nil
	l.version++
}

// Len returns the number of polygons.
func (l *Layer) Len() int { return len(l.polygons) }

// Vertices returns the triangulated vertex data.
func (l *Layer) Vertices() []float32 { return l.vertices }

// Version changes whenever the vertex data does, so consumers can skip
// redundant uploads.
func (l *Layer) Version() int { return l.version }

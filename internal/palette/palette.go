// Package palette builds the color lookup tables the point shader samples
// for the color channel. It implements Lab-interpolated ramps between hex
// stops and HSV-based categorical palettes.
package palette

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// RampSize is the number of texels in a color map.
const RampSize = 256

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ramp interpolates n colors through the given hex stops in Lab space.
func Ramp(stops []string, n int) ([]color.RGBA, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("palette: empty color scheme")
	}
	if n <= 0 {
		return nil, fmt.Errorf("palette: invalid ramp size %d", n)
	}

	parsed := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("palette: stop %d: %w", i, err)
		}
		parsed[i] = c
	}

	out := make([]color.RGBA, n)
	for i := range out {
		if len(parsed) == 1 || n == 1 {
			out[i] = toRGBA(parsed[0])
			continue
		}
		// Position along the ramp, split into a segment and an offset in it.
		t := float64(i) / float64(n-1) * float64(len(parsed)-1)
		seg := int(t)
		if seg >= len(parsed)-1 {
			seg = len(parsed) - 2
		}
		out[i] = toRGBA(parsed[seg].BlendLab(parsed[seg+1], t-float64(seg)).Clamped())
	}
	return out, nil
}

// Categorical returns n well-separated colors for dictionary fields, using
// HSV generation with a golden-ratio hue walk.
func Categorical(r *rand.Rand, n int) []color.RGBA {
	out := make([]color.RGBA, n)
	hue := r.Float64() * 360
	for i := range out {
		hue += 137.508 // golden angle
		for hue >= 360 {
			hue -= 360
		}
		sat := clamp(0.55+r.Float64()*0.3, 0, 1)
		val := clamp(0.65+r.Float64()*0.3, 0, 1)
		out[i] = toRGBA(colorful.Hsv(hue, sat, val))
	}
	return out
}

// CategoricalScheme returns Categorical's colors as hex stops, for use as a
// color binding's scheme.
func CategoricalScheme(r *rand.Rand, n int) []string {
	colors := Categorical(r, n)
	out := make([]string, len(colors))
	for i, c := range colors {
		cf, _ := colorful.MakeColor(c)
		out[i] = cf.Hex()
	}
	return out
}

// Texels flattens colors into RGBA bytes for texture upload.
func Texels(colors []color.RGBA) []uint8 {
	out := make([]uint8, 0, len(colors)*4)
	for _, c := range colors {
		out = append(out, c.R, c.G, c.B, c.A)
	}
	return out
}

func toRGBA(c colorful.Color) color.RGBA {
	red, green, blue := c.RGB255()
	return color.RGBA{R: red, G: green, B: blue, A: 255}
}

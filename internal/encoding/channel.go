// Package encoding describes how data fields map onto visual channels.
//
// Each channel carries two phases, current and last, so the renderer can
// interpolate between the previous binding and the new one.
package encoding

import "fmt"

// Channel is a visual property that can be bound to a data field. The
// declaration order is the priority order used when attribute slots run out.
type Channel int

const (
	X Channel = iota
	Y
	Color
	Size
	JitterRadius
	JitterSpeed
	Glyph
	AuxX
	AuxY
	Filter1
	Filter2

	NumChannels = iota
)

// Channels lists every channel in priority order.
var Channels = []Channel{X, Y, Color, Size, JitterRadius, JitterSpeed, Glyph, AuxX, AuxY, Filter1, Filter2}

// Key is the channel's name in shader uniforms (u_<key>_domain etc.).
func (c Channel) Key() string {
	switch c {
	case X:
		return "x"
	case Y:
		return "y"
	case Color:
		return "color"
	case Size:
		return "size"
	case JitterRadius:
		return "jitter_radius"
	case JitterSpeed:
		return "jitter_speed"
	case Glyph:
		return "character"
	case AuxX:
		return "x0"
	case AuxY:
		return "y0"
	case Filter1:
		return "filter1"
	case Filter2:
		return "filter2"
	default:
		return "unknown"
	}
}

func (c Channel) String() string { return c.Key() }

// ParseChannel returns the channel with the given key.
func ParseChannel(key string) (Channel, error) {
	for _, c := range Channels {
		if c.Key() == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("encoding: unknown channel %q", key)
}

// Phase selects one of a channel's two temporal bindings.
type Phase int

const (
	Current Phase = iota
	Last
)

// Phases lists both phases, current first.
var Phases = []Phase{Current, Last}

func (p Phase) String() string {
	if p == Current {
		return "current"
	}
	return "last"
}

// Transform is the scale applied to a field before it reaches its range.
type Transform int

const (
	Linear Transform = iota + 1
	Sqrt
	Log
	Literal
)

// Code is the integer passed to the shader.
func (t Transform) Code() int32 { return int32(t) }

func (t Transform) String() string {
	switch t {
	case Linear:
		return "linear"
	case Sqrt:
		return "sqrt"
	case Log:
		return "log"
	case Literal:
		return "literal"
	default:
		return "invalid"
	}
}

// ParseTransform parses a transform name.
func ParseTransform(s string) (Transform, error) {
	for _, t := range []Transform{Linear, Sqrt, Log, Literal} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("encoding: invalid transform %q", s)
}

package encoding

import "fmt"

// Binding is one phase of a channel: either a data field scaled from Domain
// into Range, or a constant.
type Binding struct {
	Field     string // empty when the phase uses Constant
	Domain    [2]float32
	Range     [2]float32
	Transform Transform
	Constant  []float32 // 1 component, or 3 for color
	Scheme    []string  // hex color stops, color channel only
}

// Bound reports whether the binding reads a data field.
func (b Binding) Bound() bool { return b.Field != "" }

func (b Binding) clone() Binding {
	out := b
	if b.Constant != nil {
		out.Constant = append([]float32(nil), b.Constant...)
	}
	if b.Scheme != nil {
		out.Scheme = append([]string(nil), b.Scheme...)
	}
	return out
}

// Aesthetic holds both phases of one channel.
type Aesthetic struct {
	Current Binding
	Last    Binding
}

// Phase returns the binding for the given phase.
func (a Aesthetic) Phase(p Phase) Binding {
	if p == Current {
		return a.Current
	}
	return a.Last
}

// Encoding is the full set of channel bindings. The renderer reads it once per
// frame; changes go through Apply.
type Encoding struct {
	aes [NumChannels]Aesthetic
}

// New returns an encoding with every channel set to its default constant.
func New() *Encoding {
	e := &Encoding{}
	for _, c := range Channels {
		d := DefaultBinding(c)
		e.aes[c] = Aesthetic{Current: d, Last: d.clone()}
	}
	return e
}

// DefaultBinding is the constant binding a channel starts with.
func DefaultBinding(c Channel) Binding {
	b := Binding{
		Domain:    [2]float32{0, 1},
		Range:     [2]float32{0, 1},
		Transform: Linear,
		Constant:  []float32{defaultConstant(c)},
	}
	switch c {
	case X, Y, AuxX, AuxY:
		b.Transform = Literal
		b.Domain = [2]float32{-1, 1}
		b.Range = [2]float32{-1, 1}
	case Color:
		b.Constant = []float32{0.4, 0.4, 0.5}
		b.Scheme = []string{"#440154", "#21918c", "#fde725"}
	case Size:
		b.Transform = Sqrt
		b.Range = [2]float32{0.5, 2}
	}
	return b
}

// ConstantLen is the number of components in a channel's constant: an RGB
// triple for color, a scalar otherwise.
func ConstantLen(c Channel) int {
	if c == Color {
		return 3
	}
	return 1
}

// Validate reports a binding the shader can't take for channel c.
func (b Binding) Validate(c Channel) error {
	if b.Constant != nil && len(b.Constant) != ConstantLen(c) {
		return fmt.Errorf("encoding: %s constant has %d components, want %d", c, len(b.Constant), ConstantLen(c))
	}
	if b.Transform < 0 || b.Transform > Literal {
		return fmt.Errorf("encoding: %s has invalid transform %d", c, b.Transform)
	}
	return nil
}

func defaultConstant(c Channel) float32 {
	switch c {
	case Size, Filter1, Filter2:
		return 1
	default:
		return 0
	}
}

// Get returns both phases of a channel.
func (e *Encoding) Get(c Channel) Aesthetic { return e.aes[c] }

// Binding returns a single phase of a channel.
func (e *Encoding) Binding(c Channel, p Phase) Binding { return e.aes[c].Phase(p) }

// Apply installs b as the channel's current binding, moving the previous
// current binding to last. A missing transform or a constant of the wrong
// width takes the channel default, since the shader reads both even for
// bound channels.
func (e *Encoding) Apply(c Channel, b Binding) {
	if b.Transform == 0 {
		b.Transform = DefaultBinding(c).Transform
	}
	if len(b.Constant) != ConstantLen(c) {
		b.Constant = DefaultBinding(c).Constant
	}
	e.aes[c].Last = e.aes[c].Current
	e.aes[c].Current = b.clone()
}

// Settle copies every current binding into last, ending all transitions.
func (e *Encoding) Settle() {
	for _, c := range Channels {
		e.aes[c].Last = e.aes[c].Current.clone()
	}
}

// Fields returns every bound field across both phases of every channel in
// priority order, without duplicates.
func (e *Encoding) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, c := range Channels {
		for _, p := range Phases {
			f := e.aes[c].Phase(p).Field
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// Snapshot returns a deep copy that later Apply calls don't affect.
func (e *Encoding) Snapshot() *Encoding {
	out := &Encoding{}
	for _, c := range Channels {
		out.aes[c] = Aesthetic{
			Current: e.aes[c].Current.clone(),
			Last:    e.aes[c].Last.clone(),
		}
	}
	return out
}

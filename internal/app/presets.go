package app

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/palette"
	"github.com/irfansharif/stipple/internal/tileset"
)

// Preset is a named set of channel bindings.
type Preset struct {
	Name     string
	Bindings map[encoding.Channel]encoding.Binding
}

// Presets returns the encodings the viewer cycles through, built over the
// synthetic tile set's columns.
func Presets(f tileset.Features, seed int64) []Preset {
	clusters := encoding.Binding{
		Field:     "cluster",
		Domain:    [2]float32{0, float32(f.NumClusters - 1)},
		Transform: encoding.Linear,
		Scheme:    palette.CategoricalScheme(rand.New(rand.NewSource(seed)), f.NumClusters),
	}
	years := [2]float32{float32(f.FirstYear), float32(f.FirstYear + f.Years - 1)}
	x := encoding.Binding{Field: "x", Transform: encoding.Literal}
	y := encoding.Binding{Field: "y", Transform: encoding.Literal}
	constant := func(c encoding.Channel) encoding.Binding { return encoding.DefaultBinding(c) }
	speed := constant(encoding.JitterSpeed)
	speed.Constant = []float32{2}

	return []Preset{
		{
			Name: "clusters",
			Bindings: map[encoding.Channel]encoding.Binding{
				encoding.X:            x,
				encoding.Y:            y,
				encoding.Color:        clusters,
				encoding.Size:         constant(encoding.Size),
				encoding.JitterRadius: constant(encoding.JitterRadius),
			},
		},
		{
			Name: "year",
			Bindings: map[encoding.Channel]encoding.Binding{
				encoding.X: x,
				encoding.Y: y,
				encoding.Color: {
					Field:     "year",
					Domain:    years,
					Transform: encoding.Linear,
					Scheme:    []string{"#0d0887", "#cc4778", "#f0f921"},
				},
				encoding.Size: {
					Field:     "distance",
					Domain:    [2]float32{0, 30},
					Range:     [2]float32{2.5, 0.5},
					Transform: encoding.Sqrt,
				},
			},
		},
		{
			Name: "distance",
			Bindings: map[encoding.Channel]encoding.Binding{
				encoding.X: x,
				encoding.Y: y,
				encoding.Color: {
					Field:     "distance",
					Domain:    [2]float32{0.1, 50},
					Transform: encoding.Log,
					Scheme:    []string{"#fde725", "#21918c", "#440154"},
				},
				encoding.Size: constant(encoding.Size),
			},
		},
		{
			// Scaled x/y: tiles can no longer be chosen by viewport.
			Name: "timeline",
			Bindings: map[encoding.Channel]encoding.Binding{
				encoding.X:     {Field: "year", Domain: years, Range: [2]float32{-1, 1}, Transform: encoding.Linear},
				encoding.Y:     {Field: "distance", Domain: [2]float32{0, 40}, Range: [2]float32{-1, 1}, Transform: encoding.Linear},
				encoding.Color: clusters,
			},
		},
		{
			Name: "jitter",
			Bindings: map[encoding.Channel]encoding.Binding{
				encoding.X:     x,
				encoding.Y:     y,
				encoding.Color: clusters,
				encoding.JitterRadius: {
					Field:     "distance",
					Domain:    [2]float32{0, 30},
					Range:     [2]float32{0, 0.02},
					Transform: encoding.Linear,
				},
				encoding.JitterSpeed: speed,
			},
		},
	}
}

// ReadPresets loads presets from a JSON file of the form
//
//	[{"name": "year", "channels": {"color": {"field": "year", "domain": [1950, 2000]}}}]
//
// Anything a channel leaves out keeps the channel's default binding.
func ReadPresets(path string) ([]Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	presets, err := ParsePresets(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return presets, nil
}

// ParsePresets decodes a JSON preset library.
func ParsePresets(data []byte) ([]Preset, error) {
	type rawBinding struct {
		Field     *string     `json:"field"`
		Domain    *[2]float32 `json:"domain"`
		Range     *[2]float32 `json:"range"`
		Transform *string     `json:"transform"`
		Constant  []float32   `json:"constant"`
		Scheme    []string    `json:"scheme"`
	}

	type rawPreset struct {
		Name     string                `json:"name"`
		Channels map[string]rawBinding `json:"channels"`
	}

	convertRawBinding := func(c encoding.Channel, raw rawBinding) (encoding.Binding, error) {
		b := encoding.DefaultBinding(c)
		if raw.Field != nil {
			b.Field = *raw.Field
		}
		if raw.Domain != nil {
			b.Domain = *raw.Domain
		}
		if raw.Range != nil {
			b.Range = *raw.Range
		}
		if raw.Transform != nil {
			t, err := encoding.ParseTransform(*raw.Transform)
			if err != nil {
				return encoding.Binding{}, err
			}
			b.Transform = t
		}
		if raw.Constant != nil {
			b.Constant = raw.Constant
		}
		if raw.Scheme != nil {
			if _, err := palette.Ramp(raw.Scheme, 2); err != nil {
				return encoding.Binding{}, fmt.Errorf("%s scheme: %w", c, err)
			}
			b.Scheme = raw.Scheme
		}
		return b, b.Validate(c)
	}

	var rawLib []rawPreset
	if err := json.Unmarshal(data, &rawLib); err != nil {
		return nil, err
	}
	if len(rawLib) == 0 {
		return nil, fmt.Errorf("no presets")
	}

	presets := make([]Preset, len(rawLib))
	for i, raw := range rawLib {
		p := Preset{Name: raw.Name, Bindings: make(map[encoding.Channel]encoding.Binding)}
		if p.Name == "" {
			p.Name = fmt.Sprintf("preset %d", i)
		}
		for key, rb := range raw.Channels {
			c, err := encoding.ParseChannel(key)
			if err != nil {
				return nil, fmt.Errorf("preset %q: %w", p.Name, err)
			}
			b, err := convertRawBinding(c, rb)
			if err != nil {
				return nil, fmt.Errorf("preset %q: %w", p.Name, err)
			}
			p.Bindings[c] = b
		}
		presets[i] = p
	}
	return presets, nil
}

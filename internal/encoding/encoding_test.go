package encoding

import "testing"

func TestChannelPriorityOrder(t *testing.T) {
	want := []string{"x", "y", "color", "size", "jitter_radius", "jitter_speed", "character", "x0", "y0", "filter1", "filter2"}
	if len(Channels) != NumChannels || len(want) != NumChannels {
		t.Fatalf("got %d channels, NumChannels = %d", len(Channels), NumChannels)
	}
	for i, c := range Channels {
		if int(c) != i {
			t.Errorf("Channels[%d] = %d, want declaration order", i, c)
		}
		if c.Key() != want[i] {
			t.Errorf("Channels[%d].Key() = %q, want %q", i, c.Key(), want[i])
		}
		parsed, err := ParseChannel(want[i])
		if err != nil || parsed != c {
			t.Errorf("ParseChannel(%q) = %v, %v", want[i], parsed, err)
		}
	}
	if _, err := ParseChannel("opacity"); err == nil {
		t.Errorf("ParseChannel(opacity) succeeded, want error")
	}
}

func TestTransformCodes(t *testing.T) {
	tests := []struct {
		name string
		code int32
	}{
		{"linear", 1},
		{"sqrt", 2},
		{"log", 3},
		{"literal", 4},
	}
	for _, tt := range tests {
		tr, err := ParseTransform(tt.name)
		if err != nil {
			t.Fatalf("ParseTransform(%q) error = %v", tt.name, err)
		}
		if tr.Code() != tt.code {
			t.Errorf("%s.Code() = %d, want %d", tt.name, tr.Code(), tt.code)
		}
	}
	if _, err := ParseTransform("exp"); err == nil {
		t.Errorf("ParseTransform(exp) succeeded, want error")
	}
}

func TestApplyShiftsCurrentToLast(t *testing.T) {
	e := New()
	e.Apply(Color, Binding{Field: "year", Domain: [2]float32{1900, 2000}})
	e.Apply(Color, Binding{Field: "month", Domain: [2]float32{1, 12}})

	got := e.Get(Color)
	if got.Current.Field != "month" || got.Last.Field != "year" {
		t.Fatalf("color = %+v/%+v, want current month, last year", got.Current.Field, got.Last.Field)
	}
	if got.Current.Transform != Linear {
		t.Errorf("default transform = %v, want linear", got.Current.Transform)
	}

	e.Settle()
	if f := e.Binding(Color, Last).Field; f != "month" {
		t.Errorf("last after Settle = %q, want month", f)
	}
}

func TestApplyDefaultsConstantWidth(t *testing.T) {
	tests := []struct {
		name     string
		c        Channel
		constant []float32
		want     []float32
	}{
		{"bound x without constant", X, nil, DefaultBinding(X).Constant},
		{"color without constant", Color, nil, DefaultBinding(Color).Constant},
		{"color with a scalar", Color, []float32{1}, DefaultBinding(Color).Constant},
		{"size with a pair", Size, []float32{1, 2}, DefaultBinding(Size).Constant},
		{"size constant kept", Size, []float32{3}, []float32{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.Apply(tt.c, Binding{Field: "f", Constant: tt.constant})
			got := e.Binding(tt.c, Current).Constant
			if len(got) != len(tt.want) {
				t.Fatalf("constant = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("constant = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBindingValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Channel
		b    Binding
		ok   bool
	}{
		{"no constant", X, Binding{Field: "x"}, true},
		{"scalar", Size, Binding{Constant: []float32{2}}, true},
		{"rgb color", Color, Binding{Constant: []float32{1, 0, 0}}, true},
		{"scalar color", Color, Binding{Constant: []float32{1}}, false},
		{"pair", JitterSpeed, Binding{Constant: []float32{1, 2}}, false},
		{"bad transform", X, Binding{Transform: Literal + 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.b.Validate(tt.c); (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestFieldsDeduplicatesInPriorityOrder(t *testing.T) {
	e := New()
	e.Apply(Color, Binding{Field: "year"})
	e.Apply(X, Binding{Field: "x"})
	e.Apply(Y, Binding{Field: "y"})
	e.Apply(Size, Binding{Field: "year"})

	got := e.Fields()
	want := []string{"x", "y", "year"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", got, want)
		}
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	e := New()
	e.Apply(X, Binding{Field: "x", Constant: []float32{1}})
	snap := e.Snapshot()

	e.Apply(X, Binding{Field: "lon"})
	e.Get(Color).Current.Constant[0] = 99

	if f := snap.Binding(X, Current).Field; f != "x" {
		t.Errorf("snapshot x = %q, want x", f)
	}
	if c := snap.Binding(Color, Current).Constant[0]; c == 99 {
		t.Errorf("snapshot shares constant storage with the live encoding")
	}
}

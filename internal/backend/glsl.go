package backend

import (
	"fmt"
	"strings"

	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/render"
)

// pointVertexSource generates the point vertex shader. Every attribute slot is
// declared as a float input; each channel phase reads whichever slot its
// buffer_num uniform names, or its constant when that is -1.
func pointVertexSource() string {
	var b strings.Builder
	b.WriteString("#version 330 core\n\n")
	for i := 0; i < render.MaxAttributeSlots; i++ {
		fmt.Fprintf(&b, "layout (location = %d) in float buffer_%d;\n", i, i)
	}
	b.WriteString(`
uniform mat3 u_view;
uniform mat3 u_window_scale;
uniform mat3 u_last_window_scale;
uniform float u_k;
uniform float u_maxix;
uniform float u_time;
uniform float u_update_time;
uniform float u_transition;
uniform float u_base_size;
uniform float u_zoom_balance;
uniform float u_alpha;
uniform float u_color_picker_mode;
uniform float u_grid_mode;
uniform float u_only_color;
uniform sampler2D u_color_map;

out vec4 v_color;

`)
	b.WriteString("float slot_value(int slot) {\n    switch (slot) {\n")
	for i := 0; i < render.MaxAttributeSlots; i++ {
		fmt.Fprintf(&b, "    case %d: return buffer_%d;\n", i, i)
	}
	b.WriteString("    }\n    return 0.0;\n}\n")

	// Transform codes match encoding.Transform.
	b.WriteString(`
float to_unit(float v, vec2 domain, int transform) {
    if (transform == 2) {
        return (sqrt(v) - sqrt(domain.x)) / (sqrt(domain.y) - sqrt(domain.x));
    }
    if (transform == 3) {
        return (log(v) - log(domain.x)) / (log(domain.y) - log(domain.x));
    }
    return (v - domain.x) / (domain.y - domain.x);
}

float scaled(int slot, vec2 domain, vec2 range, int transform, float constant) {
    if (slot < 0) {
        return constant;
    }
    float v = slot_value(slot);
    if (transform == 4) {
        return v;
    }
    return mix(range.x, range.y, to_unit(v, domain, transform));
}

vec3 colored(int slot, vec2 domain, int transform, vec3 constant) {
    if (slot < 0) {
        return constant;
    }
    float v = slot_value(slot);
    float t = transform == 4 ? (v + 0.5) / 256.0 : clamp(to_unit(v, domain, transform), 0.0, 1.0);
    return texture(u_color_map, vec2(t, 0.5)).rgb;
}
`)

	for _, c := range encoding.Channels {
		for _, p := range encoding.Phases {
			writeChannel(&b, c, p)
		}
	}

	b.WriteString(`
void main() {
    float ix = buffer_0;
    float ease = u_transition > 0.0 ? clamp((u_time - u_update_time) / u_transition, 0.0, 1.0) : 1.0;

    vec2 pos = (u_window_scale * vec3(value_x(), value_y(), 1.0)).xy;
    vec2 last_pos = (u_last_window_scale * vec3(value_last_x(), value_last_y(), 1.0)).xy;
    if (u_grid_mode > 0.5) {
        pos = vec2(value_x0(), value_y0());
        last_pos = vec2(value_last_x0(), value_last_y0());
    }
    vec2 p = mix(last_pos, pos, ease);

    float radius = mix(value_last_jitter_radius(), value_jitter_radius(), ease);
    float angle = ix * 2.399963 + u_time / 1000.0 * value_jitter_speed();
    p += radius * vec2(cos(angle), sin(angle));

    gl_Position = vec4((u_view * vec3(p, 1.0)).xy, 0.0, 1.0);
    gl_PointSize = u_base_size * mix(value_last_size(), value_size(), ease) * pow(u_k, u_zoom_balance);

    bool hidden = ix > u_maxix
        || mix(value_last_filter1(), value_filter1(), ease) < 0.5
        || mix(value_last_filter2(), value_filter2(), ease) < 0.5;
    if (u_only_color > -1.5 && u_color_buffer_num >= 0
        && abs(slot_value(u_color_buffer_num) - u_only_color) > 0.5) {
        hidden = true;
    }
    if (hidden) {
        gl_Position = vec4(2.0, 2.0, 2.0, 1.0);
    }

    if (u_color_picker_mode > 0.5) {
        // Index 0 is the background.
        float i = ix + 1.0;
        v_color = vec4(mod(i, 256.0), mod(floor(i / 256.0), 256.0), mod(floor(i / 65536.0), 256.0), 255.0) / 255.0;
    } else {
        v_color = vec4(mix(value_last_color(), value_color(), ease), u_alpha);
    }
}
`)
	return b.String()
}

// writeChannel declares a channel phase's uniforms and its value_ accessor.
func writeChannel(b *strings.Builder, c encoding.Channel, p encoding.Phase) {
	name := func(part string) string { return render.UniformName(c, p, part) }
	fn := "value_" + c.Key()
	if p == encoding.Last {
		fn = "value_last_" + c.Key()
	}

	fmt.Fprintf(b, "\nuniform vec2 %s;\n", name("domain"))
	fmt.Fprintf(b, "uniform int %s;\n", name("transform"))
	fmt.Fprintf(b, "uniform int %s;\n", name("buffer_num"))
	if c == encoding.Color {
		fmt.Fprintf(b, "uniform vec3 %s;\n", name("constant"))
		fmt.Fprintf(b, "vec3 %s() { return colored(%s, %s, %s, %s); }\n",
			fn, name("buffer_num"), name("domain"), name("transform"), name("constant"))
		return
	}
	fmt.Fprintf(b, "uniform vec2 %s;\n", name("range"))
	fmt.Fprintf(b, "uniform float %s;\n", name("constant"))
	fmt.Fprintf(b, "float %s() { return scaled(%s, %s, %s, %s, %s); }\n",
		fn, name("buffer_num"), name("domain"), name("range"), name("transform"), name("constant"))
}

// Round points with a soft edge.
const pointFragmentSource = `
#version 330 core
in vec4 v_color;
out vec4 FragColor;

void main() {
    vec2 c = gl_PointCoord * 2.0 - 1.0;
    float r = dot(c, c);
    if (r > 1.0) {
        discard;
    }
    FragColor = vec4(v_color.rgb, v_color.a * (1.0 - smoothstep(0.8, 1.0, r)));
}
`

// Overlay vertex shader. Applies the data-to-clip transform to the vertices
// and forwards the color to the fragment shader.
const overlayVertexSource = `
#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec4 aColor;

uniform mat3 uTransform;

out vec4 vColor;

void main() {
    gl_Position = vec4((uTransform * vec3(aPos, 1.0)).xy, 0.0, 1.0);
    vColor = aColor;
}
`

// Overlay fragment shader. Simply applies the vertex-shader forwarded color.
const overlayFragmentSource = `
#version 330 core
in vec4 vColor;
out vec4 FragColor;

void main() {
    FragColor = vColor;
}
`

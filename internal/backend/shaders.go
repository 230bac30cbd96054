package backend

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Program is a linked shader program with cached uniform locations.
type Program struct {
	id        uint32
	locations map[string]int32
}

// NewProgram compiles and links a program from vertex and fragment sources.
func NewProgram(vertexSource, fragmentSource string) (*Program, error) {
	vertexShader, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fragmentShader)

	// Link shader program.
	id := gl.CreateProgram()
	gl.AttachShader(id, vertexShader)
	gl.AttachShader(id, fragmentShader)
	gl.LinkProgram(id)

	// Check linking status.
	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(id, logLength, nil, gl.Str(logText))
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("shader linking failed: %s", strings.TrimRight(logText, "\x00"))
	}
	return &Program{id: id, locations: make(map[string]int32)}, nil
}

// Use makes the program current.
func (p *Program) Use() { gl.UseProgram(p.id) }

// location returns a uniform's location, or -1 if the linker dropped it.
func (p *Program) location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.locations[name] = loc
	return loc
}

// Set assigns a uniform on the current program. Uniforms the shader doesn't
// use are ignored.
func (p *Program) Set(name string, value any) error {
	loc := p.location(name)
	if loc < 0 {
		return nil
	}
	switch v := value.(type) {
	case float32:
		gl.Uniform1f(loc, v)
	case int32:
		gl.Uniform1i(loc, v)
	case [2]float32:
		gl.Uniform2f(loc, v[0], v[1])
	case [4]float32:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case [9]float32:
		gl.UniformMatrix3fv(loc, 1, false, &v[0])
	case []float32:
		switch len(v) {
		case 1:
			gl.Uniform1f(loc, v[0])
		case 3:
			gl.Uniform3f(loc, v[0], v[1], v[2])
		default:
			return fmt.Errorf("uniform %s: unsupported vector length %d", name, len(v))
		}
	default:
		return fmt.Errorf("uniform %s: unsupported type %T", name, value)
	}
	return nil
}

// Delete frees the program.
func (p *Program) Delete() { gl.DeleteProgram(p.id) }

// compileShader compiles a single shader from source.
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	// Check compilation status.
	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compilation failed: %s", strings.TrimRight(logText, "\x00"))
	}
	return shader, nil
}

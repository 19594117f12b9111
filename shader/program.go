package shader

import (
	"fmt"
	"log"
	"strings"

	"github.com/richinsley/gospinner/graphics"
)

// Compile allocates a shader object for stage, compiles source into it and
// returns the handle. The failed object is released before an error is returned.
func Compile(dev graphics.Device, stage graphics.Stage, source string) (graphics.Shader, error) {
	if !stage.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStage, stage)
	}
	if strings.TrimSpace(source) == "" {
		return 0, fmt.Errorf("%s: %w", stage, ErrEmptySource)
	}

	sh := dev.CreateShader(stage)
	if sh == 0 {
		return 0, &ShaderAllocationError{Stage: stage}
	}
	dev.ShaderSource(sh, source)
	dev.CompileShader(sh)

	if !dev.ShaderCompiled(sh) {
		logText := dev.ShaderInfoLog(sh)
		dev.DeleteShader(sh)
		return 0, &ShaderCompileError{Stage: stage, Log: logText}
	}
	return sh, nil
}

// Link attaches both stages to a new program object and links it. On success
// the shader objects are released; the program keeps its own copy.
func Link(dev graphics.Device, vertex, fragment graphics.Shader) (graphics.Program, error) {
	if vertex == 0 || fragment == 0 {
		return 0, ErrNotCompiled
	}

	program := dev.CreateProgram()
	if program == 0 {
		return 0, ErrProgramAllocation
	}
	dev.AttachShader(program, vertex)
	dev.AttachShader(program, fragment)
	dev.LinkProgram(program)

	if !dev.ProgramLinked(program) {
		logText := dev.ProgramInfoLog(program)
		dev.DeleteProgram(program)
		return 0, &ProgramLinkError{Log: logText}
	}

	dev.DeleteShader(vertex)
	dev.DeleteShader(fragment)
	return program, nil
}

// Build compiles the vertex stage, then the fragment stage, then links them.
// The first failure is returned and nothing is left allocated. Build never
// makes the program current.
func Build(dev graphics.Device, vertexSource, fragmentSource string) (graphics.Program, error) {
	vs, err := Compile(dev, graphics.StageVertex, vertexSource)
	if err != nil {
		return 0, err
	}
	fs, err := Compile(dev, graphics.StageFragment, fragmentSource)
	if err != nil {
		dev.DeleteShader(vs)
		return 0, err
	}
	program, err := Link(dev, vs, fs)
	if err != nil {
		dev.DeleteShader(vs)
		dev.DeleteShader(fs)
		return 0, err
	}
	return program, nil
}

// UniformLocation resolves name in program, failing if it is not active.
func UniformLocation(dev graphics.Device, program graphics.Program, name string) (graphics.UniformLocation, error) {
	loc := dev.UniformLocation(program, name)
	if loc < 0 {
		return graphics.NoUniform, &UniformNotFoundError{Name: name}
	}
	return loc, nil
}

// AttribLocation resolves the vertex attribute name in program.
func AttribLocation(dev graphics.Device, program graphics.Program, name string) (graphics.AttribLocation, error) {
	loc := dev.AttribLocation(program, name)
	if loc < 0 {
		return graphics.NoAttrib, &AttributeNotFoundError{Name: name}
	}
	return loc, nil
}

// Builder builds programs for the built-in sources of one dialect.
type Builder struct {
	dev     graphics.Device
	version Version
}

func NewBuilder(dev graphics.Device, version Version) *Builder {
	return &Builder{dev: dev, version: version}
}

// Build compiles and links the built-in vertex and fragment sources.
func (b *Builder) Build() (graphics.Program, error) {
	return b.BuildSources(VertexSource(b.version), FragmentSource(b.version))
}

// BuildSources compiles and links caller supplied sources. The stages of vs
// and fs must be vertex and fragment respectively.
func (b *Builder) BuildSources(vs, fs Source) (graphics.Program, error) {
	if vs.Stage != graphics.StageVertex || fs.Stage != graphics.StageFragment {
		return 0, fmt.Errorf("%w: got %v and %v", ErrInvalidStage, vs.Stage, fs.Stage)
	}
	program, err := Build(b.dev, vs.Text, fs.Text)
	if err != nil {
		return 0, fmt.Errorf("failed to create shader program: %w", err)
	}
	log.Printf("Built %s shader program %d", b.version, program)
	return program, nil
}

package graphics

import "fmt"

// Stage is one half of a shader program.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Valid reports whether s names a supported pipeline stage.
func (s Stage) Valid() bool {
	return s == StageVertex || s == StageFragment
}

// Handles are owned by the device. The zero value of Shader, Program and
// Buffer means "no object".
type (
	Shader  uint32
	Program uint32
	Buffer  uint32
)

// Locations are -1 when the name is not an active variable of the program.
type (
	UniformLocation int32
	AttribLocation  int32
)

const (
	NoUniform UniformLocation = -1
	NoAttrib  AttribLocation  = -1
)

// Device is the subset of the GL API the renderer consumes. All calls must be
// made from the goroutine that owns the current context.
type Device interface {
	// CreateShader returns 0 if the shader object could not be allocated.
	CreateShader(stage Stage) Shader
	ShaderSource(s Shader, source string)
	CompileShader(s Shader)
	ShaderCompiled(s Shader) bool
	ShaderInfoLog(s Shader) string
	DeleteShader(s Shader)

	// CreateProgram returns 0 if the program object could not be allocated.
	CreateProgram() Program
	AttachShader(p Program, s Shader)
	LinkProgram(p Program)
	ProgramLinked(p Program) bool
	ProgramInfoLog(p Program) string
	DeleteProgram(p Program)
	UseProgram(p Program)

	AttribLocation(p Program, name string) AttribLocation
	UniformLocation(p Program, name string) UniformLocation

	CreateBuffer() Buffer
	// BufferData binds b as the array buffer and uploads data with static usage.
	BufferData(b Buffer, data []float32)
	DeleteBuffer(b Buffer)
	// VertexAttribPointer enables loc and points it at tightly packed float
	// vectors of the given size in the bound array buffer.
	VertexAttribPointer(loc AttribLocation, size int)

	Viewport(x, y, width, height int)
	ClearColor(r, g, b, a float32)
	Clear()
	DrawTriangles(first, count int)
	Uniform1f(loc UniformLocation, v float32)
	// ReadPixels returns the RGBA8 contents of the default framebuffer.
	ReadPixels(width, height int) []byte

	// Err returns and clears the first pending error recorded by the device.
	Err() error
}

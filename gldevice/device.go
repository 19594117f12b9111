// Package gldevice implements graphics.Device on top of go-gl. Sources are
// validated and rewritten by the shader translator before they reach the
// driver, so the same WebGL-flavoured GLSL runs on desktop GL and GLES.
package gldevice

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/translator"
)

var (
	glInitOnce sync.Once
	glInitErr  error
)

// initGL loads the GL function pointers for the current context. The loader
// is process-wide, so it only runs once.
func initGL() error {
	glInitOnce.Do(func() {
		if err := gl.Init(); err != nil {
			glInitErr = fmt.Errorf("failed to initialize OpenGL: %w", err)
			return
		}
		log.Printf("OpenGL version: %s", gl.GoStr(gl.GetString(gl.VERSION)))
	})
	return glInitErr
}

type shaderState struct {
	stage  graphics.Stage
	source string
	// translateLog is set when the translator rejected the source; the driver
	// never sees such a shader.
	translateLog string
	names        map[string]string
}

// Device issues GL calls on the current context.
type Device struct {
	format translator.Format
	vao    uint32

	shaders  map[uint32]*shaderState
	attached map[uint32][]uint32
	names    map[uint32]map[string]string
}

// New returns a device for the context current on the calling thread.
// format is the dialect the driver accepts.
func New(format translator.Format) (*Device, error) {
	if err := initGL(); err != nil {
		return nil, err
	}
	d := &Device{
		format:   format,
		shaders:  make(map[uint32]*shaderState),
		attached: make(map[uint32][]uint32),
		names:    make(map[uint32]map[string]string),
	}
	// Core profiles refuse to draw without a bound vertex array object.
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	return d, nil
}

func glStage(stage graphics.Stage) uint32 {
	if stage == graphics.StageFragment {
		return gl.FRAGMENT_SHADER
	}
	return gl.VERTEX_SHADER
}

func (d *Device) CreateShader(stage graphics.Stage) graphics.Shader {
	if !stage.Valid() {
		return 0
	}
	s := gl.CreateShader(glStage(stage))
	if s != 0 {
		d.shaders[s] = &shaderState{stage: stage}
	}
	return graphics.Shader(s)
}

func (d *Device) ShaderSource(s graphics.Shader, source string) {
	if st, ok := d.shaders[uint32(s)]; ok {
		st.source = source
	}
}

func (d *Device) CompileShader(s graphics.Shader) {
	st, ok := d.shaders[uint32(s)]
	if !ok {
		gl.CompileShader(uint32(s))
		return
	}
	res, err := translator.Translate(st.stage, st.source, d.format)
	if err != nil {
		st.translateLog = err.Error()
		if st.translateLog == "" {
			st.translateLog = "shader translation failed"
		}
		return
	}
	st.translateLog = ""
	st.names = res.Names

	csources, free := gl.Strs(res.Code + "\x00")
	gl.ShaderSource(uint32(s), 1, csources, nil)
	free()
	gl.CompileShader(uint32(s))
}

func (d *Device) ShaderCompiled(s graphics.Shader) bool {
	if st, ok := d.shaders[uint32(s)]; ok && st.translateLog != "" {
		return false
	}
	var status int32
	gl.GetShaderiv(uint32(s), gl.COMPILE_STATUS, &status)
	return status == gl.TRUE
}

func (d *Device) ShaderInfoLog(s graphics.Shader) string {
	if st, ok := d.shaders[uint32(s)]; ok && st.translateLog != "" {
		return st.translateLog
	}
	var logLength int32
	gl.GetShaderiv(uint32(s), gl.INFO_LOG_LENGTH, &logLength)
	if logLength <= 0 {
		return ""
	}
	logText := strings.Repeat("\x00", int(logLength+1))
	gl.GetShaderInfoLog(uint32(s), logLength, nil, gl.Str(logText))
	return strings.TrimRight(logText, "\x00")
}

func (d *Device) DeleteShader(s graphics.Shader) {
	delete(d.shaders, uint32(s))
	gl.DeleteShader(uint32(s))
}

func (d *Device) CreateProgram() graphics.Program {
	return graphics.Program(gl.CreateProgram())
}

func (d *Device) AttachShader(p graphics.Program, s graphics.Shader) {
	d.attached[uint32(p)] = append(d.attached[uint32(p)], uint32(s))
	gl.AttachShader(uint32(p), uint32(s))
}

func (d *Device) LinkProgram(p graphics.Program) {
	names := make(map[string]string)
	for _, s := range d.attached[uint32(p)] {
		if st, ok := d.shaders[s]; ok {
			for k, v := range st.names {
				names[k] = v
			}
		}
	}
	d.names[uint32(p)] = names
	gl.LinkProgram(uint32(p))
}

func (d *Device) ProgramLinked(p graphics.Program) bool {
	var status int32
	gl.GetProgramiv(uint32(p), gl.LINK_STATUS, &status)
	return status == gl.TRUE
}

func (d *Device) ProgramInfoLog(p graphics.Program) string {
	var logLength int32
	gl.GetProgramiv(uint32(p), gl.INFO_LOG_LENGTH, &logLength)
	if logLength <= 0 {
		return ""
	}
	logText := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(uint32(p), logLength, nil, gl.Str(logText))
	return strings.TrimRight(logText, "\x00")
}

func (d *Device) DeleteProgram(p graphics.Program) {
	delete(d.attached, uint32(p))
	delete(d.names, uint32(p))
	gl.DeleteProgram(uint32(p))
}

func (d *Device) UseProgram(p graphics.Program) {
	gl.UseProgram(uint32(p))
}

// mapped returns the name the translator gave a source variable of p.
func (d *Device) mapped(p graphics.Program, name string) string {
	if m, ok := d.names[uint32(p)][name]; ok && m != "" {
		return m
	}
	return name
}

func (d *Device) AttribLocation(p graphics.Program, name string) graphics.AttribLocation {
	return graphics.AttribLocation(gl.GetAttribLocation(uint32(p), gl.Str(d.mapped(p, name)+"\x00")))
}

func (d *Device) UniformLocation(p graphics.Program, name string) graphics.UniformLocation {
	return graphics.UniformLocation(gl.GetUniformLocation(uint32(p), gl.Str(d.mapped(p, name)+"\x00")))
}

func (d *Device) CreateBuffer() graphics.Buffer {
	var b uint32
	gl.GenBuffers(1, &b)
	return graphics.Buffer(b)
}

func (d *Device) BufferData(b graphics.Buffer, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.STATIC_DRAW)
		return
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
}

func (d *Device) DeleteBuffer(b graphics.Buffer) {
	buf := uint32(b)
	gl.DeleteBuffers(1, &buf)
}

func (d *Device) VertexAttribPointer(loc graphics.AttribLocation, size int) {
	if loc < 0 {
		return
	}
	gl.EnableVertexAttribArray(uint32(loc))
	gl.VertexAttribPointer(uint32(loc), int32(size), gl.FLOAT, false, int32(size*4), gl.PtrOffset(0))
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) ClearColor(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
}

func (d *Device) Clear() {
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *Device) DrawTriangles(first, count int) {
	gl.DrawArrays(gl.TRIANGLES, int32(first), int32(count))
}

func (d *Device) Uniform1f(loc graphics.UniformLocation, v float32) {
	gl.Uniform1f(int32(loc), v)
}

func (d *Device) ReadPixels(width, height int) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}

// Err drains the GL error queue and returns the first error found.
func (d *Device) Err() error {
	var first uint32
	for i := 0; i < 16; i++ {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			break
		}
		if first == 0 {
			first = code
		}
	}
	if first == 0 {
		return nil
	}
	return &Error{Code: first}
}

// Close releases the vertex array object.
func (d *Device) Close() {
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

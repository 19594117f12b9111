// Package softgl is a software implementation of graphics.Device and
// graphics.Context. It performs no rasterisation; it validates shader sources,
// tracks object lifetimes and GL error state, and records every draw call
// together with the uniform values and vertex data it would have consumed.
package softgl

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/translator"
)

var (
	ErrContextLost      = errors.New("softgl: context lost")
	ErrInvalidOperation = errors.New("softgl: invalid operation")
	ErrInvalidValue     = errors.New("softgl: invalid value")
)

// CompileFunc validates source for stage and returns the info log and whether
// compilation succeeded.
type CompileFunc func(stage graphics.Stage, source string) (infoLog string, ok bool)

// Call is one recorded device call.
type Call struct {
	Name string
	Args []any
}

// Draw is a recorded draw call.
type Draw struct {
	Program  graphics.Program
	First    int
	Count    int
	Uniforms map[string]float32
	// Vertices holds the array buffer contents bound to each attribute.
	Vertices map[string][]float32
}

type shaderObject struct {
	stage    graphics.Stage
	source   string
	compiled bool
	log      string
}

type programObject struct {
	shaders  []graphics.Shader
	linked   bool
	log      string
	uniforms map[string]graphics.UniformLocation
	attribs  map[string]graphics.AttribLocation
	values   map[graphics.UniformLocation]float32
}

type attribPointer struct {
	buffer graphics.Buffer
	size   int
}

// Device is a recording graphics.Device.
type Device struct {
	compile CompileFunc

	// Allocation failures to simulate.
	FailShaderAlloc  map[graphics.Stage]bool
	FailProgramAlloc bool

	nextName uint32
	shaders  map[graphics.Shader]*shaderObject
	programs map[graphics.Program]*programObject
	buffers  map[graphics.Buffer][]float32
	pointers map[graphics.AttribLocation]attribPointer

	bound   graphics.Buffer
	current graphics.Program

	viewport   [4]int
	clearColor [4]float32
	cleared    int
	drawn      int

	lost bool
	err  error

	norecord bool
	calls    []Call
	draws    []Draw
}

// Option configures a Device.
type Option func(*Device)

// WithCompiler replaces the translator-backed source validation.
func WithCompiler(fn CompileFunc) Option {
	return func(d *Device) { d.compile = fn }
}

// WithoutRecording stops the device from keeping its call and draw history.
// Calls and Draws then stay empty, which a long running dry run needs.
func WithoutRecording() Option {
	return func(d *Device) { d.norecord = true }
}

// NewDevice returns an empty device. Unless WithCompiler is given, sources are
// validated with the shader translator.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		compile:         TranslatorCompiler(translator.FormatESSL),
		FailShaderAlloc: make(map[graphics.Stage]bool),
		shaders:         make(map[graphics.Shader]*shaderObject),
		programs:        make(map[graphics.Program]*programObject),
		buffers:         make(map[graphics.Buffer][]float32),
		pointers:        make(map[graphics.AttribLocation]attribPointer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TranslatorCompiler validates sources with the shader translator.
func TranslatorCompiler(format translator.Format) CompileFunc {
	return func(stage graphics.Stage, source string) (string, bool) {
		if _, err := translator.Translate(stage, source, format); err != nil {
			return err.Error(), false
		}
		return "", true
	}
}

var mainRe = regexp.MustCompile(`\bvoid\s+main\s*\(\s*(?:void\s*)?\)`)

// SyntaxCompiler is a CompileFunc that checks only the shape of a source: a
// main function and balanced brackets. It needs no translator.
func SyntaxCompiler(stage graphics.Stage, source string) (string, bool) {
	var open []rune
	line := 1
	for _, r := range source {
		switch r {
		case '\n':
			line++
		case '(', '{', '[':
			open = append(open, r)
		case ')', '}', ']':
			want := map[rune]rune{')': '(', '}': '{', ']': '['}[r]
			if len(open) == 0 || open[len(open)-1] != want {
				return fmt.Sprintf("ERROR: 0:%d: '%c' : syntax error", line, r), false
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return fmt.Sprintf("ERROR: 0:%d: '' : syntax error, unexpected end of %s shader", line, stage), false
	}
	if !mainRe.MatchString(source) {
		return "ERROR: 0:1: '' : Missing main()", false
	}
	return "", true
}

func (d *Device) record(name string, args ...any) {
	if d.norecord {
		return
	}
	d.calls = append(d.calls, Call{Name: name, Args: args})
}

func (d *Device) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// live reports whether the context can still execute calls, recording
// ErrContextLost if it cannot.
func (d *Device) live() bool {
	if d.lost {
		d.fail(ErrContextLost)
		return false
	}
	return true
}

func (d *Device) name() uint32 {
	d.nextName++
	return d.nextName
}

// LoseContext makes every later call fail with ErrContextLost.
func (d *Device) LoseContext() {
	d.lost = true
}

// IsContextLost reports whether LoseContext has been called.
func (d *Device) IsContextLost() bool { return d.lost }

// Calls returns every call recorded so far.
func (d *Device) Calls() []Call { return d.calls }

// CallNames returns the names of the recorded calls in order.
func (d *Device) CallNames() []string {
	names := make([]string, len(d.calls))
	for i, c := range d.calls {
		names[i] = c.Name
	}
	return names
}

// Draws returns every recorded draw call.
func (d *Device) Draws() []Draw { return d.draws }

// LiveShaders is the number of shader objects not yet deleted.
func (d *Device) LiveShaders() int { return len(d.shaders) }

// LivePrograms is the number of program objects not yet deleted.
func (d *Device) LivePrograms() int { return len(d.programs) }

// CurrentProgram returns the program last passed to UseProgram.
func (d *Device) CurrentProgram() graphics.Program { return d.current }

// ViewportRect returns the last viewport.
func (d *Device) ViewportRect() [4]int { return d.viewport }

// ClearCount is the number of Clear calls that succeeded.
func (d *Device) ClearCount() int { return d.cleared }

// DrawCount is the number of draws executed, recorded or not.
func (d *Device) DrawCount() int { return d.drawn }

func (d *Device) CreateShader(stage graphics.Stage) graphics.Shader {
	d.record("CreateShader", stage)
	if !d.live() {
		return 0
	}
	if !stage.Valid() {
		d.fail(ErrInvalidValue)
		return 0
	}
	if d.FailShaderAlloc[stage] {
		return 0
	}
	s := graphics.Shader(d.name())
	d.shaders[s] = &shaderObject{stage: stage}
	return s
}

func (d *Device) ShaderSource(s graphics.Shader, source string) {
	d.record("ShaderSource", s, source)
	if !d.live() {
		return
	}
	obj, ok := d.shaders[s]
	if !ok {
		d.fail(ErrInvalidValue)
		return
	}
	obj.source = source
}

func (d *Device) CompileShader(s graphics.Shader) {
	d.record("CompileShader", s)
	if !d.live() {
		return
	}
	obj, ok := d.shaders[s]
	if !ok {
		d.fail(ErrInvalidValue)
		return
	}
	obj.log, obj.compiled = d.compile(obj.stage, obj.source)
}

func (d *Device) ShaderCompiled(s graphics.Shader) bool {
	d.record("ShaderCompiled", s)
	if !d.live() {
		return false
	}
	obj, ok := d.shaders[s]
	return ok && obj.compiled
}

func (d *Device) ShaderInfoLog(s graphics.Shader) string {
	d.record("ShaderInfoLog", s)
	if !d.live() {
		return ""
	}
	if obj, ok := d.shaders[s]; ok {
		return obj.log
	}
	return ""
}

func (d *Device) DeleteShader(s graphics.Shader) {
	d.record("DeleteShader", s)
	if !d.live() {
		return
	}
	delete(d.shaders, s)
}

func (d *Device) CreateProgram() graphics.Program {
	d.record("CreateProgram")
	if !d.live() || d.FailProgramAlloc {
		return 0
	}
	p := graphics.Program(d.name())
	d.programs[p] = &programObject{
		uniforms: make(map[string]graphics.UniformLocation),
		attribs:  make(map[string]graphics.AttribLocation),
		values:   make(map[graphics.UniformLocation]float32),
	}
	return p
}

func (d *Device) AttachShader(p graphics.Program, s graphics.Shader) {
	d.record("AttachShader", p, s)
	if !d.live() {
		return
	}
	prog, ok := d.programs[p]
	if !ok {
		d.fail(ErrInvalidValue)
		return
	}
	if _, ok := d.shaders[s]; !ok {
		d.fail(ErrInvalidValue)
		return
	}
	prog.shaders = append(prog.shaders, s)
}

// LinkProgram requires exactly one compiled vertex and one compiled fragment
// stage. Declared names become active variables: inputs of the vertex stage
// are attributes and uniforms of either stage are uniforms.
func (d *Device) LinkProgram(p graphics.Program) {
	d.record("LinkProgram", p)
	if !d.live() {
		return
	}
	prog, ok := d.programs[p]
	if !ok {
		d.fail(ErrInvalidValue)
		return
	}

	var stages [2]*shaderObject
	for _, s := range prog.shaders {
		obj, ok := d.shaders[s]
		if !ok {
			continue
		}
		if stages[obj.stage] != nil {
			prog.log = fmt.Sprintf("error: more than one %s shader attached", obj.stage)
			return
		}
		stages[obj.stage] = obj
	}
	for i, obj := range stages {
		stage := graphics.Stage(i)
		if obj == nil {
			prog.log = fmt.Sprintf("error: no %s shader attached", stage)
			return
		}
		if !obj.compiled {
			prog.log = fmt.Sprintf("error: %s shader is not compiled", stage)
			return
		}
	}

	vertexUniforms := uniformsOf(stages[graphics.StageVertex].source)
	fragmentUniforms := uniformsOf(stages[graphics.StageFragment].source)
	names := append(vertexUniforms, fragmentUniforms...)
	sort.Strings(names)

	next := graphics.UniformLocation(0)
	for _, name := range names {
		if _, dup := prog.uniforms[name]; dup {
			continue
		}
		prog.uniforms[name] = next
		next++
	}
	attrib := graphics.AttribLocation(0)
	for _, name := range inputsOf(stages[graphics.StageVertex].source) {
		prog.attribs[name] = attrib
		attrib++
	}
	prog.linked = true
	prog.log = ""
}

var uniformRe = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*;`)
var inputRe = regexp.MustCompile(`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?(?:attribute|in)\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*;`)

func uniformsOf(source string) []string {
	var names []string
	for _, m := range uniformRe.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

func inputsOf(source string) []string {
	var names []string
	for _, m := range inputRe.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

func (d *Device) ProgramLinked(p graphics.Program) bool {
	d.record("ProgramLinked", p)
	if !d.live() {
		return false
	}
	prog, ok := d.programs[p]
	return ok && prog.linked
}

func (d *Device) ProgramInfoLog(p graphics.Program) string {
	d.record("ProgramInfoLog", p)
	if !d.live() {
		return ""
	}
	if prog, ok := d.programs[p]; ok {
		return prog.log
	}
	return ""
}

func (d *Device) DeleteProgram(p graphics.Program) {
	d.record("DeleteProgram", p)
	if !d.live() {
		return
	}
	delete(d.programs, p)
	if d.current == p {
		d.current = 0
	}
}

func (d *Device) UseProgram(p graphics.Program) {
	d.record("UseProgram", p)
	if !d.live() {
		return
	}
	if p != 0 {
		prog, ok := d.programs[p]
		if !ok || !prog.linked {
			d.fail(ErrInvalidOperation)
			return
		}
	}
	d.current = p
}

func (d *Device) AttribLocation(p graphics.Program, name string) graphics.AttribLocation {
	d.record("AttribLocation", p, name)
	if !d.live() {
		return graphics.NoAttrib
	}
	prog, ok := d.programs[p]
	if !ok || !prog.linked {
		d.fail(ErrInvalidOperation)
		return graphics.NoAttrib
	}
	if loc, ok := prog.attribs[name]; ok {
		return loc
	}
	return graphics.NoAttrib
}

func (d *Device) UniformLocation(p graphics.Program, name string) graphics.UniformLocation {
	d.record("UniformLocation", p, name)
	if !d.live() {
		return graphics.NoUniform
	}
	prog, ok := d.programs[p]
	if !ok || !prog.linked {
		d.fail(ErrInvalidOperation)
		return graphics.NoUniform
	}
	if loc, ok := prog.uniforms[name]; ok {
		return loc
	}
	return graphics.NoUniform
}

func (d *Device) CreateBuffer() graphics.Buffer {
	d.record("CreateBuffer")
	if !d.live() {
		return 0
	}
	b := graphics.Buffer(d.name())
	d.buffers[b] = nil
	return b
}

func (d *Device) BufferData(b graphics.Buffer, data []float32) {
	d.record("BufferData", b, len(data))
	if !d.live() {
		return
	}
	if _, ok := d.buffers[b]; !ok {
		d.fail(ErrInvalidOperation)
		return
	}
	d.buffers[b] = append([]float32(nil), data...)
	d.bound = b
}

func (d *Device) DeleteBuffer(b graphics.Buffer) {
	d.record("DeleteBuffer", b)
	if !d.live() {
		return
	}
	delete(d.buffers, b)
	if d.bound == b {
		d.bound = 0
	}
}

func (d *Device) VertexAttribPointer(loc graphics.AttribLocation, size int) {
	d.record("VertexAttribPointer", loc, size)
	if !d.live() {
		return
	}
	if loc < 0 || size < 1 || size > 4 {
		d.fail(ErrInvalidValue)
		return
	}
	if d.bound == 0 {
		d.fail(ErrInvalidOperation)
		return
	}
	d.pointers[loc] = attribPointer{buffer: d.bound, size: size}
}

func (d *Device) Viewport(x, y, width, height int) {
	d.record("Viewport", x, y, width, height)
	if !d.live() {
		return
	}
	if width < 0 || height < 0 {
		d.fail(ErrInvalidValue)
		return
	}
	d.viewport = [4]int{x, y, width, height}
}

func (d *Device) ClearColor(r, g, b, a float32) {
	d.record("ClearColor", r, g, b, a)
	if !d.live() {
		return
	}
	d.clearColor = [4]float32{clamp01(r), clamp01(g), clamp01(b), clamp01(a)}
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (d *Device) Clear() {
	d.record("Clear")
	if !d.live() {
		return
	}
	d.cleared++
}

func (d *Device) DrawTriangles(first, count int) {
	d.record("DrawTriangles", first, count)
	if !d.live() {
		return
	}
	if first < 0 || count < 0 {
		d.fail(ErrInvalidValue)
		return
	}
	prog, ok := d.programs[d.current]
	if d.current == 0 || !ok {
		d.fail(ErrInvalidOperation)
		return
	}

	draw := Draw{
		Program:  d.current,
		First:    first,
		Count:    count,
		Uniforms: make(map[string]float32, len(prog.uniforms)),
		Vertices: make(map[string][]float32, len(prog.attribs)),
	}
	for name, loc := range prog.uniforms {
		draw.Uniforms[name] = prog.values[loc]
	}
	for name, loc := range prog.attribs {
		ptr, ok := d.pointers[loc]
		if !ok {
			continue
		}
		data := d.buffers[ptr.buffer]
		lo, hi := first*ptr.size, (first+count)*ptr.size
		if hi > len(data) {
			d.fail(ErrInvalidOperation)
			return
		}
		draw.Vertices[name] = append([]float32(nil), data[lo:hi]...)
	}
	d.drawn++
	if !d.norecord {
		d.draws = append(d.draws, draw)
	}
}

// Uniform1f follows GL: location -1 is silently ignored, any other location
// that is not active in the current program is an invalid operation.
func (d *Device) Uniform1f(loc graphics.UniformLocation, v float32) {
	d.record("Uniform1f", loc, v)
	if !d.live() {
		return
	}
	if loc == graphics.NoUniform {
		return
	}
	prog, ok := d.programs[d.current]
	if d.current == 0 || !ok {
		d.fail(ErrInvalidOperation)
		return
	}
	for _, l := range prog.uniforms {
		if l == loc {
			prog.values[loc] = v
			return
		}
	}
	d.fail(ErrInvalidOperation)
}

// ReadPixels returns the framebuffer filled with the clear colour.
func (d *Device) ReadPixels(width, height int) []byte {
	d.record("ReadPixels", width, height)
	if !d.live() || width <= 0 || height <= 0 {
		return nil
	}
	px := make([]byte, width*height*4)
	var c [4]byte
	for i, v := range d.clearColor {
		c[i] = byte(v*255 + 0.5)
	}
	for i := 0; i < len(px); i += 4 {
		copy(px[i:i+4], c[:])
	}
	return px
}

func (d *Device) Err() error {
	err := d.err
	d.err = nil
	return err
}

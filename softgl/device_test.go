package softgl

import (
	"testing"
	"time"

	"github.com/richinsley/gospinner/graphics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVertex = `attribute vec3 position;
uniform float angle;
void main() {
    gl_Position = vec4(position, 1.0);
}
`
	testFragment = `precision mediump float;
uniform float brightness;
void main() {
    gl_FragColor = vec4(brightness);
}
`
)

func linkTestProgram(t *testing.T, d *Device) graphics.Program {
	t.Helper()
	vs := d.CreateShader(graphics.StageVertex)
	d.ShaderSource(vs, testVertex)
	d.CompileShader(vs)
	require.True(t, d.ShaderCompiled(vs))

	fs := d.CreateShader(graphics.StageFragment)
	d.ShaderSource(fs, testFragment)
	d.CompileShader(fs)
	require.True(t, d.ShaderCompiled(fs))

	p := d.CreateProgram()
	d.AttachShader(p, vs)
	d.AttachShader(p, fs)
	d.LinkProgram(p)
	require.True(t, d.ProgramLinked(p), d.ProgramInfoLog(p))
	return p
}

func TestLinkCollectsActiveVariables(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	p := linkTestProgram(t, d)

	assert.Equal(t, graphics.UniformLocation(0), d.UniformLocation(p, "angle"))
	assert.Equal(t, graphics.UniformLocation(1), d.UniformLocation(p, "brightness"))
	assert.Equal(t, graphics.NoUniform, d.UniformLocation(p, "missing"))
	assert.Equal(t, graphics.AttribLocation(0), d.AttribLocation(p, "position"))
	assert.Equal(t, graphics.NoAttrib, d.AttribLocation(p, "normal"))
	assert.NoError(t, d.Err())
}

func TestLinkRequiresBothStages(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	vs := d.CreateShader(graphics.StageVertex)
	d.ShaderSource(vs, testVertex)
	d.CompileShader(vs)

	p := d.CreateProgram()
	d.AttachShader(p, vs)
	d.LinkProgram(p)
	assert.False(t, d.ProgramLinked(p))
	assert.Contains(t, d.ProgramInfoLog(p), "no fragment shader")
}

func TestUniform1f(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	p := linkTestProgram(t, d)

	d.Uniform1f(0, 1)
	assert.ErrorIs(t, d.Err(), ErrInvalidOperation, "no program is current")

	d.UseProgram(p)
	d.Uniform1f(graphics.NoUniform, 1)
	assert.NoError(t, d.Err(), "location -1 is ignored")

	d.Uniform1f(42, 1)
	assert.ErrorIs(t, d.Err(), ErrInvalidOperation)

	d.Uniform1f(d.UniformLocation(p, "angle"), 1.25)
	d.DrawTriangles(0, 0)
	require.NoError(t, d.Err())
	require.Len(t, d.Draws(), 1)
	assert.Equal(t, float32(1.25), d.Draws()[0].Uniforms["angle"])
	assert.Equal(t, float32(0), d.Draws()[0].Uniforms["brightness"])
}

func TestDrawRecordsVertices(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	p := linkTestProgram(t, d)
	d.UseProgram(p)

	b := d.CreateBuffer()
	d.BufferData(b, []float32{1, 2, 3, 4, 5, 6})
	d.VertexAttribPointer(d.AttribLocation(p, "position"), 3)
	d.DrawTriangles(1, 1)
	require.NoError(t, d.Err())
	assert.Equal(t, []float32{4, 5, 6}, d.Draws()[0].Vertices["position"])

	d.DrawTriangles(0, 3)
	assert.ErrorIs(t, d.Err(), ErrInvalidOperation, "draw reads past the end of the buffer")
}

func TestDrawWithoutProgram(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	d.DrawTriangles(0, 3)
	assert.ErrorIs(t, d.Err(), ErrInvalidOperation)
	assert.NoError(t, d.Err(), "Err clears the recorded error")
}

func TestLoseContext(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	p := linkTestProgram(t, d)
	d.UseProgram(p)
	d.LoseContext()
	assert.True(t, d.IsContextLost())

	d.Clear()
	d.DrawTriangles(0, 3)
	assert.ErrorIs(t, d.Err(), ErrContextLost)
	assert.Empty(t, d.Draws())
	assert.Equal(t, 0, d.ClearCount())
	assert.Zero(t, d.CreateShader(graphics.StageVertex))
	assert.ErrorIs(t, d.Err(), ErrContextLost)
}

func TestSyntaxCompiler(t *testing.T) {
	_, ok := SyntaxCompiler(graphics.StageVertex, testVertex)
	assert.True(t, ok)

	log, ok := SyntaxCompiler(graphics.StageFragment, "void main() { gl_FragColor = vec4(1.0; }")
	assert.False(t, ok)
	assert.Contains(t, log, "syntax error")

	log, ok = SyntaxCompiler(graphics.StageFragment, "precision mediump float;")
	assert.False(t, ok)
	assert.Contains(t, log, "main")

	log, ok = SyntaxCompiler(graphics.StageVertex, "void main() {")
	assert.False(t, ok)
	assert.Contains(t, log, "vertex")
}

func TestContext(t *testing.T) {
	c := New(16, 8, WithCompiler(SyntaxCompiler))
	w, h := c.GetFramebufferSize()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)

	c.CloseAfter(2)
	assert.False(t, c.ShouldClose())
	c.EndFrame()
	c.EndFrame()
	assert.True(t, c.ShouldClose())
	assert.Equal(t, 2, c.Frames())

	c.Shutdown()
	assert.True(t, c.SoftDevice().IsContextLost())
}

func TestReadPixels(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler))
	d.ClearColor(1, 0, 0.5, 2)
	px := d.ReadPixels(2, 1)
	assert.Equal(t, []byte{255, 0, 128, 255, 255, 0, 128, 255}, px)
	assert.Nil(t, d.ReadPixels(0, 1))
}

func TestWithoutRecording(t *testing.T) {
	d := NewDevice(WithCompiler(SyntaxCompiler), WithoutRecording())
	p := linkTestProgram(t, d)
	d.UseProgram(p)
	loc := d.UniformLocation(p, "angle")

	for i := 0; i < 10000; i++ {
		d.Uniform1f(loc, float32(i))
		d.Clear()
		d.DrawTriangles(0, 0)
	}
	require.NoError(t, d.Err())
	assert.Empty(t, d.Calls())
	assert.Empty(t, d.Draws())
	assert.Equal(t, 10000, d.ClearCount())
	assert.Equal(t, 10000, d.DrawCount())

	d.DrawTriangles(-1, 3)
	assert.ErrorIs(t, d.Err(), ErrInvalidValue, "errors are still raised")
}

func TestEndFrameHoldsRefreshPeriod(t *testing.T) {
	c := New(16, 8, WithCompiler(SyntaxCompiler))
	c.SetRefresh(20 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 4; i++ {
		c.EndFrame()
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, 4, c.Frames())
	assert.Zero(t, c.Waited(), "pacing is not a Wait")
}

func TestEndFrameUnpaced(t *testing.T) {
	c := New(16, 8, WithCompiler(SyntaxCompiler))
	c.SetRefresh(time.Hour)
	c.OnWait = func(time.Duration) {}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			c.EndFrame()
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("EndFrame slept although OnWait was set")
	}
	assert.Equal(t, 3, c.Frames())
}

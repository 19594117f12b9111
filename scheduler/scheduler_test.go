package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richinsley/gospinner/eventloop"
	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/shader"
	"github.com/richinsley/gospinner/softgl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixture is a software context with the built-in program current and an
// event loop whose clock only moves when the test or a Wait moves it.
type fixture struct {
	ctx   *softgl.Context
	dev   *softgl.Device
	clock *fakeClock
	loop  *eventloop.Loop
	angle graphics.UniformLocation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := softgl.New(64, 64, softgl.WithCompiler(softgl.SyntaxCompiler))
	dev := ctx.SoftDevice()
	clock := &fakeClock{now: time.Unix(500, 0)}
	ctx.OnWait = clock.Advance

	v := shader.VersionLegacy
	program, err := shader.Build(dev, shader.VertexSource(v).Text, shader.FragmentSource(v).Text)
	require.NoError(t, err)
	dev.UseProgram(program)
	angle, err := shader.UniformLocation(dev, program, shader.UniformAngle)
	require.NoError(t, err)

	return &fixture{
		ctx:   ctx,
		dev:   dev,
		clock: clock,
		loop:  eventloop.New(ctx, eventloop.WithClock(clock.Now)),
		angle: angle,
	}
}

func (f *fixture) config(cfg Config) Config {
	cfg.Clock = f.clock.Now
	return cfg
}

func TestFrameTicksInOrder(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(5)
	f.loop.OnPresent(func() { f.clock.Advance(16 * time.Millisecond) })

	var ticks []FrameTick
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		OnTick: func(tick FrameTick) { ticks = append(ticks, tick) },
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Equal(t, Armed, s.State())

	require.NoError(t, f.loop.Run(context.Background()))

	require.Len(t, ticks, 5)
	for i, tick := range ticks {
		assert.Equal(t, uint64(i+1), tick.Seq)
		assert.InDelta(t, float64(i)*0.016, tick.Seconds, 1e-9)
	}
	assert.Equal(t, uint64(5), s.Ticks())

	draws := f.dev.Draws()
	require.Len(t, draws, 5)
	for i, d := range draws {
		assert.Equal(t, 0, d.First)
		assert.Equal(t, 3, d.Count)
		assert.Equal(t, float32(ticks[i].Seconds), d.Uniforms[shader.UniformAngle])
	}
	assert.Equal(t, 5, f.dev.ClearCount())
}

func TestTickOrder(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(2)
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, f.loop.Run(context.Background()))

	var names []string
	for _, name := range f.dev.CallNames() {
		switch name {
		case "Uniform1f", "Clear", "DrawTriangles":
			names = append(names, name)
		}
	}
	assert.Equal(t, []string{
		"Uniform1f", "Clear", "DrawTriangles",
		"Uniform1f", "Clear", "DrawTriangles",
	}, names)
}

func TestUniformRoundTrip(t *testing.T) {
	f := newFixture(t)
	// Values exactly representable as float32.
	steps := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 1500 * time.Millisecond, 4 * time.Second}
	f.ctx.CloseAfter(len(steps) + 1)
	i := 0
	f.loop.OnPresent(func() {
		if i < len(steps) {
			f.clock.Advance(steps[i])
			i++
		}
	})

	s, err := New(f.dev, f.loop, f.angle, f.config(Config{}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, f.loop.Run(context.Background()))

	var got []float32
	for _, d := range f.dev.Draws() {
		got = append(got, d.Uniforms[shader.UniformAngle])
	}
	assert.Equal(t, []float32{0, 0.25, 0.75, 2.25, 6.25}, got)
}

func TestTimeNeverDecreases(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(4)
	deltas := []time.Duration{time.Second, -300 * time.Millisecond, 100 * time.Millisecond}
	i := 0
	f.loop.OnPresent(func() {
		if i < len(deltas) {
			f.clock.Advance(deltas[i])
			i++
		}
	})

	var seconds []float64
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		OnTick: func(tick FrameTick) { seconds = append(seconds, tick.Seconds) },
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, f.loop.Run(context.Background()))

	require.Len(t, seconds, 4)
	for j := 1; j < len(seconds); j++ {
		assert.GreaterOrEqual(t, seconds[j], seconds[j-1])
	}
	assert.InDelta(t, 1.0, seconds[2], 1e-9)
}

func TestFrameStrategyKeepsOneRegistration(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.Equal(t, 1, f.loop.Pending())

	for i := 0; i < 1000; i++ {
		more, err := f.loop.Step()
		require.NoError(t, err)
		require.True(t, more)
		require.Equal(t, 1, f.loop.Pending(), "step %d", i)
	}
	assert.Equal(t, uint64(1000), s.Ticks())
	assert.Len(t, f.dev.Draws(), 1000)
}

func TestIntervalStrategy(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(3)

	var ticks []FrameTick
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		Strategy: StrategyInterval,
		Interval: 20 * time.Millisecond,
		OnTick:   func(tick FrameTick) { ticks = append(ticks, tick) },
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Equal(t, 1, f.loop.Pending())

	require.NoError(t, f.loop.Run(context.Background()))

	require.Len(t, ticks, 3)
	for i, tick := range ticks {
		assert.Equal(t, uint64(i+1), tick.Seq)
		assert.InDelta(t, float64(i+1)*0.020, tick.Seconds, 1e-9)
	}
	assert.Equal(t, 60*time.Millisecond, f.ctx.Waited())
	assert.Len(t, f.dev.Draws(), 3)
}

func TestIntervalDefault(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.dev, f.loop, f.angle, Config{Strategy: StrategyInterval})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.cfg.Interval)
	assert.Equal(t, StrategyInterval, s.Strategy())
}

func TestContextLostHalts(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		OnTick: func(tick FrameTick) {
			if tick.Seq == 2 {
				f.dev.LoseContext()
			}
		},
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	err = f.loop.Run(context.Background())
	var tickErr *TickError
	require.ErrorAs(t, err, &tickErr)
	assert.Equal(t, uint64(3), tickErr.Seq)
	assert.ErrorIs(t, err, softgl.ErrContextLost)
	assert.Equal(t, Halted, s.State())
	assert.Equal(t, 0, f.loop.Pending())
	assert.Len(t, f.dev.Draws(), 2)
}

func TestPresentHookErrorIsNotATickError(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(3)
	f.loop.OnPresent(func() { f.dev.Viewport(0, 0, -1, -1) })

	var ticks []FrameTick
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		OnTick: func(tick FrameTick) { ticks = append(ticks, tick) },
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.NoError(t, f.loop.Run(context.Background()))
	assert.Len(t, ticks, 3)
	assert.Len(t, f.dev.Draws(), 3)
}

func TestContinuePolicy(t *testing.T) {
	f := newFixture(t)
	f.ctx.CloseAfter(4)
	var failures []*TickError
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{
		Policy: Continue,
		OnTick: func(tick FrameTick) {
			if tick.Seq == 1 {
				f.dev.LoseContext()
			}
		},
		OnError: func(err *TickError) { failures = append(failures, err) },
	}))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.NoError(t, f.loop.Run(context.Background()))
	assert.Equal(t, uint64(4), s.Ticks())
	require.Len(t, failures, 3)
	for i, fe := range failures {
		assert.Equal(t, uint64(i+2), fe.Seq)
		assert.ErrorIs(t, fe, softgl.ErrContextLost)
	}
}

func TestStartTwice(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{}))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
	assert.Equal(t, 1, f.loop.Pending())
}

func TestStartOnClosedHost(t *testing.T) {
	f := newFixture(t)
	f.ctx.Close()
	s, err := New(f.dev, f.loop, f.angle, f.config(Config{}))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(), eventloop.ErrClosed)
	assert.Equal(t, Idle, s.State())
}

func TestNewValidates(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.dev, f.loop, graphics.NoUniform, Config{})
	assert.ErrorIs(t, err, ErrNoUniform)
	_, err = New(nil, f.loop, f.angle, Config{})
	assert.Error(t, err)
	_, err = New(f.dev, nil, f.angle, Config{})
	assert.Error(t, err)
	_, err = New(f.dev, f.loop, f.angle, Config{Strategy: StrategyInterval, Interval: -time.Second})
	assert.Error(t, err)
	_, err = New(f.dev, f.loop, f.angle, Config{Strategy: Strategy(9)})
	assert.Error(t, err)
}

// syncHost queues the first frame request and runs every later one as soon
// as it is made.
type syncHost struct {
	first    func()
	requests int
	aborted  error
}

func (h *syncHost) RequestFrame(cb func()) error {
	h.requests++
	if h.requests > 10 {
		return errors.New("runaway")
	}
	if h.first == nil {
		h.first = cb
		return nil
	}
	cb()
	return nil
}

func (h *syncHost) Every(time.Duration, func()) error { return errors.New("not supported") }

func (h *syncHost) Abort(err error) {
	if h.aborted == nil {
		h.aborted = err
	}
}

func TestReentrantTickFails(t *testing.T) {
	f := newFixture(t)
	host := &syncHost{}
	s, err := New(f.dev, host, f.angle, f.config(Config{}))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NotNil(t, host.first)

	// The re-arm inside tick 1 runs tick 2 while tick 1 is still in progress.
	host.first()

	var tickErr *TickError
	require.ErrorAs(t, host.aborted, &tickErr)
	assert.Contains(t, tickErr.Reason, "re-entered")
	assert.Equal(t, Halted, s.State())
	assert.Len(t, f.dev.Draws(), 1)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("frame")
	require.NoError(t, err)
	assert.Equal(t, StrategyFrame, s)
	s, err = ParseStrategy("interval")
	require.NoError(t, err)
	assert.Equal(t, StrategyInterval, s)
	_, err = ParseStrategy("vsync")
	assert.Error(t, err)

	p, err := ParsePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, Continue, p)
	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

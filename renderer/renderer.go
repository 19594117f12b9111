package renderer

import (
	"context"
	"fmt"
	"log"

	"github.com/richinsley/gospinner/eventloop"
	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/scheduler"
	"github.com/richinsley/gospinner/shader"
)

// DefaultClearColor is used when Config.ClearColor is left zero.
var DefaultClearColor = [4]float32{0.1, 0.1, 0.1, 1.0}

// Config selects the shader dialect, the scheduling of ticks and the colour
// the frame is cleared to.
type Config struct {
	Version    shader.Version
	Scheduler  scheduler.Config
	ClearColor [4]float32
}

// Renderer owns the scene of one graphics context and the scheduler that
// animates it.
type Renderer struct {
	context graphics.Context
	dev     graphics.Device
	scene   *Scene
	sched   *scheduler.Scheduler
	cfg     Config
	width   int
	height  int
}

// NewRenderer makes ctx current and prepares everything the first tick needs.
// A build failure leaves the surface untouched: no frame is cleared or drawn.
func NewRenderer(ctx graphics.Context, cfg Config) (*Renderer, error) {
	if ctx == nil {
		return nil, fmt.Errorf("renderer: nil graphics context")
	}
	ctx.MakeCurrent()

	r := &Renderer{
		context: ctx,
		dev:     ctx.Device(),
		cfg:     cfg,
	}

	scene, err := LoadScene(r.dev, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scene: %w", err)
	}
	r.scene = scene

	clear := cfg.ClearColor
	if clear == ([4]float32{}) {
		clear = DefaultClearColor
	}
	r.dev.ClearColor(clear[0], clear[1], clear[2], clear[3])
	r.SyncViewport()

	if err := r.dev.Err(); err != nil {
		r.scene.Destroy()
		return nil, fmt.Errorf("failed to configure renderer: %w", err)
	}
	return r, nil
}

// Scene returns the loaded scene.
func (r *Renderer) Scene() *Scene { return r.scene }

// Scheduler returns the scheduler created by Start, or nil before Start.
func (r *Renderer) Scheduler() *scheduler.Scheduler { return r.sched }

// Resize sets the viewport to cover a width x height framebuffer.
func (r *Renderer) Resize(width, height int) {
	if width == r.width && height == r.height {
		return
	}
	r.width, r.height = width, height
	r.dev.Viewport(0, 0, width, height)
}

// SyncViewport matches the viewport to the context's current framebuffer size.
func (r *Renderer) SyncViewport() {
	r.Resize(r.context.GetFramebufferSize())
}

// Start creates the scheduler and arms its first tick on host.
func (r *Renderer) Start(host scheduler.Host) error {
	if r.sched != nil {
		return scheduler.ErrAlreadyStarted
	}
	sched, err := scheduler.New(r.dev, host, r.scene.Angle, r.cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}
	r.sched = sched
	return nil
}

// NewLoop returns an event loop over this renderer's surface that keeps the
// viewport in step with the framebuffer after every presented frame.
func (r *Renderer) NewLoop(opts ...eventloop.Option) *eventloop.Loop {
	loop := eventloop.New(r.context, opts...)
	loop.OnPresent(r.SyncViewport)
	return loop
}

// Run starts ticking on loop and blocks until the surface closes, ctx is done
// or a tick aborts the loop.
func (r *Renderer) Run(ctx context.Context, loop *eventloop.Loop) error {
	if err := r.Start(loop); err != nil {
		return err
	}
	log.Println("Starting render loop...")
	err := loop.Run(ctx)
	if r.sched != nil {
		log.Printf("Render loop stopped after %d ticks", r.sched.Ticks())
	}
	return err
}

// Shutdown releases the scene. The context itself is shut down by its owner.
func (r *Renderer) Shutdown() {
	r.scene.Destroy()
}

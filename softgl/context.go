package softgl

import (
	"time"

	"github.com/richinsley/gospinner/graphics"
)

// DefaultRefresh is the frame period EndFrame holds to, close to a 60Hz
// display with vsync on.
const DefaultRefresh = 16 * time.Millisecond

// Context is an offscreen graphics.Context backed by a software Device.
type Context struct {
	device *Device
	width  int
	height int

	frames     int
	closeAfter int
	closed     bool
	waited     time.Duration

	refresh   time.Duration
	lastFrame time.Time

	// OnWait, if set, is called instead of sleeping in Wait, and EndFrame no
	// longer paces frames. Tests use it to advance a fake clock.
	OnWait func(d time.Duration)
}

// New creates a software context of the given framebuffer size.
func New(width, height int, opts ...Option) *Context {
	return &Context{
		device:  NewDevice(opts...),
		width:   width,
		height:  height,
		refresh: DefaultRefresh,
	}
}

// SetRefresh changes the frame period EndFrame holds to. Zero disables pacing.
func (c *Context) SetRefresh(d time.Duration) {
	c.refresh = d
}

// CloseAfter makes ShouldClose report true once n frames have been presented.
func (c *Context) CloseAfter(n int) {
	c.closeAfter = n
}

// Close requests that the surface close, as a window close button would.
func (c *Context) Close() {
	c.closed = true
}

// Frames is the number of frames presented so far.
func (c *Context) Frames() int { return c.frames }

// Waited is the total time passed to Wait.
func (c *Context) Waited() time.Duration { return c.waited }

// SoftDevice returns the concrete device for inspection.
func (c *Context) SoftDevice() *Device { return c.device }

// Resize changes the framebuffer size reported by GetFramebufferSize.
func (c *Context) Resize(width, height int) {
	c.width, c.height = width, height
}

func (c *Context) MakeCurrent() {}

// Shutdown destroys the surface. The device behaves as if its context was lost.
func (c *Context) Shutdown() {
	c.closed = true
	c.device.LoseContext()
}

func (c *Context) ShouldClose() bool {
	return c.closed || (c.closeAfter > 0 && c.frames >= c.closeAfter)
}

// EndFrame presents a frame. Like a swap with vsync on, it blocks until a
// refresh period has passed since the previous frame.
func (c *Context) EndFrame() {
	c.frames++
	if c.OnWait != nil || c.refresh <= 0 {
		return
	}
	now := time.Now()
	if !c.lastFrame.IsZero() {
		if d := c.refresh - now.Sub(c.lastFrame); d > 0 {
			time.Sleep(d)
			now = now.Add(d)
		}
	}
	c.lastFrame = now
}

func (c *Context) Wait(timeout time.Duration) {
	c.waited += timeout
	if c.OnWait != nil {
		c.OnWait(timeout)
		return
	}
	time.Sleep(timeout)
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.width, c.height
}

func (c *Context) Device() graphics.Device {
	return c.device
}

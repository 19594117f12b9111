package glfwcontext

import (
	"fmt"
	"log"
	"runtime"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/gospinner/gldevice"
	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/options"
	"github.com/richinsley/gospinner/scheduler"
	"github.com/richinsley/gospinner/translator"
)

// Context is a GLFW window with a current GL 4.1 core context.
type Context struct {
	window   *glfw.Window
	device   *gldevice.Device
	onResize func(width, height int)
}

// New creates a window sized and titled from opts and makes its context
// current. The frame strategy presents in step with the display refresh; the
// interval strategy presents as soon as a tick has drawn.
func New(opts *options.Options, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	if visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, err
	}
	win.MakeContextCurrent()

	strategy, err := opts.SchedulerStrategy()
	if err != nil {
		win.Destroy()
		return nil, err
	}
	if strategy == scheduler.StrategyFrame {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	device, err := gldevice.New(translator.FormatGLSL410)
	if err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to create GL device: %w", err)
	}

	c := &Context{
		window: win,
		device: device,
	}
	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if c.onResize != nil {
			c.onResize(width, height)
		}
	})
	return c, nil
}

// OnResize registers fn to be called with the new framebuffer size whenever
// the window is resized.
func (c *Context) OnResize(fn func(width, height int)) {
	c.onResize = fn
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Press && key == glfw.KeyEscape {
		w.SetShouldClose(true)
	}
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

func (c *Context) Shutdown() {
	c.device.Close()
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

// Wait blocks until a window event arrives or timeout elapses.
func (c *Context) Wait(timeout time.Duration) {
	glfw.WaitEventsTimeout(timeout.Seconds())
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Device() graphics.Device {
	return c.device
}

// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	log.Printf("GLFW Initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	log.Printf("GLFW Terminated")
}

package graphics

import "time"

// Context defines the interface for a drawable surface with a current GL context.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// EndFrame presents the back buffer and processes pending window events.
	EndFrame()
	// Wait blocks for at most timeout while still servicing window events.
	Wait(timeout time.Duration)
	GetFramebufferSize() (int, int)
	// Device returns the GL operations bound to this context.
	Device() Device
}

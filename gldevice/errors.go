package gldevice

import (
	"errors"
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// ErrContextLost matches an Error whose code means the context is gone.
var ErrContextLost = errors.New("gl: context lost")

// Error is a GL error code reported by glGetError.
type Error struct {
	Code uint32
}

// GL_CONTEXT_LOST is not part of the 4.1 core bindings.
const contextLost = 0x0507

func (e *Error) Error() string {
	return fmt.Sprintf("gl error 0x%04x (%s)", e.Code, errorName(e.Code))
}

// Is lets errors.Is(err, ErrContextLost) recognise a lost context.
func (e *Error) Is(target error) bool {
	return target == ErrContextLost && e.Code == contextLost
}

func errorName(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	case contextLost:
		return "GL_CONTEXT_LOST"
	}
	return "unknown"
}

package shader

import (
	"errors"
	"fmt"

	"github.com/richinsley/gospinner/graphics"
)

var (
	// ErrEmptySource is returned when a stage is given no source text.
	ErrEmptySource = errors.New("shader source is empty")
	// ErrInvalidStage is returned for a stage other than vertex or fragment.
	ErrInvalidStage = errors.New("invalid shader stage")
	// ErrNotCompiled is returned when Link is handed a shader that does not exist.
	ErrNotCompiled = errors.New("shader has not been compiled")
	// ErrProgramAllocation is returned when the device cannot create a program object.
	ErrProgramAllocation = errors.New("failed to allocate program object")
)

// ShaderAllocationError reports that the device could not create a shader object.
type ShaderAllocationError struct {
	Stage graphics.Stage
}

func (e *ShaderAllocationError) Error() string {
	return fmt.Sprintf("failed to allocate %s shader object", e.Stage)
}

// ShaderCompileError carries the compiler's info log verbatim.
type ShaderCompileError struct {
	Stage graphics.Stage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, e.Log)
}

// ProgramLinkError carries the linker's info log verbatim.
type ProgramLinkError struct {
	Log string
}

func (e *ProgramLinkError) Error() string {
	return fmt.Sprintf("failed to link program: %s", e.Log)
}

// UniformNotFoundError reports a uniform that is not active in the program.
type UniformNotFoundError struct {
	Name string
}

func (e *UniformNotFoundError) Error() string {
	return fmt.Sprintf("uniform %q not found in program", e.Name)
}

// AttributeNotFoundError reports a vertex attribute that is not active in the program.
type AttributeNotFoundError struct {
	Name string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found in program", e.Name)
}

package renderer

import (
	"fmt"
	"log"

	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/shader"
)

// TriangleVertices is the static geometry: one triangle in normalized device
// coordinates, three floats per vertex.
var TriangleVertices = [9]float32{
	0.0, 0.5, 0.0,
	-0.5, -0.5, 0.0,
	0.5, -0.5, 0.0,
}

// Scene holds the GL objects of the animation: one program, one static
// vertex buffer and the locations resolved from the program.
type Scene struct {
	Program  graphics.Program
	Vertices graphics.Buffer
	Position graphics.AttribLocation
	Angle    graphics.UniformLocation

	dev graphics.Device
}

// LoadScene builds the program for version, makes it current, uploads the
// triangle and resolves the position attribute and angle uniform. Nothing is
// drawn; on failure every object created so far is released.
func LoadScene(dev graphics.Device, version shader.Version) (*Scene, error) {
	program, err := shader.NewBuilder(dev, version).Build()
	if err != nil {
		return nil, err
	}
	scene := &Scene{Program: program, dev: dev}

	dev.UseProgram(program)

	scene.Vertices = dev.CreateBuffer()
	if scene.Vertices == 0 {
		scene.Destroy()
		return nil, fmt.Errorf("failed to allocate vertex buffer")
	}
	dev.BufferData(scene.Vertices, TriangleVertices[:])

	scene.Position, err = shader.AttribLocation(dev, program, shader.AttribPosition)
	if err != nil {
		scene.Destroy()
		return nil, err
	}
	dev.VertexAttribPointer(scene.Position, 3)

	scene.Angle, err = shader.UniformLocation(dev, program, shader.UniformAngle)
	if err != nil {
		scene.Destroy()
		return nil, err
	}

	if err := dev.Err(); err != nil {
		scene.Destroy()
		return nil, fmt.Errorf("failed to set up scene: %w", err)
	}
	log.Printf("Successfully loaded scene: program %d, %d vertices", program, len(TriangleVertices)/3)
	return scene, nil
}

// Destroy releases the program and vertex buffer.
func (s *Scene) Destroy() {
	if s == nil {
		return
	}
	if s.Vertices != 0 {
		s.dev.DeleteBuffer(s.Vertices)
		s.Vertices = 0
	}
	if s.Program != 0 {
		s.dev.DeleteProgram(s.Program)
		s.Program = 0
	}
}

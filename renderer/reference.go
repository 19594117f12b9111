package renderer

import "github.com/chewxy/math32"

// FragmentColor is the constant colour written by the fragment stage.
var FragmentColor = [4]float32{0.8, 0.3, 0.4, 1.0}

// RotateVertex evaluates the vertex stage on the CPU: position.xy rotated by
// angle radians about the origin, z passed through and w = 1.
func RotateVertex(position [3]float32, angle float32) [4]float32 {
	c := math32.Cos(angle)
	s := math32.Sin(angle)
	return [4]float32{
		position[0]*c - position[1]*s,
		position[0]*s + position[1]*c,
		position[2],
		1.0,
	}
}

// TransformVertices applies RotateVertex to tightly packed xyz triples.
func TransformVertices(vertices []float32, angle float32) [][4]float32 {
	out := make([][4]float32, 0, len(vertices)/3)
	for i := 0; i+2 < len(vertices); i += 3 {
		out = append(out, RotateVertex([3]float32{vertices[i], vertices[i+1], vertices[i+2]}, angle))
	}
	return out
}

package shader

import (
	"fmt"

	"github.com/richinsley/gospinner/graphics"
)

// Version selects the GLSL dialect of the built-in sources.
type Version int

const (
	// VersionLegacy is GLSL ES 1.00 (WebGL 1 style attribute/gl_FragColor).
	VersionLegacy Version = iota
	// VersionModern is GLSL ES 3.00.
	VersionModern
)

func (v Version) String() string {
	switch v {
	case VersionLegacy:
		return "legacy"
	case VersionModern:
		return "modern"
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

// ParseVersion converts a configuration string into a Version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "legacy", "webgl", "webgl1", "es100":
		return VersionLegacy, nil
	case "modern", "webgl2", "es300":
		return VersionModern, nil
	}
	return 0, fmt.Errorf("unknown shader version %q", s)
}

// Source is one stage's shader text.
type Source struct {
	Stage graphics.Stage
	Text  string
}

// Names of the variables the built-in sources expose.
const (
	AttribPosition = "position"
	UniformAngle   = "angle"
)

// ────────────────────────────────── GLSL ES 1.00 ──────────────────────────────────

const vertexShaderSourceLegacy = `attribute vec3 position;
uniform float angle;
void main() {
    float c = cos(angle);
    float s = sin(angle);
    gl_Position = vec4(
        position.x * c - position.y * s,
        position.x * s + position.y * c,
        position.z,
        1.0
    );
}
`

const fragmentShaderSourceLegacy = `precision mediump float;
void main() {
    gl_FragColor = vec4(0.8, 0.3, 0.4, 1.0);
}
`

// ────────────────────────────────── GLSL ES 3.00 ──────────────────────────────────

const vertexShaderSourceModern = `#version 300 es
in vec3 position;
uniform float angle;
void main() {
    float c = cos(angle);
    float s = sin(angle);
    gl_Position = vec4(
        position.x * c - position.y * s,
        position.x * s + position.y * c,
        position.z,
        1.0
    );
}
`

const fragmentShaderSourceModern = `#version 300 es
precision mediump float;
out vec4 fragColor;
void main() {
    fragColor = vec4(0.8, 0.3, 0.4, 1.0);
}
`

// ────────────────────────────────── Public API ─────────────────────────────────

func VertexSource(v Version) Source {
	if v == VersionModern {
		return Source{Stage: graphics.StageVertex, Text: vertexShaderSourceModern}
	}
	return Source{Stage: graphics.StageVertex, Text: vertexShaderSourceLegacy}
}

func FragmentSource(v Version) Source {
	if v == VersionModern {
		return Source{Stage: graphics.StageFragment, Text: fragmentShaderSourceModern}
	}
	return Source{Stage: graphics.StageFragment, Text: fragmentShaderSourceLegacy}
}

// Package translator converts GLSL ES sources into the dialect of the
// current GL backend using goshadertranslator.
package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
	"github.com/richinsley/gospinner/graphics"
)

// Format is the output dialect of a translation.
type Format int

const (
	FormatGLSL410 Format = iota
	FormatGLSL330
	FormatESSL
)

func (f Format) String() string {
	switch f {
	case FormatGLSL410:
		return "glsl410"
	case FormatGLSL330:
		return "glsl330"
	case FormatESSL:
		return "essl"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Result is a translated shader.
type Result struct {
	Code string
	// Names maps source-level variable names to their names in Code.
	Names map[string]string
}

// MappedName returns the translated name of a source variable, or name itself
// when the translator did not rename it.
func (r *Result) MappedName(name string) string {
	if mapped, ok := r.Names[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

var (
	once       sync.Once
	mu         sync.Mutex
	translator *gst.ShaderTranslator
	initErr    error
)

// GetTranslator returns the process-wide translator, creating it on first use.
func GetTranslator() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
		if initErr != nil {
			initErr = fmt.Errorf("failed to create shader translator: %w", initErr)
		}
	})
	return translator, initErr
}

// Translate validates source as a WebGL 2 shader of the given stage and
// returns it rewritten for format. A validation failure is returned as an
// error whose text is the translator's diagnostic log.
func Translate(stage graphics.Stage, source string, format Format) (*Result, error) {
	var kind string
	switch stage {
	case graphics.StageVertex:
		kind = "vertex"
	case graphics.StageFragment:
		kind = "fragment"
	default:
		return nil, fmt.Errorf("cannot translate %v shader", stage)
	}

	t, err := GetTranslator()
	if err != nil {
		return nil, err
	}

	outputFormat := gst.OutputFormatGLSL410
	switch format {
	case FormatGLSL330:
		outputFormat = gst.OutputFormatGLSL330
	case FormatESSL:
		outputFormat = gst.OutputFormatESSL
	}

	mu.Lock()
	sh, err := t.TranslateShader(source, kind, gst.ShaderSpecWebGL2, outputFormat)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	res := &Result{Code: sh.Code, Names: make(map[string]string, len(sh.Variables))}
	for name, v := range sh.Variables {
		res.Names[name] = v.MappedName
	}
	return res, nil
}

package main

import (
	"testing"

	"github.com/richinsley/gospinner/options"
	"github.com/richinsley/gospinner/softgl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsUnparsedOptions(t *testing.T) {
	for name, mutate := range map[string]func(*options.Options){
		"version":  func(o *options.Options) { o.Version = "glsl450" },
		"strategy": func(o *options.Options) { o.Strategy = "vsync" },
		"policy":   func(o *options.Options) { o.Policy = "retry" },
	} {
		o := options.Default()
		o.Backend = options.BackendSoft
		mutate(o)
		assert.Error(t, run(o), name)
	}
}

func TestSoftContextKeepsNoHistory(t *testing.T) {
	o := options.Default()
	o.Backend = options.BackendSoft
	ctx, cleanup, err := newContext(o)
	require.NoError(t, err)
	defer cleanup()

	soft, ok := ctx.(*softgl.Context)
	require.True(t, ok)
	for i := 0; i < 100; i++ {
		ctx.Device().Clear()
	}
	assert.Equal(t, 100, soft.SoftDevice().ClearCount())
	assert.Empty(t, soft.SoftDevice().Calls())
}

func TestNewContextUnknownBackend(t *testing.T) {
	o := options.Default()
	o.Backend = "vulkan"
	_, _, err := newContext(o)
	assert.Error(t, err)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/richinsley/gospinner/encoder"
	"github.com/richinsley/gospinner/glfwcontext"
	"github.com/richinsley/gospinner/graphics"
	"github.com/richinsley/gospinner/headless"
	"github.com/richinsley/gospinner/options"
	"github.com/richinsley/gospinner/renderer"
	"github.com/richinsley/gospinner/scheduler"
	"github.com/richinsley/gospinner/shader"
	"github.com/richinsley/gospinner/softgl"
)

func init() {
	runtime.LockOSThread()
}

// newContext creates the graphics context for the selected backend. The
// returned cleanup func must be called once the context is no longer used.
func newContext(opts *options.Options) (graphics.Context, func(), error) {
	switch opts.Backend {
	case options.BackendGLFW:
		if err := glfwcontext.InitGraphics(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
		}
		ctx, err := glfwcontext.New(opts, true)
		if err != nil {
			glfwcontext.TerminateGraphics()
			return nil, nil, fmt.Errorf("failed to create window: %w", err)
		}
		return ctx, func() {
			ctx.Shutdown()
			glfwcontext.TerminateGraphics()
		}, nil
	case options.BackendHeadless:
		ctx, err := headless.NewHeadless(opts.Width, opts.Height)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create headless context: %w", err)
		}
		return ctx, ctx.Shutdown, nil
	case options.BackendSoft:
		ctx := softgl.New(opts.Width, opts.Height, softgl.WithoutRecording())
		return ctx, ctx.Shutdown, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", opts.Backend)
}

func run(opts *options.Options) (err error) {
	version, err := opts.ShaderVersion()
	if err != nil {
		return err
	}
	strategy, err := opts.SchedulerStrategy()
	if err != nil {
		return err
	}
	policy, err := opts.TickPolicy()
	if err != nil {
		return err
	}

	gctx, cleanup, err := newContext(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := renderer.NewRenderer(gctx, renderer.Config{
		Version: version,
		Scheduler: scheduler.Config{
			Strategy: strategy,
			Interval: time.Duration(opts.Interval),
			Policy:   policy,
		},
		ClearColor: opts.ClearColor,
	})
	if err != nil {
		return err
	}
	defer r.Shutdown()

	if win, ok := gctx.(*glfwcontext.Context); ok {
		win.OnResize(r.Resize)
	}

	loop := r.NewLoop()

	if opts.Record != "" {
		enc, encErr := encoder.New(opts.Record, opts.Width, opts.Height, opts.FPS, opts.FFmpeg)
		if encErr != nil {
			return fmt.Errorf("failed to start recording: %w", encErr)
		}
		rec := encoder.NewRecorder(enc, gctx.Device(), loop.Abort)
		loop.BeforePresent(rec.Capture)
		defer func() {
			if cerr := enc.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to finish recording: %w", cerr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.Duration))
		defer cancel()
	}

	err = r.Run(ctx, loop)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// report prints err as a diagnostic, including the compiler or linker log
// when there is one.
func report(err error) {
	out := termenv.NewOutput(os.Stderr)
	prefix := out.String("gospinner:").Foreground(out.Color("1")).Bold()
	fmt.Fprintf(out, "%s %v\n", prefix, err)

	var infoLog string
	var compileErr *shader.ShaderCompileError
	var linkErr *shader.ProgramLinkError
	switch {
	case errors.As(err, &compileErr):
		infoLog = compileErr.Log
	case errors.As(err, &linkErr):
		infoLog = linkErr.Log
	}
	for _, line := range strings.Split(strings.TrimSpace(infoLog), "\n") {
		if line != "" {
			fmt.Fprintf(out, "  %s\n", out.String(line).Faint())
		}
	}
}

func main() {
	opts, err := options.Parse("gospinner", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		report(err)
		os.Exit(2)
	}
	if opts.Help {
		return
	}

	log.Printf("Backend %s, %s shaders, %s strategy", opts.Backend, opts.Version, opts.Strategy)
	if err := run(opts); err != nil {
		report(err)
		os.Exit(1)
	}
}

// Package eventloop drives redraw callbacks on the goroutine that owns the GL
// context. It provides the two scheduling primitives a browser-like host
// offers: run a callback once at the next redraw opportunity, and run a
// callback repeatedly at a fixed interval.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned when scheduling on a loop whose surface is gone.
var ErrClosed = errors.New("event loop is closed")

const defaultIdleTimeout = 100 * time.Millisecond

// Surface is the part of graphics.Context the loop needs.
type Surface interface {
	ShouldClose() bool
	EndFrame()
	Wait(timeout time.Duration)
}

type timer struct {
	every time.Duration
	next  time.Time
	cb    func()
}

// Loop is a single-threaded scheduler. None of its methods are safe for
// concurrent use; callbacks run one after another on the goroutine calling
// Step or Run.
type Loop struct {
	surface Surface
	now     func() time.Time
	idle    time.Duration

	frames  []func()
	timers  []*timer
	capture []func()
	present []func()

	err    error
	closed bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now as the loop's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithIdleTimeout sets how long the loop waits for events when nothing is
// scheduled.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Loop) { l.idle = d }
}

func New(surface Surface, opts ...Option) *Loop {
	l := &Loop{
		surface: surface,
		now:     time.Now,
		idle:    defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) isClosed() bool {
	return l.closed || l.surface.ShouldClose()
}

// RequestFrame schedules cb to run once, before the next present.
func (l *Loop) RequestFrame(cb func()) error {
	if cb == nil {
		return errors.New("eventloop: nil frame callback")
	}
	if l.isClosed() {
		return ErrClosed
	}
	l.frames = append(l.frames, cb)
	return nil
}

// Every schedules cb to run every interval until the loop closes. Deadlines
// missed while the loop was busy are skipped rather than run back to back.
func (l *Loop) Every(interval time.Duration, cb func()) error {
	if cb == nil {
		return errors.New("eventloop: nil timer callback")
	}
	if interval <= 0 {
		return fmt.Errorf("eventloop: interval must be positive, got %v", interval)
	}
	if l.isClosed() {
		return ErrClosed
	}
	l.timers = append(l.timers, &timer{every: interval, next: l.now().Add(interval), cb: cb})
	return nil
}

// Abort stops the loop after the current callback returns. Run and Step
// report the first error passed to Abort.
func (l *Loop) Abort(err error) {
	if err == nil {
		return
	}
	if l.err == nil {
		l.err = err
	}
}

// Pending is the number of outstanding registrations: queued frame callbacks
// plus active interval timers.
func (l *Loop) Pending() int {
	return len(l.frames) + len(l.timers)
}

// BeforePresent registers fn to run after a frame has drawn and before it is
// presented, while the back buffer still holds the frame.
func (l *Loop) BeforePresent(fn func()) {
	l.capture = append(l.capture, fn)
}

// OnPresent registers fn to run after every presented frame.
func (l *Loop) OnPresent(fn func()) {
	l.present = append(l.present, fn)
}

// Close drops every registration. Later scheduling returns ErrClosed.
func (l *Loop) Close() {
	l.closed = true
	l.frames = nil
	l.timers = nil
}

// Step runs one iteration: queued frame callbacks, then due timers, then
// presents if anything ran or waits for the next deadline otherwise. It
// returns false once the surface has closed or the loop was aborted.
func (l *Loop) Step() (bool, error) {
	if l.err != nil {
		l.Close()
		return false, l.err
	}
	if l.isClosed() {
		l.Close()
		return false, nil
	}

	ran := false
	if len(l.frames) > 0 {
		cbs := l.frames
		l.frames = nil
		for _, cb := range cbs {
			cb()
			ran = true
			if l.err != nil {
				break
			}
		}
	}

	now := l.now()
	if l.err == nil {
		timers := append([]*timer(nil), l.timers...)
		for _, t := range timers {
			if now.Before(t.next) {
				continue
			}
			t.cb()
			ran = true
			t.next = t.next.Add(t.every)
			if !t.next.After(now) {
				t.next = now.Add(t.every)
			}
			if l.err != nil {
				break
			}
		}
	}

	if l.err != nil {
		l.Close()
		return false, l.err
	}

	if ran {
		for _, fn := range l.capture {
			fn()
		}
		l.surface.EndFrame()
		for _, fn := range l.present {
			fn()
		}
	} else if wait := l.waitTime(now); wait > 0 {
		l.surface.Wait(wait)
	}

	if l.err != nil {
		l.Close()
		return false, l.err
	}
	return true, nil
}

func (l *Loop) waitTime(now time.Time) time.Duration {
	if len(l.frames) > 0 {
		return 0
	}
	wait := l.idle
	for _, t := range l.timers {
		if d := t.next.Sub(now); d < wait {
			wait = d
		}
	}
	return wait
}

// Run steps the loop until the surface closes, a callback aborts it or ctx is
// done. A closed surface is a clean exit and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		default:
		}
		more, err := l.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

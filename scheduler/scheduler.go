// Package scheduler runs the redraw tick: each tick writes the elapsed time
// into the program's angle uniform, clears the frame, draws the triangle and
// arranges for the next tick.
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/richinsley/gospinner/eventloop"
	"github.com/richinsley/gospinner/graphics"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNoUniform      = errors.New("scheduler needs a resolved uniform location")
)

// Vertices drawn per tick: one triangle.
const triangleVertexCount = 3

// DefaultInterval is the period of the interval strategy when none is given.
const DefaultInterval = 16 * time.Millisecond

// Host is the event loop the scheduler registers its tick with.
type Host interface {
	// RequestFrame runs cb once at the next redraw opportunity.
	RequestFrame(cb func()) error
	// Every runs cb repeatedly, once per interval.
	Every(interval time.Duration, cb func()) error
	// Abort stops the host and surfaces err at its error boundary.
	Abort(err error)
}

// Strategy selects how ticks are scheduled.
type Strategy int

const (
	// StrategyFrame re-arms a one-shot callback from inside every tick.
	StrategyFrame Strategy = iota
	// StrategyInterval registers one repeating timer.
	StrategyInterval
)

func (s Strategy) String() string {
	switch s {
	case StrategyFrame:
		return "frame"
	case StrategyInterval:
		return "interval"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "frame", "raf", "animation-frame":
		return StrategyFrame, nil
	case "interval", "timer":
		return StrategyInterval, nil
	}
	return 0, fmt.Errorf("unknown scheduling strategy %q", s)
}

// Policy decides what happens after a tick fails.
type Policy int

const (
	// FailStop stops ticking and aborts the host with the error.
	FailStop Policy = iota
	// Continue reports the error and keeps ticking.
	Continue
)

func (p Policy) String() string {
	switch p {
	case FailStop:
		return "fail-stop"
	case Continue:
		return "continue"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "fail-stop", "failstop", "stop":
		return FailStop, nil
	case "continue":
		return Continue, nil
	}
	return 0, fmt.Errorf("unknown tick failure policy %q", s)
}

// State of a scheduler. There is no transition out of Armed from within the
// scheduler other than a failed tick under FailStop.
type State int

const (
	Idle State = iota
	Armed
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FrameTick is the value handed to one tick.
type FrameTick struct {
	// Seq counts ticks from 1.
	Seq uint64
	// Seconds is the wall-clock time elapsed since Start.
	Seconds float64
}

// TickError reports a tick that could not complete.
type TickError struct {
	Seq    uint64
	Reason string
	Err    error
}

func (e *TickError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tick %d failed: %s: %v", e.Seq, e.Reason, e.Err)
	}
	return fmt.Sprintf("tick %d failed: %s", e.Seq, e.Reason)
}

func (e *TickError) Unwrap() error { return e.Err }

// Config holds the scheduler settings. The zero value is the frame strategy
// with FailStop.
type Config struct {
	Strategy Strategy
	// Interval is the timer period for StrategyInterval. Zero means DefaultInterval.
	Interval time.Duration
	Policy   Policy
	// Clock replaces time.Now.
	Clock func() time.Time
	// OnTick, if set, observes every tick after its draw call.
	OnTick func(FrameTick)
	// OnError receives tick failures under the Continue policy. Nil logs them.
	OnError func(*TickError)
}

// Scheduler owns the single repeating tick of one program.
type Scheduler struct {
	dev   graphics.Device
	host  Host
	angle graphics.UniformLocation
	cfg   Config

	// tick is created once and handed to the host on every re-arm.
	tick func()

	state  State
	start  time.Time
	last   float64
	seq    uint64
	inTick bool
}

// New binds a scheduler to the device and uniform it animates. The program
// owning angle must already be current.
func New(dev graphics.Device, host Host, angle graphics.UniformLocation, cfg Config) (*Scheduler, error) {
	if dev == nil {
		return nil, errors.New("scheduler: nil device")
	}
	if host == nil {
		return nil, errors.New("scheduler: nil host")
	}
	if angle < 0 {
		return nil, ErrNoUniform
	}
	switch cfg.Strategy {
	case StrategyFrame:
	case StrategyInterval:
		if cfg.Interval < 0 {
			return nil, fmt.Errorf("scheduler: interval must be positive, got %v", cfg.Interval)
		}
		if cfg.Interval == 0 {
			cfg.Interval = DefaultInterval
		}
	default:
		return nil, fmt.Errorf("scheduler: %v is not a valid strategy", cfg.Strategy)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Scheduler{
		dev:   dev,
		host:  host,
		angle: angle,
		cfg:   cfg,
	}
	s.tick = s.runTick
	return s, nil
}

// Start arms the first tick. It can be called once; ticking then continues
// until the host stops delivering callbacks.
func (s *Scheduler) Start() error {
	if s.state != Idle {
		return ErrAlreadyStarted
	}
	s.start = s.cfg.Clock()

	var err error
	switch s.cfg.Strategy {
	case StrategyFrame:
		err = s.host.RequestFrame(s.tick)
	case StrategyInterval:
		err = s.host.Every(s.cfg.Interval, s.tick)
	}
	if err != nil {
		return fmt.Errorf("failed to arm %s scheduler: %w", s.cfg.Strategy, err)
	}
	s.state = Armed
	log.Printf("Scheduler armed (%s strategy)", s.cfg.Strategy)
	return nil
}

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Ticks returns the number of ticks started so far.
func (s *Scheduler) Ticks() uint64 { return s.seq }

// Strategy returns the configured strategy.
func (s *Scheduler) Strategy() Strategy { return s.cfg.Strategy }

// now returns elapsed seconds since Start, never less than the previous tick.
func (s *Scheduler) now() float64 {
	t := s.cfg.Clock().Sub(s.start).Seconds()
	if t < s.last {
		t = s.last
	}
	s.last = t
	return t
}

func (s *Scheduler) runTick() {
	if s.state != Armed {
		// A halted scheduler can still be invoked by an interval timer the
		// host has not torn down yet.
		return
	}
	if s.inTick {
		s.fail(&TickError{Seq: s.seq, Reason: "tick re-entered before the previous tick finished"})
		return
	}
	s.inTick = true
	defer func() { s.inTick = false }()

	s.seq++
	tick := FrameTick{Seq: s.seq, Seconds: s.now()}

	// Errors raised between ticks, by present hooks for instance, belong to
	// whoever raised them.
	if err := s.dev.Err(); err != nil {
		log.Printf("Warning: graphics error before tick %d: %v", tick.Seq, err)
	}

	s.dev.Uniform1f(s.angle, float32(tick.Seconds))
	s.dev.Clear()
	s.dev.DrawTriangles(0, triangleVertexCount)

	if err := s.dev.Err(); err != nil {
		s.fail(&TickError{Seq: tick.Seq, Reason: "graphics error", Err: err})
	} else if s.cfg.OnTick != nil {
		s.cfg.OnTick(tick)
	}

	if s.state != Armed || s.cfg.Strategy != StrategyFrame {
		return
	}
	if err := s.host.RequestFrame(s.tick); err != nil {
		s.state = Halted
		if errors.Is(err, eventloop.ErrClosed) {
			log.Printf("Surface closed after tick %d, scheduler halted", tick.Seq)
			return
		}
		s.host.Abort(&TickError{Seq: tick.Seq, Reason: "re-arm failed", Err: err})
	}
}

func (s *Scheduler) fail(err *TickError) {
	if s.cfg.Policy == Continue {
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		} else {
			log.Printf("Warning: %v", err)
		}
		return
	}
	s.state = Halted
	s.host.Abort(err)
}

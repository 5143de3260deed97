// Package hdl provides a small discrete-event kernel for behavioural
// hardware models: signals with delta-cycle semantics, edge and delay
// sensitivities, and a Simulator that runs reactions to completion.
//
// Simulated time advances through the Akita serial engine. Every simulated
// tick that has something to do becomes one Akita event; the Simulator then
// runs the delta cycles of that tick itself.
package hdl

import (
	"io"
	"log"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"go.uber.org/multierr"
)

// DefaultMaxDeltas bounds the delta cycles of a single time step.
const DefaultMaxDeltas = 1000

var (
	// ErrZeroDelay is returned when a reaction asks for a zero tick delay.
	ErrZeroDelay = errors.New("hdl: delay must be at least one tick")

	// ErrDeltaOverflow is returned when a time step does not settle within
	// the configured number of delta cycles (usually a combinational loop).
	ErrDeltaOverflow = errors.New("hdl: signals did not settle")
)

// Tracer observes settled signal changes.
type Tracer interface {
	// Begin is called once, before the first time step, with every signal
	// known to the simulator.
	Begin(now uint64, signals []Watched) error
	// Change is called for each signal whose value changed at time now.
	Change(now uint64, sig Watched)
}

// Statistics holds kernel activity counters.
type Statistics struct {
	TimeSteps     uint64
	DeltaCycles   uint64
	ReactionRuns  uint64
	SignalUpdates uint64
}

// Option is a functional option for configuring the Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for run progress and faults.
func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxDeltas sets the delta cycle bound of a single time step.
func WithMaxDeltas(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.maxDeltas = n
		}
	}
}

// WithTracer attaches a tracer that sees every settled change.
func WithTracer(t Tracer) Option {
	return func(s *Simulator) {
		s.tracer = t
	}
}

type timer struct {
	r      *Reaction
	period uint64
}

type stepEvent struct {
	*sim.EventBase
}

func newStepEvent(at uint64, handler sim.Handler) *stepEvent {
	return &stepEvent{sim.NewEventBase(sim.VTimeInSec(at), handler)}
}

// Simulator owns signals and reactions and advances simulated time.
//
// A Simulator is not safe for concurrent use. Reactions run one at a time
// and are never preempted, which is what keeps state shared between
// reactions of different clock domains consistent.
type Simulator struct {
	engine sim.Engine
	logger *log.Logger
	tracer Tracer

	now       uint64
	until     uint64
	maxDeltas int
	started   bool
	err       error

	signals   []Watched
	reactions []*Reaction
	pending   []Watched
	timers    map[uint64][]timer
	armed     map[uint64]bool

	stats Statistics
}

// NewSimulator creates a simulator at time zero.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		engine:    sim.NewSerialEngine(),
		logger:    log.New(io.Discard, "", 0),
		maxDeltas: DefaultMaxDeltas,
		timers:    make(map[uint64][]timer),
		armed:     make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current simulated time in ticks.
func (s *Simulator) Now() uint64 { return s.now }

// Cycles returns the number of full cycles of a one tick clock generator.
func (s *Simulator) Cycles() uint64 { return s.now / 2 }

// Stats returns kernel statistics.
func (s *Simulator) Stats() Statistics { return s.stats }

// Signals returns the signals created on this simulator, in creation order.
func (s *Simulator) Signals() []Watched { return s.signals }

// Reactions returns the reactions added so far, in order.
func (s *Simulator) Reactions() []*Reaction { return s.reactions }

// Err returns the fault that stopped the simulator, if any.
func (s *Simulator) Err() error { return s.err }

// Add attaches reactions to their sensitivities. All problems are reported
// together; reactions whose sensitivities attached cleanly stay attached.
func (s *Simulator) Add(rs ...*Reaction) error {
	var err error
	for _, r := range rs {
		if r == nil {
			err = multierr.Append(err, errors.New("hdl: nil reaction"))
			continue
		}
		if len(r.sens) == 0 {
			err = multierr.Append(err, errors.Errorf("reaction %q has no sensitivity", r.name))
			continue
		}
		for _, sn := range r.sens {
			if sn == nil {
				err = multierr.Append(err, errors.Errorf("reaction %q: nil sensitivity", r.name))
				continue
			}
			err = multierr.Append(err, sn.attach(s, r))
		}
		s.reactions = append(s.reactions, r)
	}
	return err
}

// Run advances simulated time by ticks. Every time step up to and including
// Now()+ticks is processed. Values set with SetNext outside of a reaction are
// settled first, at the current time.
func (s *Simulator) Run(ticks uint64) error {
	if s.err != nil {
		return s.err
	}
	if !s.started {
		s.started = true
		if s.tracer != nil {
			if err := s.tracer.Begin(s.now, s.signals); err != nil {
				s.err = errors.Wrap(err, "hdl: start tracer")
				return s.err
			}
		}
	}

	s.until = s.now + ticks
	s.logger.Printf("hdl: run t=%d..%d", s.now, s.until)

	if err := s.deltas(s.now); err != nil {
		s.fail(err)
		return err
	}
	for at := range s.timers {
		s.arm(at)
	}
	if err := s.engine.Run(); err != nil {
		s.fail(errors.Wrap(err, "hdl: engine"))
	}
	if s.err != nil {
		return s.err
	}

	s.now = s.until
	return nil
}

// Handle processes one time step. It implements sim.Handler.
func (s *Simulator) Handle(e sim.Event) error {
	if s.err != nil {
		return nil
	}

	at := uint64(e.Time())
	delete(s.armed, at)
	due := s.timers[at]
	delete(s.timers, at)

	s.now = at
	s.stats.TimeSteps++

	for _, tm := range due {
		s.fire(tm.r)
		s.addTimer(at+tm.period, tm)
	}
	if err := s.deltas(at); err != nil {
		s.fail(err)
	}
	return nil
}

func (s *Simulator) fail(err error) {
	s.err = err
	s.logger.Printf("hdl: t=%d: %v", s.now, err)
}

func (s *Simulator) addTimer(at uint64, tm timer) {
	s.timers[at] = append(s.timers[at], tm)
	s.arm(at)
}

// arm schedules the time step at if it falls inside the current run window.
func (s *Simulator) arm(at uint64) {
	if at > s.until || s.armed[at] || !s.started {
		return
	}
	s.armed[at] = true
	s.engine.Schedule(newStepEvent(at, s))
}

func (s *Simulator) fire(r *Reaction) {
	r.runs++
	s.stats.ReactionRuns++
	r.body()
}

// deltas settles pending values and runs woken reactions until nothing is
// left to do at time now.
func (s *Simulator) deltas(now uint64) error {
	for n := 0; ; n++ {
		woken := s.settle(now)
		if len(woken) == 0 {
			return nil
		}
		if n >= s.maxDeltas {
			for _, r := range woken {
				r.queued = false
			}
			return errors.Wrapf(ErrDeltaOverflow, "t=%d after %d delta cycles", now, n)
		}

		s.stats.DeltaCycles++
		for _, r := range woken {
			r.queued = false
			s.fire(r)
		}
	}
}

// settle makes every pending value current and returns the reactions woken
// by the resulting transitions, each at most once.
func (s *Simulator) settle(now uint64) []*Reaction {
	pending := s.pending
	s.pending = nil

	var woken, buf []*Reaction
	for _, sig := range pending {
		changed, edge := sig.update()
		if !changed {
			continue
		}
		s.stats.SignalUpdates++
		if s.tracer != nil {
			s.tracer.Change(now, sig)
		}

		buf = sig.triggered(edge, buf[:0])
		for _, r := range buf {
			if !r.queued {
				r.queued = true
				woken = append(woken, r)
			}
		}
	}
	return woken
}

package hdl

import "github.com/pkg/errors"

// A Sensitivity describes what wakes a Reaction up.
type Sensitivity interface {
	attach(s *Simulator, r *Reaction) error
}

// Reaction is a process body run to completion each time one of its
// sensitivities fires.
type Reaction struct {
	name string
	body func()
	sens []Sensitivity

	queued bool
	runs   uint64
}

// Always builds a reaction that runs body whenever any of sens fires.
//
//	clk := hdl.NewSignal(s, "clk", false)
//	gen := hdl.Always("clkgen", func() { clk.SetNext(!clk.Value()) }, hdl.Delay(1))
func Always(name string, body func(), sens ...Sensitivity) *Reaction {
	return &Reaction{name: name, body: body, sens: sens}
}

// Name returns the reaction name.
func (r *Reaction) Name() string { return r.name }

// Runs returns how many times the reaction has fired.
func (r *Reaction) Runs() uint64 { return r.runs }

type edgeSensitivity struct {
	sig  Watched
	edge Edge
}

func (e edgeSensitivity) attach(s *Simulator, r *Reaction) error {
	if e.sig == nil {
		return errors.Errorf("reaction %q: nil signal", r.name)
	}
	if e.sig.owner() != s {
		return errors.Errorf("reaction %q: signal %q belongs to another simulator",
			r.name, e.sig.Name())
	}
	e.sig.watch(e.edge, r)
	return nil
}

// OnPosedge fires on every false to true transition of sig.
func OnPosedge(sig *Signal[bool]) Sensitivity {
	if sig == nil {
		return edgeSensitivity{}
	}
	return edgeSensitivity{sig: sig, edge: Posedge}
}

// OnNegedge fires on every true to false transition of sig.
func OnNegedge(sig *Signal[bool]) Sensitivity {
	if sig == nil {
		return edgeSensitivity{}
	}
	return edgeSensitivity{sig: sig, edge: Negedge}
}

// OnChange fires whenever sig settles to a different value.
func OnChange[T comparable](sig *Signal[T]) Sensitivity {
	if sig == nil {
		return edgeSensitivity{}
	}
	return edgeSensitivity{sig: sig, edge: AnyChange}
}

type delaySensitivity struct {
	ticks uint64
}

func (d delaySensitivity) attach(s *Simulator, r *Reaction) error {
	if d.ticks == 0 {
		return errors.Wrapf(ErrZeroDelay, "reaction %q", r.name)
	}
	s.addTimer(s.now+d.ticks, timer{r: r, period: d.ticks})
	return nil
}

// Delay fires every ticks ticks, starting ticks after the reaction is added.
func Delay(ticks uint64) Sensitivity {
	return delaySensitivity{ticks: ticks}
}

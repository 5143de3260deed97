package hdl

import "fmt"

// Edge identifies the kind of transition a reaction waits for.
type Edge int

const (
	// Posedge is a false to true transition of a bool signal.
	Posedge Edge = iota
	// Negedge is a true to false transition of a bool signal.
	Negedge
	// AnyChange is any transition to a different value.
	AnyChange

	numEdges
)

func (e Edge) String() string {
	switch e {
	case Posedge:
		return "posedge"
	case Negedge:
		return "negedge"
	case AnyChange:
		return "change"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// Watched is the type-erased view of a Signal used by the Simulator and by
// tracers.
type Watched interface {
	Name() string
	// Current returns the current value boxed in an interface.
	Current() any

	update() (changed bool, edge Edge)
	watch(e Edge, r *Reaction)
	triggered(e Edge, dst []*Reaction) []*Reaction
	owner() *Simulator
}

// Signal is a named cell holding a current value and a pending next value.
//
// Writes through SetNext only become visible through Value after the
// simulator settles the current delta cycle, so every reaction triggered by
// the same event observes the same values.
type Signal[T comparable] struct {
	sim   *Simulator
	name  string
	val   T
	next  T
	dirty bool

	waiters [numEdges][]*Reaction
}

// NewSignal creates a signal owned by s with initial value init.
func NewSignal[T comparable](s *Simulator, name string, init T) *Signal[T] {
	sig := &Signal[T]{
		sim:  s,
		name: name,
		val:  init,
		next: init,
	}
	s.signals = append(s.signals, sig)
	return sig
}

// Name returns the signal name.
func (s *Signal[T]) Name() string { return s.name }

// Value returns the current value.
func (s *Signal[T]) Value() T { return s.val }

// Current implements Watched.
func (s *Signal[T]) Current() any { return s.val }

// Next returns the pending value, or the current one if nothing is pending.
func (s *Signal[T]) Next() T { return s.next }

// SetNext schedules v to become the current value at the next settlement.
// The last write within a delta cycle wins.
func (s *Signal[T]) SetNext(v T) {
	s.next = v
	if !s.dirty {
		s.dirty = true
		s.sim.pending = append(s.sim.pending, s)
	}
}

func (s *Signal[T]) String() string {
	return fmt.Sprintf("%s=%v", s.name, s.val)
}

func (s *Signal[T]) owner() *Simulator { return s.sim }

func (s *Signal[T]) watch(e Edge, r *Reaction) {
	s.waiters[e] = append(s.waiters[e], r)
}

func (s *Signal[T]) update() (bool, Edge) {
	s.dirty = false
	if s.next == s.val {
		return false, AnyChange
	}
	s.val = s.next

	if b, ok := any(s.val).(bool); ok {
		if b {
			return true, Posedge
		}
		return true, Negedge
	}
	return true, AnyChange
}

// triggered appends the reactions woken by a transition of kind edge.
func (s *Signal[T]) triggered(edge Edge, dst []*Reaction) []*Reaction {
	if edge != AnyChange {
		dst = append(dst, s.waiters[edge]...)
	}
	return append(dst, s.waiters[AnyChange]...)
}

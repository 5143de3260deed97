// Package verify provides testbench components that drive and observe the
// clock and FIFO blocks, and checks over what they observed.
package verify

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/blocksim/hdl"
	"github.com/sarchlab/blocksim/timing/fifo"
)

// ErrEmptyPlan is returned when a Source or Sink is given no plan.
var ErrEmptyPlan = errors.New("verify: empty plan")

// Transfer is one value crossing a handshake, stamped with the simulated
// time it was observed at.
type Transfer struct {
	Time  uint64
	Value int
}

func values(ts []Transfer) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.Value
	}
	return out
}

// Source drives a FIFO write port. On each edge of its clock it offers the
// next stimulus value when the plan says so; the plan is replayed cyclically.
// Stimulus values start at 1 and advance only when the FIFO accepts one.
type Source struct {
	plan  []bool
	index int
	next  int
	trace []Transfer
}

// NewSource creates a source following plan.
func NewSource(plan []bool) (*Source, error) {
	if len(plan) == 0 {
		return nil, errors.Wrap(ErrEmptyPlan, "source")
	}
	return &Source{plan: plan, next: 1}, nil
}

// Generate returns the reaction driving w on the positive edges of clk.
func (src *Source) Generate(s *hdl.Simulator, clk *hdl.Signal[bool], w fifo.WritePort[int]) *hdl.Reaction {
	return hdl.Always("source", func() {
		if w.Valid.Value() && w.Ready.Value() {
			src.trace = append(src.trace, Transfer{Time: s.Now(), Value: w.Data.Value()})
			src.next++
		}

		if src.plan[src.index] {
			w.Valid.SetNext(true)
			w.Data.SetNext(src.next)
		} else {
			w.Valid.SetNext(false)
			w.Data.SetNext(-1)
		}
		src.index = (src.index + 1) % len(src.plan)
	}, hdl.OnPosedge(clk))
}

// Trace returns the values the FIFO accepted, in order.
func (src *Source) Trace() []int { return values(src.trace) }

// Transfers returns the accepted values with their acceptance times.
func (src *Source) Transfers() []Transfer { return src.trace }

// Sink drives a FIFO read port. On each edge of its clock it records the
// value delivered by the previous read, then raises or lowers ready as the
// plan says.
type Sink struct {
	plan  []bool
	index int
	trace []Transfer
}

// NewSink creates a sink following plan.
func NewSink(plan []bool) (*Sink, error) {
	if len(plan) == 0 {
		return nil, errors.Wrap(ErrEmptyPlan, "sink")
	}
	return &Sink{plan: plan}, nil
}

// Generate returns the reaction driving r on the positive edges of clk.
func (snk *Sink) Generate(s *hdl.Simulator, clk *hdl.Signal[bool], r fifo.ReadPort[int]) *hdl.Reaction {
	return hdl.Always("sink", func() {
		if r.Valid.Value() {
			snk.trace = append(snk.trace, Transfer{Time: s.Now(), Value: r.Data.Value()})
		}
		r.Ready.SetNext(snk.plan[snk.index])
		snk.index = (snk.index + 1) % len(snk.plan)
	}, hdl.OnPosedge(clk))
}

// Trace returns the values delivered, in order.
func (snk *Sink) Trace() []int { return values(snk.trace) }

// Transfers returns the delivered values with their observation times.
func (snk *Sink) Transfers() []Transfer { return snk.trace }

// IsPrefix reports whether read is a prefix of written.
func IsPrefix(written, read []int) bool {
	if len(read) > len(written) {
		return false
	}
	for i, v := range read {
		if written[i] != v {
			return false
		}
	}
	return true
}

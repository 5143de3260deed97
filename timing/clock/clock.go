// Package clock provides behavioural clock sources: a fixed period generator
// and a divider with independently programmable high and low phases.
package clock

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/blocksim/hdl"
)

// ErrInvalidConfig is wrapped by every constructor error in this package.
var ErrInvalidConfig = errors.New("clock: invalid configuration")

// Generator toggles its output every Ticks simulation ticks, producing a
// square wave with a period of 2*Ticks.
type Generator struct {
	ticks uint64
}

// NewGenerator creates a generator with a half period of ticks.
func NewGenerator(ticks int) (*Generator, error) {
	if ticks <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "generator ticks %d must be positive", ticks)
	}
	return &Generator{ticks: uint64(ticks)}, nil
}

// Ticks returns the half period.
func (g *Generator) Ticks() uint64 { return g.ticks }

// Period returns the full clock period in ticks.
func (g *Generator) Period() uint64 { return 2 * g.ticks }

// Generate returns the reaction driving clk.
func (g *Generator) Generate(clk *hdl.Signal[bool]) *hdl.Reaction {
	return hdl.Always("clockgen", func() {
		clk.SetNext(!clk.Value())
	}, hdl.Delay(g.ticks))
}

// Divider derives a clock from the positive edges of a source clock. The
// output stays high for High source edges and low for Low source edges.
type Divider struct {
	high    int
	low     int
	counter int
}

// NewDivider creates a divider with the given phase lengths, counted in
// source clock cycles.
func NewDivider(high, low int) (*Divider, error) {
	if high <= 0 || low <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"divider phases high=%d low=%d must be positive", high, low)
	}
	return &Divider{high: high, low: low}, nil
}

// High returns the high phase length.
func (d *Divider) High() int { return d.high }

// Low returns the low phase length.
func (d *Divider) Low() int { return d.low }

// Counter returns the source edges counted in the current phase.
func (d *Divider) Counter() int { return d.counter }

// Generate returns the reaction deriving out from the positive edges of in.
func (d *Divider) Generate(in, out *hdl.Signal[bool]) *hdl.Reaction {
	return hdl.Always("clockdiv", func() {
		d.counter++

		threshold := d.low
		if out.Value() {
			threshold = d.high
		}
		if d.counter >= threshold {
			out.SetNext(!out.Value())
			d.counter = 0
		}
	}, hdl.OnPosedge(in))
}

package fifo

import "github.com/sarchlab/blocksim/hdl"

// SingleClock is a FIFO whose write and read sides share one clock.
type SingleClock[T comparable] struct {
	queue[T]
}

// NewSingleClock creates a single clock FIFO of the given depth.
func NewSingleClock[T comparable](depth int) (*SingleClock[T], error) {
	q, err := newQueue[T](depth)
	if err != nil {
		return nil, err
	}
	return &SingleClock[T]{queue: q}, nil
}

// Generate returns the write reaction followed by the read reaction, both on
// the positive edge of clk. They must be added in that order: on a shared
// edge the write is processed before the read.
func (f *SingleClock[T]) Generate(
	clk *hdl.Signal[bool],
	w WritePort[T],
	r ReadPort[T],
	fullness *hdl.Signal[int],
) []*hdl.Reaction {
	return []*hdl.Reaction{
		hdl.Always("scfifo.wr", f.writeAccess(w, fullness), hdl.OnPosedge(clk)),
		hdl.Always("scfifo.rd", f.readAccess(r, fullness), hdl.OnPosedge(clk)),
	}
}

package fifo

import "github.com/sarchlab/blocksim/hdl"

// DualClock is a FIFO whose write side runs on one clock and read side on
// another.
//
// The storage is shared by both clock domains with no synchronizer and no
// lock. It stays consistent only because the simulator runs one reaction at
// a time to completion; the model deliberately ignores metastability and the
// gray-coded pointer crossing a real two clock FIFO needs.
type DualClock[T comparable] struct {
	queue[T]
}

// NewDualClock creates a dual clock FIFO of the given depth.
func NewDualClock[T comparable](depth int) (*DualClock[T], error) {
	q, err := newQueue[T](depth)
	if err != nil {
		return nil, err
	}
	return &DualClock[T]{queue: q}, nil
}

// Generate returns the write reaction, on the positive edge of wclk, and the
// read reaction, on the positive edge of rclk. When both clocks rise in the
// same time step their relative order is whatever the simulator settles
// first.
func (f *DualClock[T]) Generate(
	wclk *hdl.Signal[bool],
	w WritePort[T],
	rclk *hdl.Signal[bool],
	r ReadPort[T],
	fullness *hdl.Signal[int],
) []*hdl.Reaction {
	return []*hdl.Reaction{
		hdl.Always("dcfifo.wr", f.writeAccess(w, fullness), hdl.OnPosedge(wclk)),
		hdl.Always("dcfifo.rd", f.readAccess(r, fullness), hdl.OnPosedge(rclk)),
	}
}

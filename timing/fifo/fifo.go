// Package fifo provides behavioural FIFO queues with ready/valid write and
// read interfaces, clocked by one shared clock or by two independent ones.
//
// Both flavours deassert write readiness once the occupancy seen at a write
// edge reaches Depth()-1. Because the ready output is registered, the write
// already in flight at that edge still lands, so the queue never holds more
// than Depth() elements.
package fifo

import (
	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"

	"github.com/sarchlab/blocksim/hdl"
)

// ErrInvalidConfig is wrapped by every constructor error in this package.
var ErrInvalidConfig = errors.New("fifo: invalid configuration")

// WritePort groups the signals of the producer side.
type WritePort[T comparable] struct {
	// Ready is driven by the FIFO: it can accept data on the next edge.
	Ready *hdl.Signal[bool]
	// Valid is driven by the producer: Data holds an element.
	Valid *hdl.Signal[bool]
	// Data is driven by the producer.
	Data *hdl.Signal[T]
}

// ReadPort groups the signals of the consumer side.
type ReadPort[T comparable] struct {
	// Ready is driven by the consumer: it can take data on the next edge.
	Ready *hdl.Signal[bool]
	// Valid is driven by the FIFO: Data holds a dequeued element.
	Valid *hdl.Signal[bool]
	// Data is driven by the FIFO.
	Data *hdl.Signal[T]
}

// NewWritePort creates the write port signals, named after prefix.
func NewWritePort[T comparable](s *hdl.Simulator, prefix string, zero T) WritePort[T] {
	return WritePort[T]{
		Ready: hdl.NewSignal(s, prefix+"_rdy", false),
		Valid: hdl.NewSignal(s, prefix+"_valid", false),
		Data:  hdl.NewSignal(s, prefix+"_data", zero),
	}
}

// NewReadPort creates the read port signals, named after prefix.
func NewReadPort[T comparable](s *hdl.Simulator, prefix string, zero T) ReadPort[T] {
	return ReadPort[T]{
		Ready: hdl.NewSignal(s, prefix+"_rdy", false),
		Valid: hdl.NewSignal(s, prefix+"_valid", false),
		Data:  hdl.NewSignal(s, prefix+"_data", zero),
	}
}

// Statistics holds handshake counters.
type Statistics struct {
	// Writes and Reads count completed transfers.
	Writes uint64
	Reads  uint64
	// WriteStalls counts write edges with valid data but no readiness.
	WriteStalls uint64
	// ReadStalls counts read edges with a ready consumer but no data.
	ReadStalls uint64
	// Dropped counts writes refused because storage was already full.
	Dropped uint64
	// MaxOccupancy is the highest occupancy reached.
	MaxOccupancy int
}

// queue is the storage shared by both FIFO flavours. It is touched only from
// reactions, which the simulator never runs concurrently.
type queue[T comparable] struct {
	depth int
	items *immutable.List[T]
	stats Statistics
}

func newQueue[T comparable](depth int) (queue[T], error) {
	if depth <= 0 {
		return queue[T]{}, errors.Wrapf(ErrInvalidConfig, "depth %d must be positive", depth)
	}
	return queue[T]{depth: depth, items: immutable.NewList[T]()}, nil
}

// Depth returns the nominal depth.
func (q *queue[T]) Depth() int { return q.depth }

// Occupancy returns the number of stored elements.
func (q *queue[T]) Occupancy() int { return q.items.Len() }

// Stats returns handshake statistics.
func (q *queue[T]) Stats() Statistics { return q.stats }

// Snapshot returns the stored elements, oldest first.
func (q *queue[T]) Snapshot() []T {
	out := make([]T, 0, q.items.Len())
	itr := q.items.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		out = append(out, v)
	}
	return out
}

func (q *queue[T]) writeAccess(w WritePort[T], fullness *hdl.Signal[int]) func() {
	return func() {
		// Readiness depends on the occupancy before this edge's write.
		w.Ready.SetNext(q.items.Len() < q.depth-1)

		if !w.Valid.Value() {
			return
		}
		if !w.Ready.Value() {
			q.stats.WriteStalls++
			return
		}
		if q.items.Len() >= q.depth {
			q.stats.Dropped++
			return
		}

		q.items = q.items.Append(w.Data.Value())
		q.stats.Writes++
		if n := q.items.Len(); n > q.stats.MaxOccupancy {
			q.stats.MaxOccupancy = n
		}
		fullness.SetNext(q.items.Len())
	}
}

func (q *queue[T]) readAccess(r ReadPort[T], fullness *hdl.Signal[int]) func() {
	return func() {
		if r.Ready.Value() && q.items.Len() > 0 {
			head := q.items.Get(0)
			q.items = q.items.Slice(1, q.items.Len())
			q.stats.Reads++

			r.Data.SetNext(head)
			fullness.SetNext(q.items.Len())
			r.Valid.SetNext(true)
			return
		}

		if r.Ready.Value() {
			q.stats.ReadStalls++
		}
		r.Valid.SetNext(false)
	}
}

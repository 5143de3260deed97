package verify

import (
	"fmt"

	"github.com/anishathalye/porcupine"
	"github.com/benbjohnson/immutable"
)

// Enqueue is the input of an accepted write.
type Enqueue struct{ Value int }

// Dequeue is the input of a delivered read.
type Dequeue struct{}

// QueueModel is a porcupine model of a FIFO queue of ints. A dequeue's output
// is the value it returned.
var QueueModel = porcupine.Model{
	Init: func() any {
		return immutable.NewList[int]()
	},
	Step: func(state, input, output any) (bool, any) {
		q := state.(*immutable.List[int])
		switch in := input.(type) {
		case Enqueue:
			return true, q.Append(in.Value)
		case Dequeue:
			if q.Len() == 0 || q.Get(0) != output.(int) {
				return false, q
			}
			return true, q.Slice(1, q.Len())
		default:
			panic(fmt.Errorf("verify: unknown queue input %T", input))
		}
	},
	Equal: func(state1, state2 any) bool {
		a := state1.(*immutable.List[int])
		b := state2.(*immutable.List[int])
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if a.Get(i) != b.Get(i) {
				return false
			}
		}
		return true
	},
	DescribeOperation: func(input, output any) string {
		switch in := input.(type) {
		case Enqueue:
			return fmt.Sprintf("enqueue(%d)", in.Value)
		case Dequeue:
			return fmt.Sprintf("dequeue() -> %v", output)
		}
		return fmt.Sprintf("%v", input)
	},
}

// History turns the transfers seen by a source and a sink into porcupine
// operations. Operations observed in the same time step overlap, so they
// may linearize in either order.
func History(written, read []Transfer) []porcupine.Operation {
	ops := make([]porcupine.Operation, 0, len(written)+len(read))
	for _, t := range written {
		ops = append(ops, porcupine.Operation{
			ClientId: 0,
			Input:    Enqueue{Value: t.Value},
			Call:     int64(2 * t.Time),
			Return:   int64(2*t.Time + 1),
		})
	}
	for _, t := range read {
		ops = append(ops, porcupine.Operation{
			ClientId: 1,
			Input:    Dequeue{},
			Output:   t.Value,
			Call:     int64(2 * t.Time),
			Return:   int64(2*t.Time + 1),
		})
	}
	return ops
}

// CheckHistory reports whether ops is linearizable to a FIFO queue.
func CheckHistory(ops []porcupine.Operation) bool {
	result, _ := porcupine.CheckOperationsVerbose(QueueModel, ops, 0)
	return result == porcupine.Ok
}

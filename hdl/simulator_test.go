package hdl_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"

	"github.com/sarchlab/blocksim/hdl"
)

type change struct {
	at    uint64
	name  string
	value any
}

type recordingTracer struct {
	begun   []string
	changes []change
}

func (t *recordingTracer) Begin(now uint64, signals []hdl.Watched) error {
	for _, sig := range signals {
		t.begun = append(t.begun, sig.Name())
	}
	return nil
}

func (t *recordingTracer) Change(now uint64, sig hdl.Watched) {
	t.changes = append(t.changes, change{at: now, name: sig.Name(), value: sig.Current()})
}

var _ = Describe("Simulator", func() {
	var (
		s   *hdl.Simulator
		clk *hdl.Signal[bool]
	)

	toggle := func() *hdl.Reaction {
		return hdl.Always("clkgen", func() { clk.SetNext(!clk.Value()) }, hdl.Delay(1))
	}

	BeforeEach(func() {
		s = hdl.NewSimulator()
		clk = hdl.NewSignal(s, "clk", false)
	})

	Describe("Delay reactions", func() {
		It("should fire once per period and re-arm", func() {
			gen := toggle()
			Expect(s.Add(gen)).To(Succeed())

			Expect(s.Run(5)).To(Succeed())
			Expect(gen.Runs()).To(Equal(uint64(5)))
			Expect(clk.Value()).To(BeTrue())
			Expect(s.Now()).To(Equal(uint64(5)))
			Expect(s.Cycles()).To(Equal(uint64(2)))
		})

		It("should give the same result for split runs", func() {
			gen := toggle()
			Expect(s.Add(gen)).To(Succeed())

			Expect(s.Run(3)).To(Succeed())
			Expect(gen.Runs()).To(Equal(uint64(3)))
			Expect(s.Run(2)).To(Succeed())
			Expect(gen.Runs()).To(Equal(uint64(5)))
			Expect(s.Stats().TimeSteps).To(Equal(uint64(5)))
		})

		It("should honour longer periods", func() {
			var times []uint64
			slow := hdl.Always("slow", func() { times = append(times, s.Now()) }, hdl.Delay(3))
			Expect(s.Add(slow)).To(Succeed())

			Expect(s.Run(10)).To(Succeed())
			Expect(times).To(Equal([]uint64{3, 6, 9}))
		})

		It("should advance time with nothing scheduled", func() {
			Expect(s.Run(7)).To(Succeed())
			Expect(s.Now()).To(Equal(uint64(7)))
			Expect(s.Stats().TimeSteps).To(BeZero())
		})
	})

	Describe("Delta cycle settlement", func() {
		BeforeEach(func() {
			Expect(s.Add(toggle())).To(Succeed())
		})

		It("should swap two registers clocked by the same edge", func() {
			a := hdl.NewSignal(s, "a", true)
			b := hdl.NewSignal(s, "b", false)
			swap := hdl.Always("swap", func() {
				a.SetNext(b.Value())
				b.SetNext(a.Value())
			}, hdl.OnPosedge(clk))
			Expect(s.Add(swap)).To(Succeed())

			Expect(s.Run(2)).To(Succeed())
			Expect(a.Value()).To(BeFalse())
			Expect(b.Value()).To(BeTrue())
		})

		It("should not expose a same-cycle write to other reactions", func() {
			x := hdl.NewSignal(s, "x", 0)
			var seen []int
			writer := hdl.Always("writer", func() { x.SetNext(x.Value() + 1) }, hdl.OnPosedge(clk))
			reader := hdl.Always("reader", func() { seen = append(seen, x.Value()) }, hdl.OnPosedge(clk))
			Expect(s.Add(writer, reader)).To(Succeed())

			Expect(s.Run(6)).To(Succeed())
			Expect(seen).To(Equal([]int{0, 1, 2}))
			Expect(x.Value()).To(Equal(3))
		})

		It("should keep the last write of a delta cycle", func() {
			x := hdl.NewSignal(s, "x", 0)
			first := hdl.Always("first", func() { x.SetNext(1) }, hdl.OnPosedge(clk))
			second := hdl.Always("second", func() { x.SetNext(2) }, hdl.OnPosedge(clk))
			Expect(s.Add(first, second)).To(Succeed())

			Expect(s.Run(1)).To(Succeed())
			Expect(x.Value()).To(Equal(2))
		})

		It("should run reactions woken in a later delta at the same time", func() {
			derived := hdl.NewSignal(s, "derived", false)
			var times []uint64
			follow := hdl.Always("follow", func() { derived.SetNext(!derived.Value()) }, hdl.OnPosedge(clk))
			watch := hdl.Always("watch", func() { times = append(times, s.Now()) }, hdl.OnPosedge(derived))
			Expect(s.Add(follow, watch)).To(Succeed())

			Expect(s.Run(8)).To(Succeed())
			Expect(times).To(Equal([]uint64{1, 5}))
		})

		It("should distinguish edges", func() {
			x := hdl.NewSignal(s, "x", 0)
			var pos, neg, changes int
			Expect(s.Add(
				hdl.Always("pos", func() { pos++ }, hdl.OnPosedge(clk)),
				hdl.Always("neg", func() { neg++ }, hdl.OnNegedge(clk)),
				hdl.Always("any", func() { changes++; x.SetNext(x.Value() + 1) }, hdl.OnChange(clk)),
			)).To(Succeed())

			Expect(s.Run(5)).To(Succeed())
			Expect(pos).To(Equal(3))
			Expect(neg).To(Equal(2))
			Expect(changes).To(Equal(5))
			Expect(x.Value()).To(Equal(5))
		})

		It("should run a reaction once per delta even when several triggers fire", func() {
			other := hdl.NewSignal(s, "other", false)
			var runs int
			both := hdl.Always("both", func() { runs++ }, hdl.OnPosedge(clk), hdl.OnChange(clk), hdl.OnChange(other))
			Expect(s.Add(both)).To(Succeed())

			Expect(s.Run(1)).To(Succeed())
			Expect(runs).To(Equal(1))
		})
	})

	Describe("External stimulus", func() {
		It("should settle values set outside reactions at the current time", func() {
			x := hdl.NewSignal(s, "x", 0)
			var at []uint64
			Expect(s.Add(hdl.Always("watch", func() { at = append(at, s.Now()) }, hdl.OnChange(x)))).To(Succeed())

			x.SetNext(4)
			Expect(x.Value()).To(Equal(0))
			Expect(x.Next()).To(Equal(4))

			Expect(s.Run(0)).To(Succeed())
			Expect(x.Value()).To(Equal(4))
			Expect(at).To(Equal([]uint64{0}))
		})
	})

	Describe("Faults", func() {
		It("should report a combinational loop", func() {
			x := hdl.NewSignal(s, "x", 0)
			loop := hdl.Always("loop", func() { x.SetNext(x.Value() + 1) }, hdl.OnChange(x))
			Expect(s.Add(loop)).To(Succeed())

			x.SetNext(1)
			err := s.Run(1)
			Expect(err).To(MatchError(hdl.ErrDeltaOverflow))
			Expect(s.Err()).To(MatchError(hdl.ErrDeltaOverflow))
			Expect(s.Run(1)).To(MatchError(hdl.ErrDeltaOverflow))
		})

		It("should honour a custom delta bound", func() {
			s = hdl.NewSimulator(hdl.WithMaxDeltas(3))
			x := hdl.NewSignal(s, "x", 0)
			loop := hdl.Always("loop", func() {
				if x.Value() < 3 {
					x.SetNext(x.Value() + 1)
				}
			}, hdl.OnChange(x))
			Expect(s.Add(loop)).To(Succeed())

			x.SetNext(1)
			Expect(s.Run(1)).To(Succeed())
			Expect(x.Value()).To(Equal(3))
		})

		It("should collect every attachment problem", func() {
			foreign := hdl.NewSignal(hdl.NewSimulator(), "foreign", false)
			err := s.Add(
				hdl.Always("zero", func() {}, hdl.Delay(0)),
				hdl.Always("foreign", func() {}, hdl.OnPosedge(foreign)),
				hdl.Always("deaf", func() {}),
				nil,
			)
			Expect(err).To(HaveOccurred())
			Expect(multierr.Errors(err)).To(HaveLen(4))
			Expect(err).To(MatchError(hdl.ErrZeroDelay))
		})
	})

	Describe("Tracing", func() {
		It("should report the signal set and every settled change", func() {
			tr := &recordingTracer{}
			s = hdl.NewSimulator(hdl.WithTracer(tr))
			clk = hdl.NewSignal(s, "clk", false)
			count := hdl.NewSignal(s, "count", 0)
			Expect(s.Add(
				toggle(),
				hdl.Always("count", func() { count.SetNext(count.Value() + 1) }, hdl.OnPosedge(clk)),
			)).To(Succeed())

			Expect(s.Run(3)).To(Succeed())
			Expect(tr.begun).To(Equal([]string{"clk", "count"}))
			Expect(tr.changes).To(Equal([]change{
				{at: 1, name: "clk", value: true},
				{at: 1, name: "count", value: 1},
				{at: 2, name: "clk", value: false},
				{at: 3, name: "clk", value: true},
				{at: 3, name: "count", value: 2},
			}))
			Expect(s.Stats().SignalUpdates).To(Equal(uint64(5)))
			Expect(s.Signals()).To(HaveLen(2))
		})
	})
})

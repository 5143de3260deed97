package verify_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/blocksim/hdl"
	"github.com/sarchlab/blocksim/timing/clock"
	"github.com/sarchlab/blocksim/timing/fifo"
	"github.com/sarchlab/blocksim/verify"
)

var _ = Describe("IsPrefix", func() {
	DescribeTable("should compare read order against write order",
		func(written, read []int, want bool) {
			Expect(verify.IsPrefix(written, read)).To(Equal(want))
		},
		Entry("empty read", []int{1, 2}, []int{}, true),
		Entry("both empty", nil, nil, true),
		Entry("proper prefix", []int{1, 2, 3}, []int{1, 2}, true),
		Entry("equal", []int{1, 2, 3}, []int{1, 2, 3}, true),
		Entry("reordered", []int{1, 2, 3}, []int{2, 1}, false),
		Entry("longer than written", []int{1}, []int{1, 2}, false),
	)
})

var _ = Describe("ClockMonitor", func() {
	DescribeTable("should measure a divided clock",
		func(initClk bool, high, low int, ticks uint64) {
			s := hdl.NewSimulator()
			root := hdl.NewSignal(s, "root_clk", initClk)
			div := hdl.NewSignal(s, "div_clk", initClk)

			gen, err := clock.NewGenerator(1)
			Expect(err).NotTo(HaveOccurred())
			d, err := clock.NewDivider(high, low)
			Expect(err).NotTo(HaveOccurred())
			m := &verify.ClockMonitor{}

			Expect(s.Add(gen.Generate(root), d.Generate(root, div))).To(Succeed())
			Expect(s.Add(m.Generate(root, div)...)).To(Succeed())
			Expect(s.Run(ticks)).To(Succeed())

			gotHigh, gotLow := m.Means()
			Expect(gotHigh).To(Equal(high))
			Expect(gotLow).To(Equal(low))
		},
		Entry("1/1 from high", true, 1, 1, uint64(23)),
		Entry("5/3 from high", true, 5, 3, uint64(50)),
		Entry("3/3 from low", false, 3, 3, uint64(143)),
		Entry("4/4 from low", false, 4, 4, uint64(97)),
	)

	It("should report zero means before a full cycle", func() {
		m := &verify.ClockMonitor{}
		high, low := m.Means()
		Expect(high).To(BeZero())
		Expect(low).To(BeZero())
	})

	It("should count every reference edge", func() {
		s := hdl.NewSimulator()
		root := hdl.NewSignal(s, "root_clk", false)
		div := hdl.NewSignal(s, "div_clk", false)
		gen, _ := clock.NewGenerator(1)
		d, _ := clock.NewDivider(2, 2)
		m := &verify.ClockMonitor{}
		Expect(s.Add(gen.Generate(root), d.Generate(root, div))).To(Succeed())
		Expect(s.Add(m.Generate(root, div)...)).To(Succeed())

		Expect(s.Run(16)).To(Succeed())
		high, low, cycles := m.Counters()
		Expect(high + low).To(Equal(uint64(8)))
		Expect(cycles).To(Equal(uint64(2)))
	})
})

var _ = Describe("Source and Sink", func() {
	var (
		s   *hdl.Simulator
		clk *hdl.Signal[bool]
		w   fifo.WritePort[int]
		r   fifo.ReadPort[int]
	)

	BeforeEach(func() {
		s = hdl.NewSimulator()
		clk = hdl.NewSignal(s, "clk", false)
		w = fifo.NewWritePort(s, "wr", 0)
		r = fifo.NewReadPort(s, "rd", 0)
		gen, err := clock.NewGenerator(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Add(gen.Generate(clk))).To(Succeed())
	})

	It("should reject empty plans", func() {
		_, err := verify.NewSource(nil)
		Expect(err).To(MatchError(verify.ErrEmptyPlan))
		_, err = verify.NewSink([]bool{})
		Expect(err).To(MatchError(verify.ErrEmptyPlan))
	})

	It("should offer -1 while the plan is idle", func() {
		src, err := verify.NewSource([]bool{false, true})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Add(src.Generate(s, clk, w))).To(Succeed())

		Expect(s.Run(2)).To(Succeed())
		Expect(w.Valid.Value()).To(BeFalse())
		Expect(w.Data.Value()).To(Equal(-1))

		Expect(s.Run(2)).To(Succeed())
		Expect(w.Valid.Value()).To(BeTrue())
		Expect(w.Data.Value()).To(Equal(1))
	})

	It("should deliver a prefix of what was accepted through a FIFO", func() {
		f, err := fifo.NewSingleClock[int](4)
		Expect(err).NotTo(HaveOccurred())
		fullness := hdl.NewSignal(s, "fullness", 0)

		src, err := verify.NewSource([]bool{true, true, true, false, true})
		Expect(err).NotTo(HaveOccurred())
		snk, err := verify.NewSink([]bool{false, true, true, false})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Add(src.Generate(s, clk, w), snk.Generate(s, clk, r))).To(Succeed())
		Expect(s.Add(f.Generate(clk, w, r, fullness)...)).To(Succeed())
		Expect(s.Run(200)).To(Succeed())

		Expect(snk.Trace()).NotTo(BeEmpty())
		Expect(src.Trace()[:3]).To(Equal([]int{1, 2, 3}))
		Expect(verify.IsPrefix(src.Trace(), snk.Trace())).To(BeTrue())
		Expect(verify.CheckHistory(verify.History(src.Transfers(), snk.Transfers()))).To(BeTrue())
	})
})

var _ = Describe("CheckHistory", func() {
	It("should accept an in-order history", func() {
		ops := verify.History(
			[]verify.Transfer{{Time: 1, Value: 1}, {Time: 3, Value: 2}},
			[]verify.Transfer{{Time: 3, Value: 1}, {Time: 5, Value: 2}},
		)
		Expect(verify.CheckHistory(ops)).To(BeTrue())
	})

	It("should reject a reordered history", func() {
		ops := verify.History(
			[]verify.Transfer{{Time: 1, Value: 1}, {Time: 3, Value: 2}},
			[]verify.Transfer{{Time: 5, Value: 2}, {Time: 7, Value: 1}},
		)
		Expect(verify.CheckHistory(ops)).To(BeFalse())
	})

	It("should reject a value read before it was written", func() {
		ops := verify.History(
			[]verify.Transfer{{Time: 9, Value: 1}},
			[]verify.Transfer{{Time: 3, Value: 1}},
		)
		Expect(verify.CheckHistory(ops)).To(BeFalse())
	})
})

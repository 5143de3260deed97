package fifo_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/blocksim/hdl"
	"github.com/sarchlab/blocksim/timing/clock"
	"github.com/sarchlab/blocksim/timing/fifo"
)

var _ = Describe("SingleClock", func() {
	var (
		s        *hdl.Simulator
		clk      *hdl.Signal[bool]
		w        fifo.WritePort[int]
		r        fifo.ReadPort[int]
		fullness *hdl.Signal[int]
		f        *fifo.SingleClock[int]
	)

	build := func(depth int) {
		var err error
		f, err = fifo.NewSingleClock[int](depth)
		Expect(err).NotTo(HaveOccurred())
		gen, err := clock.NewGenerator(1)
		Expect(err).NotTo(HaveOccurred())

		s = hdl.NewSimulator()
		clk = hdl.NewSignal(s, "clk", false)
		w = fifo.NewWritePort(s, "wr", 0)
		r = fifo.NewReadPort(s, "rd", 0)
		fullness = hdl.NewSignal(s, "fullness", 0)

		Expect(s.Add(gen.Generate(clk))).To(Succeed())
		Expect(s.Add(f.Generate(clk, w, r, fullness)...)).To(Succeed())
	}

	// edge runs the simulation across exactly one positive clock edge.
	edge := func() {
		Expect(s.Run(2)).To(Succeed())
	}

	It("should reject a non-positive depth", func() {
		_, err := fifo.NewSingleClock[int](0)
		Expect(err).To(MatchError(fifo.ErrInvalidConfig))
	})

	It("should return the write reaction before the read reaction", func() {
		build(3)
		reactions := s.Reactions()
		Expect(reactions).To(HaveLen(3))
		Expect(reactions[1].Name()).To(Equal("scfifo.wr"))
		Expect(reactions[2].Name()).To(Equal("scfifo.rd"))
	})

	It("should raise write readiness on the first edge", func() {
		build(3)
		Expect(w.Ready.Value()).To(BeFalse())
		edge()
		Expect(w.Ready.Value()).To(BeTrue())
		Expect(f.Occupancy()).To(BeZero())
	})

	It("should read back the first two accepted values on edges three and four", func() {
		build(3)
		readPlan := []bool{false, false, true, true}
		w.Valid.SetNext(true)

		var delivered []int
		for i, rdy := range readPlan {
			w.Data.SetNext(101 + i)
			r.Ready.SetNext(rdy)
			edge()
			if r.Valid.Value() {
				delivered = append(delivered, r.Data.Value())
			}
		}

		Expect(delivered).To(Equal([]int{102, 103}))
		Expect(f.Snapshot()).To(Equal([]int{104}))
		Expect(fullness.Value()).To(Equal(1))
		Expect(f.Stats().Writes).To(Equal(uint64(3)))
		Expect(f.Stats().Reads).To(Equal(uint64(2)))
	})

	It("should report full after depth-1 writes and empty after draining", func() {
		build(3)
		edge()

		w.Valid.SetNext(true)
		for _, v := range []int{1, 2} {
			w.Data.SetNext(v)
			edge()
		}
		w.Valid.SetNext(false)
		edge()
		Expect(w.Ready.Value()).To(BeFalse())
		Expect(fullness.Value()).To(Equal(2))
		Expect(f.Snapshot()).To(Equal([]int{1, 2}))

		r.Ready.SetNext(true)
		var delivered []int
		for i := 0; i < 3; i++ {
			edge()
			if r.Valid.Value() {
				delivered = append(delivered, r.Data.Value())
			}
		}
		Expect(delivered).To(Equal([]int{1, 2}))
		Expect(f.Occupancy()).To(BeZero())
		Expect(fullness.Value()).To(BeZero())
		Expect(w.Ready.Value()).To(BeTrue())
		Expect(r.Valid.Value()).To(BeFalse())
		Expect(f.Stats().ReadStalls).To(Equal(uint64(1)))
	})

	It("should let the in-flight write use the reserved slot but never more", func() {
		build(3)
		w.Valid.SetNext(true)
		for i := 0; i < 8; i++ {
			w.Data.SetNext(i)
			edge()
			Expect(f.Occupancy()).To(BeNumerically("<=", 3))
		}

		Expect(f.Occupancy()).To(Equal(3))
		Expect(f.Stats().MaxOccupancy).To(Equal(3))
		Expect(f.Stats().Dropped).To(BeZero())
		Expect(f.Stats().WriteStalls).To(Equal(uint64(5)))
		Expect(f.Snapshot()).To(Equal([]int{1, 2, 3}))
	})

	It("should never accept data with a depth of one", func() {
		build(1)
		w.Valid.SetNext(true)
		for i := 0; i < 5; i++ {
			edge()
		}
		Expect(w.Ready.Value()).To(BeFalse())
		Expect(f.Occupancy()).To(BeZero())
	})

	It("should ignore a read while empty", func() {
		build(4)
		r.Ready.SetNext(true)
		edge()
		edge()
		Expect(r.Valid.Value()).To(BeFalse())
		Expect(f.Stats().Reads).To(BeZero())
		Expect(f.Stats().ReadStalls).To(Equal(uint64(2)))
	})

	DescribeTable("should preserve order and bound occupancy under random traffic",
		func(depth int, seed int64) {
			build(depth)
			rng := rand.New(rand.NewSource(seed))

			var writes, reads []int
			next := 0
			for i := 0; i < 500; i++ {
				valid := rng.Intn(4) != 0
				w.Valid.SetNext(valid)
				w.Data.SetNext(next)
				if valid && w.Ready.Value() {
					writes = append(writes, next)
					next++
				}
				r.Ready.SetNext(rng.Intn(3) == 0)

				pre := f.Occupancy()
				edge()

				Expect(f.Occupancy()).To(BeNumerically("<=", depth))
				Expect(w.Ready.Value()).To(Equal(pre < depth-1))
				Expect(fullness.Value()).To(Equal(f.Occupancy()))
				if r.Valid.Value() {
					reads = append(reads, r.Data.Value())
				}
			}

			Expect(len(reads)).To(BeNumerically(">", 0))
			Expect(reads).To(Equal(writes[:len(reads)]))
			Expect(f.Snapshot()).To(Equal(writes[len(reads):]))
			Expect(f.Stats().Dropped).To(BeZero())
		},
		Entry("depth 2", 2, int64(1)),
		Entry("depth 3", 3, int64(2)),
		Entry("depth 4", 4, int64(3)),
		Entry("depth 8", 8, int64(4)),
		Entry("depth 13", 13, int64(5)),
	)
})

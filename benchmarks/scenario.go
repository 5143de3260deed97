package benchmarks

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/blocksim/hdl"
	"github.com/sarchlab/blocksim/timing/clock"
	"github.com/sarchlab/blocksim/timing/fifo"
	"github.com/sarchlab/blocksim/vcd"
	"github.com/sarchlab/blocksim/verify"
)

// Scenario is one self-contained simulation with a pass criterion.
type Scenario interface {
	Run(opts ...RunOption) (Result, error)
}

// Result holds the outcome of a single scenario run.
type Result struct {
	// Name identifies the scenario
	Name string `json:"name"`

	// Kind is "clock", "scfifo" or "dcfifo"
	Kind string `json:"kind"`

	// Passed reports whether the pass criterion held
	Passed bool `json:"passed"`

	// Failure explains a failed run
	Failure string `json:"failure,omitempty"`

	// Ticks and Cycles are the simulated time at the end of the run
	Ticks  uint64 `json:"ticks"`
	Cycles uint64 `json:"cycles"`

	// MeanHigh and MeanLow are the measured divider phases
	MeanHigh int `json:"mean_high,omitempty"`
	MeanLow  int `json:"mean_low,omitempty"`

	// Written and Read count values through the source and sink
	Written int `json:"written,omitempty"`
	Read    int `json:"read,omitempty"`

	// Fifo holds the FIFO handshake counters
	Fifo fifo.Statistics `json:"fifo"`

	// Kernel holds the simulator activity counters
	Kernel hdl.Statistics `json:"kernel"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

type runOptions struct {
	trace  io.Writer
	logger *log.Logger
}

// RunOption configures a scenario run.
type RunOption func(*runOptions)

// WithTrace dumps a VCD trace of every signal to w.
func WithTrace(w io.Writer) RunOption {
	return func(o *runOptions) { o.trace = w }
}

// WithLogger sets the simulator logger.
func WithLogger(l *log.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// session builds a simulator with the run options applied, and finishes
// the trace once the run is over.
type session struct {
	s   *hdl.Simulator
	vcd *vcd.Writer
}

func newSession(scope string, opts []RunOption) *session {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var simOpts []hdl.Option
	ss := &session{}
	if o.trace != nil {
		ss.vcd = vcd.NewWriter(o.trace, vcd.WithScope(scope))
		simOpts = append(simOpts, hdl.WithTracer(ss.vcd))
	}
	if o.logger != nil {
		simOpts = append(simOpts, hdl.WithLogger(o.logger))
	}
	ss.s = hdl.NewSimulator(simOpts...)
	return ss
}

func (ss *session) run(ticks uint64) error {
	err := ss.s.Run(ticks)
	if ss.vcd != nil {
		if cerr := ss.vcd.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// ClockScenario checks a clock divider against the root clock.
type ClockScenario struct {
	Name    string `json:"name" mapstructure:"name"`
	InitClk bool   `json:"init_clk" mapstructure:"init_clk"`
	High    int    `json:"high" mapstructure:"high"`
	Low     int    `json:"low" mapstructure:"low"`
	Ticks   uint64 `json:"ticks" mapstructure:"ticks"`
}

// Run implements Scenario.
func (sc ClockScenario) Run(opts ...RunOption) (Result, error) {
	return RunClock(sc, opts...)
}

// RunClock drives a divider from a one tick root clock, both starting at
// InitClk, and passes when the measured mean phases equal High and Low.
func RunClock(sc ClockScenario, opts ...RunOption) (Result, error) {
	result := Result{Name: sc.Name, Kind: "clock"}

	gen, err := clock.NewGenerator(1)
	if err != nil {
		return result, err
	}
	div, err := clock.NewDivider(sc.High, sc.Low)
	if err != nil {
		return result, errors.Wrapf(err, "scenario %s", sc.Name)
	}

	ss := newSession(sc.Name, opts)
	root := hdl.NewSignal(ss.s, "root_clk", sc.InitClk)
	divided := hdl.NewSignal(ss.s, "div_clk", sc.InitClk)
	monitor := &verify.ClockMonitor{}

	if err := ss.s.Add(gen.Generate(root), div.Generate(root, divided)); err != nil {
		return result, err
	}
	if err := ss.s.Add(monitor.Generate(root, divided)...); err != nil {
		return result, err
	}

	start := time.Now()
	if err := ss.run(sc.Ticks); err != nil {
		return result, errors.Wrapf(err, "scenario %s", sc.Name)
	}
	result.WallTime = time.Since(start)

	result.Ticks = ss.s.Now()
	result.Cycles = ss.s.Cycles()
	result.Kernel = ss.s.Stats()
	result.MeanHigh, result.MeanLow = monitor.Means()
	result.Passed = result.MeanHigh == sc.High && result.MeanLow == sc.Low
	if !result.Passed {
		result.Failure = fmt.Sprintf("measured high=%d low=%d, want high=%d low=%d",
			result.MeanHigh, result.MeanLow, sc.High, sc.Low)
	}
	return result, nil
}

// FifoScenario streams a source plan and a sink plan through a FIFO.
type FifoScenario struct {
	Name       string
	Depth      int
	Dual       bool
	WriteRatio int
	ReadRatio  int
	SourcePlan []bool
	SinkPlan   []bool
	Ticks      uint64
}

// Run implements Scenario.
func (sc FifoScenario) Run(opts ...RunOption) (Result, error) {
	return RunFifo(sc, opts...)
}

// NewFifoScenario creates a scenario following MakeTestPlan(depth). The run
// lasts tickScale ticks per plan step.
func NewFifoScenario(depth int, dual bool, wratio, rratio int, tickScale float64) FifoScenario {
	source, sink := MakeTestPlan(depth)
	name := fmt.Sprintf("scfifo_d%d", depth)
	if dual {
		name = fmt.Sprintf("dcfifo_d%d_w%d_r%d", depth, wratio, rratio)
	}
	return FifoScenario{
		Name:       name,
		Depth:      depth,
		Dual:       dual,
		WriteRatio: wratio,
		ReadRatio:  rratio,
		SourcePlan: source,
		SinkPlan:   sink,
		Ticks:      uint64(float64(max(len(source), len(sink))) * tickScale),
	}
}

// RunFifo runs the scenario and passes when the values read are a prefix of
// the values written and the observed history linearizes to a queue.
//
// A single clock FIFO runs on the root clock. A dual clock FIFO runs each
// side on the root clock divided by its ratio, even a ratio of one.
func RunFifo(sc FifoScenario, opts ...RunOption) (Result, error) {
	kind := "scfifo"
	if sc.Dual {
		kind = "dcfifo"
	}
	result := Result{Name: sc.Name, Kind: kind}

	source, err := verify.NewSource(sc.SourcePlan)
	if err != nil {
		return result, errors.Wrapf(err, "scenario %s", sc.Name)
	}
	sink, err := verify.NewSink(sc.SinkPlan)
	if err != nil {
		return result, errors.Wrapf(err, "scenario %s", sc.Name)
	}
	gen, err := clock.NewGenerator(1)
	if err != nil {
		return result, err
	}

	ss := newSession(sc.Name, opts)
	s := ss.s
	root := hdl.NewSignal(s, "root_clk", false)
	w := fifo.NewWritePort(s, "wr", 0)
	r := fifo.NewReadPort(s, "rd", 0)
	fullness := hdl.NewSignal(s, "fullness", 0)
	if err := s.Add(gen.Generate(root)); err != nil {
		return result, err
	}

	var stats func() fifo.Statistics
	wclk, rclk := root, root
	if sc.Dual {
		f, err := fifo.NewDualClock[int](sc.Depth)
		if err != nil {
			return result, errors.Wrapf(err, "scenario %s", sc.Name)
		}
		wclk = hdl.NewSignal(s, "wr_clk", false)
		rclk = hdl.NewSignal(s, "rd_clk", false)
		wdiv, err := clock.NewDivider(sc.WriteRatio, sc.WriteRatio)
		if err != nil {
			return result, errors.Wrapf(err, "scenario %s", sc.Name)
		}
		rdiv, err := clock.NewDivider(sc.ReadRatio, sc.ReadRatio)
		if err != nil {
			return result, errors.Wrapf(err, "scenario %s", sc.Name)
		}
		if err := s.Add(wdiv.Generate(root, wclk), rdiv.Generate(root, rclk)); err != nil {
			return result, err
		}
		if err := s.Add(f.Generate(wclk, w, rclk, r, fullness)...); err != nil {
			return result, err
		}
		stats = f.Stats
	} else {
		f, err := fifo.NewSingleClock[int](sc.Depth)
		if err != nil {
			return result, errors.Wrapf(err, "scenario %s", sc.Name)
		}
		if err := s.Add(f.Generate(root, w, r, fullness)...); err != nil {
			return result, err
		}
		stats = f.Stats
	}

	if err := s.Add(source.Generate(s, wclk, w), sink.Generate(s, rclk, r)); err != nil {
		return result, err
	}

	start := time.Now()
	if err := ss.run(sc.Ticks); err != nil {
		return result, errors.Wrapf(err, "scenario %s", sc.Name)
	}
	result.WallTime = time.Since(start)

	result.Ticks = s.Now()
	result.Cycles = s.Cycles()
	result.Kernel = s.Stats()
	result.Fifo = stats()
	result.Written = len(source.Trace())
	result.Read = len(sink.Trace())

	switch {
	case !verify.IsPrefix(source.Trace(), sink.Trace()):
		result.Failure = "values read are not a prefix of values written"
	case !verify.CheckHistory(verify.History(source.Transfers(), sink.Transfers())):
		result.Failure = "history is not linearizable to a queue"
	default:
		result.Passed = true
	}
	return result, nil
}

// MakeTestPlan returns the source and sink plans of the standard FIFO
// story, one entry per source or sink clock cycle:
//
//  1. start empty and check underflow
//  2. alternate reads and writes at the edge of underflow
//  3. fill the FIFO
//  4. alternate reads and writes at the edge of overflow
//  5. freeze
//  6. partial read
//  7. alternate reads and writes at mid level
func MakeTestPlan(depth int) (source, sink []bool) {
	sourcePhases := []bool{false, true, true, true, false, false, true}
	sinkPhases := []bool{true, true, false, true, false, true, true}
	durations := []int{depth + 5, 10, depth + 3, 7, 5, 3, 9}

	for i, d := range durations {
		for j := 0; j < 2*d; j++ {
			source = append(source, sourcePhases[i])
			sink = append(sink, sinkPhases[i])
		}
	}
	return source, sink
}

// Suite returns the scenarios of a regression run: a single clock and a
// dual clock scenario per depth, dual clock scenarios with a slow write
// clock then a slow read clock, and the clock divider scenarios.
func Suite(cfg *Config) []Scenario {
	var out []Scenario
	for _, d := range cfg.Depths {
		out = append(out,
			NewFifoScenario(d, false, 1, 1, cfg.TickScale),
			NewFifoScenario(d, true, 1, 1, cfg.TickScale),
		)
	}
	for _, ratio := range cfg.WriteRatios {
		for _, d := range cfg.Depths {
			out = append(out, NewFifoScenario(d, true, ratio, 1, cfg.TickScale))
		}
	}
	for _, ratio := range cfg.ReadRatios {
		for _, d := range cfg.Depths {
			out = append(out, NewFifoScenario(d, true, 1, ratio, cfg.TickScale))
		}
	}
	for _, sc := range cfg.Clocks {
		out = append(out, sc)
	}
	return out
}

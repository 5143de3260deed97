package verify

import "github.com/sarchlab/blocksim/hdl"

// ClockMonitor measures a clock against a reference clock. It counts the
// reference edges that see the monitored clock high or low, and the
// monitored clock's own cycles.
type ClockMonitor struct {
	high   uint64
	low    uint64
	cycles uint64
}

// Generate returns the counting reactions.
func (m *ClockMonitor) Generate(ref, clk *hdl.Signal[bool]) []*hdl.Reaction {
	return []*hdl.Reaction{
		hdl.Always("monitor.phase", func() {
			if clk.Value() {
				m.high++
			} else {
				m.low++
			}
		}, hdl.OnPosedge(ref)),
		hdl.Always("monitor.cycles", func() {
			m.cycles++
		}, hdl.OnPosedge(clk)),
	}
}

// Counters returns the raw high, low and cycle counts.
func (m *ClockMonitor) Counters() (high, low, cycles uint64) {
	return m.high, m.low, m.cycles
}

// Means returns the mean high and low phase lengths in reference cycles,
// truncated. Both are zero until the monitored clock completes a cycle.
func (m *ClockMonitor) Means() (high, low int) {
	if m.cycles == 0 {
		return 0, 0
	}
	return int(m.high / m.cycles), int(m.low / m.cycles)
}

// Package benchmarks provides the regression infrastructure for the clock
// and FIFO blocks.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrScenarioFailed is returned by RunAll in fail-fast mode.
var ErrScenarioFailed = errors.New("scenario failed")

// HarnessConfig configures the regression harness.
type HarnessConfig struct {
	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose logs every finished scenario
	Verbose bool

	// Parallel bounds the number of scenarios simulated at once
	// (default: GOMAXPROCS)
	Parallel int

	// FailFast stops scheduling scenarios after the first failure
	FailFast bool

	// Logger receives progress lines (default: discard)
	Logger *log.Logger
}

// DefaultHarnessConfig returns a default harness configuration.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		Output:   os.Stdout,
		Verbose:  false,
		Parallel: runtime.GOMAXPROCS(0),
	}
}

// Harness runs regression scenarios and reports results.
type Harness struct {
	config    HarnessConfig
	scenarios []Scenario
}

// NewHarness creates a new regression harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Parallel <= 0 {
		config.Parallel = runtime.GOMAXPROCS(0)
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	return &Harness{
		config:    config,
		scenarios: []Scenario{},
	}
}

// AddScenario adds a scenario to the harness.
func (h *Harness) AddScenario(sc Scenario) {
	h.scenarios = append(h.scenarios, sc)
}

// AddScenarios adds multiple scenarios to the harness.
func (h *Harness) AddScenarios(scenarios []Scenario) {
	h.scenarios = append(h.scenarios, scenarios...)
}

// RunAll executes all scenarios and returns their results in the order they
// were added. Every simulation is confined to its own goroutine.
//
// A scenario whose simulation faults is reported as a failed result. In
// fail-fast mode the first failure cancels the scenarios not yet started;
// their results are left out and the failure is returned.
func (h *Harness) RunAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(h.scenarios))
	done := make([]bool, len(h.scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Parallel)

	for i, sc := range h.scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}

			r, err := sc.Run()
			if err != nil {
				r.Passed = false
				r.Failure = err.Error()
			}
			results[i] = r
			done[i] = true

			if h.config.Verbose {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
				}
				h.config.Logger.Printf("%s %s (%v)", status, r.Name, r.WallTime)
			}

			if !r.Passed && h.config.FailFast {
				return errors.Wrapf(ErrScenarioFailed, "%s: %s", r.Name, r.Failure)
			}
			return nil
		})
	}

	err := g.Wait()

	out := make([]Result, 0, len(results))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	return out, err
}

// Failed counts the failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// PrintResults outputs results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Blocksim Regression Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(h.config.Output, "Scenario: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(h.config.Output, "  Kind: %s\n", r.Kind)
		if r.Failure != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Failure: %s\n", r.Failure)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Time ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Ticks:          %d\n", r.Ticks)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:         %d\n", r.Cycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Delta Cycles:   %d\n", r.Kernel.DeltaCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Reaction Runs:  %d\n", r.Kernel.ReactionRuns)

		if r.Kind == "clock" {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Divider ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Mean High: %d\n", r.MeanHigh)
			_, _ = fmt.Fprintf(h.config.Output, "  Mean Low:  %d\n", r.MeanLow)
		} else {
			_, _ = fmt.Fprintln(h.config.Output, "  --- FIFO ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Written:       %d\n", r.Written)
			_, _ = fmt.Fprintf(h.config.Output, "  Read:          %d\n", r.Read)
			_, _ = fmt.Fprintf(h.config.Output, "  Write Stalls:  %d\n", r.Fifo.WriteStalls)
			_, _ = fmt.Fprintf(h.config.Output, "  Read Stalls:   %d\n", r.Fifo.ReadStalls)
			_, _ = fmt.Fprintf(h.config.Output, "  Max Occupancy: %d\n", r.Fifo.MaxOccupancy)
			if r.Fifo.Dropped > 0 {
				_, _ = fmt.Fprintf(h.config.Output, "  Dropped:       %d\n", r.Fifo.Dropped)
			}
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}

	_, _ = fmt.Fprintf(h.config.Output, "%d scenarios, %d failed\n", len(results), Failed(results))
}

// PrintCSV outputs results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,kind,passed,ticks,cycles,mean_high,mean_low,written,read,write_stalls,read_stalls,max_occupancy,dropped")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%t,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.Kind,
			r.Passed,
			r.Ticks,
			r.Cycles,
			r.MeanHigh,
			r.MeanLow,
			r.Written,
			r.Read,
			r.Fifo.WriteStalls,
			r.Fifo.ReadStalls,
			r.Fifo.MaxOccupancy,
			r.Fifo.Dropped,
		)
	}
}

// Report is the JSON document written by PrintJSON.
type Report struct {
	Metadata ReportMetadata `json:"metadata"`
	Results  []Result       `json:"results"`
	Summary  ReportSummary  `json:"summary"`
}

// ReportMetadata describes the run.
type ReportMetadata struct {
	Timestamp string `json:"timestamp"`
	Parallel  int    `json:"parallel"`
	FailFast  bool   `json:"fail_fast"`
}

// ReportSummary aggregates the results.
type ReportSummary struct {
	TotalScenarios int           `json:"total_scenarios"`
	Failed         int           `json:"failed"`
	TotalTicks     uint64        `json:"total_ticks"`
	TotalWallTime  time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []Result) error {
	var totalTicks uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalTicks += r.Ticks
		totalWallTime += r.WallTime
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Parallel:  h.config.Parallel,
			FailFast:  h.config.FailFast,
		},
		Results: results,
		Summary: ReportSummary{
			TotalScenarios: len(results),
			Failed:         Failed(results),
			TotalTicks:     totalTicks,
			TotalWallTime:  totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

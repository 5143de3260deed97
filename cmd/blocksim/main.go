// Package main provides the blocksim command line: exploration runs of the
// clock and FIFO blocks and the full regression.
package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/sarchlab/blocksim/benchmarks"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	cpuProfile string
	verbose    bool

	stderr io.Writer
	prof   interface{ Stop() }
}

func (f *rootFlags) logger() *log.Logger {
	if !f.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(f.stderr, "blocksim: ", log.LstdFlags)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{stderr: stderr}

	root := &cobra.Command{
		Use:   "blocksim",
		Short: "Clock and FIFO building blocks on a discrete-event kernel",
		Long: `Blocksim simulates behavioural clock generators, clock dividers and
single or dual clock FIFOs. Use the subcommands to explore one configuration
or to run the full regression.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.cpuProfile != "" {
				flags.prof = profile.Start(
					profile.CPUProfile,
					profile.ProfilePath(flags.cpuProfile),
					profile.NoShutdownHook,
					profile.Quiet,
				)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flags.prof != nil {
				flags.prof.Stop()
				flags.prof = nil
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.cpuProfile, "cpuprofile", "",
		"write a CPU profile into this directory")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"log progress to stderr")

	root.AddCommand(
		newClocksCmd(flags),
		newFifoCmd(flags),
		newRegressCmd(flags),
	)
	return root
}

// withTrace opens path as a VCD file when set and returns the run options
// that dump into it, plus a function closing it.
func withTrace(path string, logger *log.Logger) ([]benchmarks.RunOption, func() error, error) {
	opts := []benchmarks.RunOption{benchmarks.WithLogger(logger)}
	if path == "" {
		return opts, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create VCD file")
	}
	return append(opts, benchmarks.WithTrace(f)), f.Close, nil
}

func report(cmd *cobra.Command, r benchmarks.Result) error {
	h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: cmd.OutOrStdout()})
	h.PrintResults([]benchmarks.Result{r})
	if !r.Passed {
		return errors.Wrapf(benchmarks.ErrScenarioFailed, "%s: %s", r.Name, r.Failure)
	}
	return nil
}

func newClocksCmd(flags *rootFlags) *cobra.Command {
	sc := benchmarks.ClockScenario{Name: "clocks"}
	var vcdPath string

	cmd := &cobra.Command{
		Use:   "clocks",
		Short: "Divide a root clock and measure the divided phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, closeTrace, err := withTrace(vcdPath, flags.logger())
			if err != nil {
				return err
			}

			r, err := benchmarks.RunClock(sc, opts...)
			if cerr := closeTrace(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "failed to close VCD file")
			}
			if err != nil {
				return err
			}
			return report(cmd, r)
		},
	}

	cmd.Flags().IntVar(&sc.High, "high", 1, "divided high cycles")
	cmd.Flags().IntVar(&sc.Low, "low", 1, "divided low cycles")
	cmd.Flags().BoolVar(&sc.InitClk, "init-clk", false, "initial state of the clock signals")
	cmd.Flags().Uint64VarP(&sc.Ticks, "ticks", "t", 100, "simulation ticks")
	cmd.Flags().StringVar(&vcdPath, "vcd", "", "write a VCD trace to this file")
	return cmd
}

func newFifoCmd(flags *rootFlags) *cobra.Command {
	var (
		depth     int
		dual      bool
		wrRatio   int
		rdRatio   int
		tickScale float64
		vcdPath   string
	)

	cmd := &cobra.Command{
		Use:   "fifo",
		Short: "Stream the standard test plan through one FIFO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth <= 0 || wrRatio <= 0 || rdRatio <= 0 || tickScale <= 0 {
				return errors.New("depth, ratios and tick scale must be positive")
			}

			opts, closeTrace, err := withTrace(vcdPath, flags.logger())
			if err != nil {
				return err
			}

			sc := benchmarks.NewFifoScenario(depth, dual, wrRatio, rdRatio, tickScale)
			r, err := benchmarks.RunFifo(sc, opts...)
			if cerr := closeTrace(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "failed to close VCD file")
			}
			if err != nil {
				return err
			}
			return report(cmd, r)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 3, "FIFO depth")
	cmd.Flags().BoolVar(&dual, "dual", false, "use a dual clock FIFO")
	cmd.Flags().IntVar(&wrRatio, "wr-ratio", 1, "write clock division (dual clock only)")
	cmd.Flags().IntVar(&rdRatio, "rd-ratio", 1, "read clock division (dual clock only)")
	cmd.Flags().Float64Var(&tickScale, "tick-scale", 1.5, "simulated ticks per plan step")
	cmd.Flags().StringVar(&vcdPath, "vcd", "", "write a VCD trace to this file")
	return cmd
}

func newRegressCmd(flags *rootFlags) *cobra.Command {
	var (
		configPath string
		parallel   int
		failFast   bool
		csv        bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "regress",
		Short: "Run the full clock and FIFO regression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := benchmarks.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = benchmarks.LoadConfig(configPath); err != nil {
					return err
				}
			}

			harness := benchmarks.NewHarness(benchmarks.HarnessConfig{
				Output:   cmd.OutOrStdout(),
				Verbose:  flags.verbose,
				Parallel: parallel,
				FailFast: failFast,
				Logger:   flags.logger(),
			})
			harness.AddScenarios(benchmarks.Suite(cfg))

			results, runErr := harness.RunAll(context.Background())
			switch {
			case jsonOut:
				if err := harness.PrintJSON(results); err != nil {
					return err
				}
			case csv:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			if runErr != nil {
				return runErr
			}
			if n := benchmarks.Failed(results); n > 0 {
				return errors.Errorf("%d of %d scenarios failed", n, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "regression config file (JSON, YAML or TOML)")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "scenarios simulated at once (0: GOMAXPROCS)")
	cmd.Flags().BoolVar(&failFast, "failfast", false, "stop on the first failure")
	cmd.Flags().BoolVar(&csv, "csv", false, "print results as CSV")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
	_ "go.uber.org/automaxprocs"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/config"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/evaluate"
	"github.com/wuquanwang/workflow/internal/loader"
	"github.com/wuquanwang/workflow/internal/planner"
	"github.com/wuquanwang/workflow/internal/reporter"
	"github.com/wuquanwang/workflow/internal/scheduler"
	"github.com/wuquanwang/workflow/internal/ui"
)

var (
	flagConfig         string
	flagLogLevel       string
	flagWorkers        int
	flagSeed           int64
	flagJSON           bool
	flagNoColor        bool
	flagMetrics        bool
	flagAlgorithm      string
	flagDeadline       float64
	flagDeadlineFactor float64
	flagOutput         string
	flagMethods        []string
	flagFactors        []float64
	flagParallel       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wfsched",
		Short: "Schedule workflows on leased machines under a deadline",
		Long: `wfsched reads a workflow (Pegasus DAX or JSON), computes its levels and
reference schedules, then plans which machines to lease and where each task
runs so the workflow meets its deadline at the lowest cost.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (defaults when absent)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level, overrides the config (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Goroutines per search iteration, overrides the config")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "Random seed, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagMetrics, "metrics", false, "Print scheduler metrics when done")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(benchCmd())
	rootCmd.AddCommand(levelsCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(evaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and configures logging.
func setup(cmd *cobra.Command) (*config.Config, error) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = flagSeed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	log.SetLevel(level)
	if flagNoColor || flagJSON {
		ui.SetColor(false)
	}

	log.WithFields(log.Fields{
		"config":  flagConfig,
		"seed":    cfg.Seed,
		"workers": cfg.Workers,
	}).Debug("Loaded config")
	return cfg, nil
}

func metricsScope() tally.TestScope {
	if !flagMetrics {
		return nil
	}
	return tally.NewTestScope("wfsched", nil)
}

func scope(s tally.TestScope) tally.Scope {
	if s == nil {
		return tally.NoopScope
	}
	return s
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <workflow>",
		Short: "Schedule a workflow with one algorithm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			opts := cfg.SchedulerOptions()

			w, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			b := bench.New(w, opts.Catalog)
			levels := cpm.Analyze(w, opts.Catalog)

			factor := flagDeadlineFactor
			deadline := b.Deadline(factor)
			if cmd.Flags().Changed("deadline") {
				deadline, factor = flagDeadline, 0
			}
			w.SetDeadline(deadline)

			s, err := scheduler.New(flagAlgorithm, opts, rand.New(rand.NewSource(cfg.Seed)))
			if err != nil {
				return err
			}
			ms := metricsScope()
			s = scheduler.Instrument(s, scope(ms))

			log.WithFields(log.Fields{
				"workflow":  w.Name,
				"tasks":     w.Len() - 2,
				"algorithm": s.Name(),
				"deadline":  deadline,
			}).Info("Scheduling workflow")

			res, err := s.Schedule(w)
			if err != nil {
				return errors.Wrapf(err, "%s failed", s.Name())
			}
			if res.Feasible() {
				if err := res.Solution.Check(w); err != nil {
					return errors.Wrapf(err, "%s produced an invalid schedule", s.Name())
				}
			}

			plan, err := planner.Generate(w, res, levels, planner.PlanConfig{
				Algorithm:      s.Name(),
				Seed:           cfg.Seed,
				DeadlineFactor: factor,
			})
			if err != nil {
				return errors.Wrap(err, "generate plan")
			}

			if flagOutput != "" {
				f, err := os.Create(flagOutput)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := plan.WriteJSON(f); err != nil {
					return err
				}
			}

			rpt := reporter.New(plan, res.History)
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				rpt.PrintPlan(os.Stdout)
				rpt.PrintHistory(os.Stdout)
			}
			printMetrics(os.Stderr, ms)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagAlgorithm, "algorithm", "a", scheduler.ProLiSName, fmt.Sprintf("Scheduler, one of %v", scheduler.Names()))
	cmd.Flags().Float64Var(&flagDeadline, "deadline", 0, "Absolute deadline, overrides --deadline-factor")
	cmd.Flags().Float64Var(&flagDeadlineFactor, "deadline-factor", evaluate.FactorEnd, "Deadline between the fast (0) and cheap (1) makespans")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Save the lease plan to a JSON file")

	return cmd
}

func benchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench <workflow>",
		Short: "Compute the fast and cheap reference schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			cat := cfg.SchedulerOptions().Catalog
			w, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			b := bench.New(w, cat)

			if flagJSON {
				return outputJSON(benchJSON(w.Name, b, cfg.Evaluate.Factors))
			}
			reporter.PrintBenchmarks(os.Stdout, w, b)
			return nil
		},
	}
}

func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels <workflow>",
		Short: "Print bLevel, sLevel, tLevel, ALAP and slack of every task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			w, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			levels := cpm.Analyze(w, cfg.SchedulerOptions().Catalog)

			if flagJSON {
				return outputJSON(levelsJSON(w, levels))
			}
			reporter.PrintLevels(os.Stdout, w, levels)
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viz <workflow>",
		Short: "Print the workflow as Graphviz DOT with the critical path highlighted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			w, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			levels := cpm.Analyze(w, cfg.SchedulerOptions().Catalog)
			printDOT(os.Stdout, w, levels)
			return nil
		},
	}
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <workflow>...",
		Short: "Sweep deadline factors and compare schedulers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("methods") {
				cfg.Evaluate.Methods = flagMethods
			}
			if cmd.Flags().Changed("factors") {
				cfg.Evaluate.Factors = flagFactors
			}
			if cmd.Flags().Changed("parallel") {
				cfg.Evaluate.Parallel = flagParallel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sources := make([]evaluate.Source, len(args))
			for i, path := range args {
				sources[i] = evaluate.FileSource(path)
			}

			ms := metricsScope()
			log.WithFields(log.Fields{
				"workflows": len(sources),
				"factors":   len(cfg.Evaluate.Factors),
				"methods":   cfg.Evaluate.Methods,
			}).Info("Starting evaluation")
			report, err := evaluate.New(cfg.Evaluate, cfg.SchedulerOptions(), cfg.Seed, scope(ms)).Run(ctx, sources)
			if err != nil {
				return err
			}

			if flagJSON {
				data, err := reporter.EvaluationJSON(report)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				reporter.PrintEvaluation(os.Stdout, report)
			}
			printMetrics(os.Stderr, ms)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&flagMethods, "methods", nil, fmt.Sprintf("Schedulers to compare, from %v", scheduler.Names()))
	cmd.Flags().Float64SliceVar(&flagFactors, "factors", nil, "Deadline factors to sweep")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "Max workflow x factor jobs in flight (0 = unbounded)")

	return cmd
}

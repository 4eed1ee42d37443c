// Package evaluate sweeps deadline factors over a set of workflows and
// compares schedulers by success ratio and normalised cost.
package evaluate

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/uber-go/tally"
	"gonum.org/v1/gonum/stat"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/scheduler"
)

// Evaluator runs sweeps with fixed scheduler settings.
type Evaluator struct {
	opts  Options
	sched scheduler.Options
	seed  int64
	scope tally.Scope
}

// New returns an Evaluator. Each run seeds its own generator from seed and
// its position in the sweep, so reports do not depend on Parallel.
func New(opts Options, sched scheduler.Options, seed int64, scope tally.Scope) *Evaluator {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Evaluator{opts: opts, sched: sched, seed: seed, scope: scope}
}

// job is one workflow under one deadline factor.
type job struct {
	index  int
	source Source
	factor float64
}

type jobResult struct {
	runs      []Run
	reference Reference
}

// Run evaluates every source at every factor. A scheduler returning an
// invalid solution aborts the sweep.
func (e *Evaluator) Run(ctx context.Context, sources []Source) (*Report, error) {
	if len(e.opts.Methods) == 0 {
		return nil, errors.New("no methods to evaluate")
	}
	for _, m := range e.opts.Methods {
		if _, err := scheduler.New(m, e.sched, nil); err != nil {
			return nil, err
		}
	}

	var jobs []job
	for _, f := range e.opts.Factors {
		for _, src := range sources {
			jobs = append(jobs, job{index: len(jobs), source: src, factor: f})
		}
	}
	results := make([]jobResult, len(jobs))

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if e.opts.Parallel > 0 {
		p = p.WithMaxGoroutines(e.opts.Parallel)
	}
	for _, j := range jobs {
		j := j
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.runJob(j)
			if err != nil {
				return err
			}
			results[j.index] = res
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return e.aggregate(results), nil
}

func (e *Evaluator) runJob(j job) (jobResult, error) {
	w, err := j.source.Open()
	if err != nil {
		return jobResult{}, errors.Wrapf(err, "open %s", j.source.Name)
	}
	b := bench.New(w, e.sched.Catalog)
	deadline := b.Deadline(j.factor)
	cheapCost := b.Cheap.Cost()

	res := jobResult{
		reference: Reference{
			FastCost:      b.Fast.Cost(),
			FastMakespan:  b.Fast.Makespan(),
			CheapCost:     cheapCost,
			CheapMakespan: b.Cheap.Makespan(),
		},
	}

	for mi, method := range e.opts.Methods {
		seed := e.seed + int64(j.index*len(e.opts.Methods)+mi)
		s, err := scheduler.New(method, e.sched, rand.New(rand.NewSource(seed)))
		if err != nil {
			return jobResult{}, err
		}
		s = scheduler.Instrument(s, e.scope)

		w.SetDeadline(deadline)
		start := time.Now()
		out, err := s.Schedule(w)
		elapsed := time.Since(start)
		if err != nil {
			return jobResult{}, errors.Wrapf(err, "%s on %s", method, j.source.Name)
		}

		run := Run{
			ID:       uuid.New().String(),
			Workflow: j.source.Name,
			Factor:   j.factor,
			Method:   method,
			Deadline: deadline,
			Runtime:  elapsed,
		}
		if out.Feasible() {
			sol := out.Solution
			if err := sol.Check(w); err != nil {
				return jobResult{}, errors.Wrapf(err, "%s produced an invalid schedule for %s", method, j.source.Name)
			}
			run.Solved = true
			run.Cost = sol.Cost()
			run.Makespan = sol.Makespan()
			run.Success = run.Makespan <= deadline+Tolerance
			if cheapCost > 0 {
				run.NormalizedCost = run.Cost / cheapCost
			}
		}

		log.WithFields(log.Fields{
			"run_id":   run.ID,
			"workflow": run.Workflow,
			"factor":   run.Factor,
			"method":   method,
			"deadline": deadline,
			"cost":     run.Cost,
			"makespan": run.Makespan,
			"success":  run.Success,
			"runtime":  elapsed,
		}).Debug("Evaluated scheduler")
		res.runs = append(res.runs, run)
	}
	return res, nil
}

func (e *Evaluator) aggregate(results []jobResult) *Report {
	r := &Report{
		ID:      uuid.New().String(),
		Methods: e.opts.Methods,
	}

	var fc, fm, cc, cm []float64
	runtimes := make(map[string][]float64)
	success := make(map[float64]map[string][]float64)
	cost := make(map[float64]map[string][]float64)
	for _, f := range e.opts.Factors {
		success[f] = make(map[string][]float64)
		cost[f] = make(map[string][]float64)
	}

	for _, res := range results {
		fc = append(fc, res.reference.FastCost)
		fm = append(fm, res.reference.FastMakespan)
		cc = append(cc, res.reference.CheapCost)
		cm = append(cm, res.reference.CheapMakespan)
		for _, run := range res.runs {
			r.Runs = append(r.Runs, run)
			runtimes[run.Method] = append(runtimes[run.Method], float64(run.Runtime))
			ok := 0.0
			if run.Success {
				ok = 1
			}
			success[run.Factor][run.Method] = append(success[run.Factor][run.Method], ok)
			if run.Solved {
				cost[run.Factor][run.Method] = append(cost[run.Factor][run.Method], run.NormalizedCost)
			}
		}
	}

	for _, f := range e.opts.Factors {
		row := Row{Factor: f}
		for _, m := range e.opts.Methods {
			row.Methods = append(row.Methods, MethodStats{
				Method:         m,
				SuccessRatio:   mean(success[f][m]),
				NormalizedCost: mean(cost[f][m]),
				Solved:         len(cost[f][m]),
				Runs:           len(success[f][m]),
			})
		}
		r.Rows = append(r.Rows, row)
	}
	for _, m := range e.opts.Methods {
		r.Timings = append(r.Timings, Timing{
			Method:  m,
			Mean:    time.Duration(mean(runtimes[m])),
			Samples: len(runtimes[m]),
		})
	}
	r.Reference = Reference{
		FastCost:      mean(fc),
		FastMakespan:  mean(fm),
		CheapCost:     mean(cc),
		CheapMakespan: mean(cm),
	}

	log.WithFields(log.Fields{
		"report_id": r.ID,
		"runs":      len(r.Runs),
		"factors":   len(e.opts.Factors),
		"methods":   e.opts.Methods,
	}).Info("Evaluation finished")
	return r
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

package scheduler

import (
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// aco searches task orderings with an ant colony. Each ant builds a
// topological order by a pheromone-guided Kahn walk and hands it to the
// list scheduler. The deadline is relaxed towards the cheap schedule's
// makespan during the first iterations and tightened as the search goes.
type aco struct {
	cat     *cloud.Catalog
	opts    ACOOptions
	theta   float64
	workers int
	rng     *rand.Rand
}

// NewACO returns the ant colony scheduler. Ranks are drawn with the list
// scheduler's theta.
func NewACO(cat *cloud.Catalog, opts ACOOptions, list ProLiSOptions, workers int, rng *rand.Rand) Scheduler {
	return &aco{cat: cat, opts: opts, theta: list.Theta, workers: workers, rng: rng}
}

func (s *aco) Name() string { return ACOName }

type ant struct {
	order      []*graph.Task
	ranks      []float64
	sol        *solution.Solution
	violations int
}

func (s *aco) Schedule(w *graph.Workflow) (res *Result, err error) {
	defer solution.Recover(&err)

	n := w.Len()
	pheromone := newPheromone(n, s.opts.PheromoneMax)

	cheapMakespan := bench.Cheap(w, s.cat).Makespan()
	annealIters := int(float64(s.opts.Iterations) * s.opts.AnnealFraction)

	var (
		globalBest *ant
		history    []Progress
	)
	for it := 0; it < s.opts.Iterations; it++ {
		deadline := annealedDeadline(w.Deadline, cheapMakespan, it, annealIters)
		heuristic := cpm.PURank(w, s.cat, s.theta, s.rng)

		ants := make([]*ant, s.opts.Ants)
		for k := range ants {
			a := &ant{ranks: cpm.PURank(w, s.cat, s.theta, s.rng)}
			a.order = s.construct(w, pheromone, heuristic)
			ants[k] = a
		}

		var g errgroup.Group
		g.SetLimit(s.workers)
		for _, a := range ants {
			a := a
			g.Go(func() (err error) {
				defer solution.Recover(&err)
				a.sol, a.violations = buildViaTaskList(w, s.cat, a.order, a.ranks, deadline)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var localBest *ant
		for _, a := range ants {
			if localBest == nil || a.sol.IsBetterThan(localBest.sol, deadline) {
				localBest = a
			}
		}

		keep := s.opts.Evaporation
		pheromone.Scale(keep, pheromone)
		if globalBest != nil && s.rng.Float64() < s.opts.GlobalDeposit {
			s.deposit(pheromone, globalBest)
		} else {
			s.deposit(pheromone, localBest)
		}
		lo, hi := s.opts.PheromoneMin, s.opts.PheromoneMax
		pheromone.Apply(func(_, _ int, v float64) float64 {
			return math.Max(lo, math.Min(v, hi))
		}, pheromone)

		if globalBest == nil || localBest.sol.IsBetterThan(globalBest.sol, deadline) {
			globalBest = localBest
			log.WithFields(log.Fields{
				"workflow":  w.Name,
				"iteration": it,
				"cost":      globalBest.sol.Cost(),
				"makespan":  globalBest.sol.Makespan(),
				"deadline":  deadline,
			}).Debug("ACO global best")
		}
		history = append(history, snapshot(it, globalBest.sol, deadline))
	}

	if globalBest == nil {
		return &Result{Infeasible: &Infeasibility{Reason: "ant colony ran no iterations"}}, nil
	}
	return &Result{
		Solution:   globalBest.sol,
		Violations: globalBest.violations,
		History:    history,
	}, nil
}

// newPheromone returns an n by n matrix, indexed by (previous task id, next
// task id), filled with v.
func newPheromone(n int, v float64) *mat.Dense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(n, n, data)
}

// annealedDeadline starts at the cheap makespan and shrinks to the real
// deadline by the fourth power of the remaining annealing share.
func annealedDeadline(deadline, cheapMakespan float64, it, annealIters int) float64 {
	if cheapMakespan < deadline || it >= annealIters {
		return deadline
	}
	remaining := 1 - float64(it)/float64(annealIters)
	return deadline + (cheapMakespan-deadline)*math.Pow(remaining, 4)
}

// construct builds a topological order. Entry goes first; after that each
// step draws from the ready tasks by roulette, weighting a task by the
// pheromone on the edge from the previously chosen task and its heuristic.
func (s *aco) construct(w *graph.Workflow, pheromone *mat.Dense, heuristic []float64) []*graph.Task {
	released := make([]int, w.Len())
	ready := []*graph.Task{w.Entry()}
	order := make([]*graph.Task, 0, w.Len())
	weights := make([]float64, 0, w.MaxParallel)

	for len(ready) > 0 {
		chosen := 0
		if len(order) > 0 {
			prev := order[len(order)-1].ID
			weights = weights[:0]
			var sum float64
			for _, t := range ready {
				wt := math.Pow(pheromone.At(prev, t.ID), s.opts.Alpha) * math.Pow(heuristic[t.ID], s.opts.Beta)
				weights = append(weights, wt)
				sum += wt
			}
			slice := sum * s.rng.Float64()
			var acc float64
			for i := 0; i < len(ready) && acc < slice; i++ {
				acc += weights[i]
				chosen = i
			}
		}

		t := ready[chosen]
		ready = append(ready[:chosen], ready[chosen+1:]...)
		order = append(order, t)
		for _, e := range t.Out {
			c := e.Destination
			released[c.ID]++
			if released[c.ID] == len(c.In) {
				ready = append(ready, c)
			}
		}
	}
	return order
}

// deposit rewards consecutive pairs of an ant's order by 1/cost + 0.5.
func (s *aco) deposit(pheromone *mat.Dense, a *ant) {
	value := 1/a.sol.Cost() + 0.5
	for i := 0; i+1 < len(a.order); i++ {
		from, to := a.order[i].ID, a.order[i+1].ID
		pheromone.Set(from, to, pheromone.At(from, to)+value)
	}
}

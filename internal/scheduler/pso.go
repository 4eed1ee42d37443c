package scheduler

import (
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// pso searches lease assignments with a particle swarm. A position has one
// coordinate per task; its floor indexes a pool of MaxParallel leases per
// tier, slowest tiers first.
type pso struct {
	cat     *cloud.Catalog
	opts    PSOOptions
	workers int
	rng     *rand.Rand
}

// NewPSO returns the particle swarm scheduler.
func NewPSO(cat *cloud.Catalog, opts PSOOptions, workers int, rng *rand.Rand) Scheduler {
	return &pso{cat: cat, opts: opts, workers: workers, rng: rng}
}

func (s *pso) Name() string { return PSOName }

type particle struct {
	position []float64
	velocity []float64
	bestPos  []float64
	sol      *solution.Solution
	bestSol  *solution.Solution
}

func (s *pso) Schedule(w *graph.Workflow) (res *Result, err error) {
	defer solution.Recover(&err)

	dim := w.Len()
	pool := w.MaxParallel * s.cat.Tiers()
	xMin, xMax := 0.0, float64(pool-1)
	vMax := xMax

	particles := make([]*particle, s.opts.Population)
	for i := range particles {
		p := &particle{
			position: make([]float64, dim),
			velocity: make([]float64, dim),
			bestPos:  make([]float64, dim),
		}
		for j := 0; j < dim; j++ {
			p.position[j] = s.rng.Float64()*(xMax-xMin) + xMin
			p.velocity[j] = vMax*s.rng.Float64() - vMax/2
		}
		particles[i] = p
	}

	var (
		globalPos = make([]float64, dim)
		globalSol *solution.Solution
		history   []Progress
	)
	update := func(iteration int) error {
		if err := s.decodeAll(w, particles); err != nil {
			return err
		}
		for _, p := range particles {
			if p.sol.IsBetterThan(p.bestSol, w.Deadline) {
				copy(p.bestPos, p.position)
				p.bestSol = p.sol
			}
			if p.sol.IsBetterThan(globalSol, w.Deadline) {
				copy(globalPos, p.position)
				globalSol = p.sol
			}
		}
		history = append(history, snapshot(iteration, globalSol, w.Deadline))
		return nil
	}

	if err := update(0); err != nil {
		return nil, err
	}
	for it := 1; it <= s.opts.Iterations; it++ {
		for _, p := range particles {
			for j := 0; j < dim; j++ {
				v := s.opts.Inertia*p.velocity[j] +
					s.opts.Cognitive*s.rng.Float64()*(p.bestPos[j]-p.position[j]) +
					s.opts.Social*s.rng.Float64()*(globalPos[j]-p.position[j])
				p.velocity[j] = math.Max(-vMax, math.Min(v, vMax))
				p.position[j] = math.Max(xMin, math.Min(p.position[j]+p.velocity[j], xMax))
			}
		}
		if err := update(it); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"workflow":  w.Name,
			"iteration": it,
			"cost":      globalSol.Cost(),
			"makespan":  globalSol.Makespan(),
		}).Debug("PSO global best")
	}
	return &Result{Solution: globalSol, History: history}, nil
}

// decodeAll rebuilds every particle's solution concurrently. Decoding draws
// no random numbers, so the result does not depend on the worker count.
func (s *pso) decodeAll(w *graph.Workflow, particles []*particle) error {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, p := range particles {
		p := p
		g.Go(func() (err error) {
			defer solution.Recover(&err)
			p.sol = decode(w, s.cat, p.position)
			return nil
		})
	}
	return g.Wait()
}

// decode walks tasks in topological order and places each at its EST on the
// pool lease its coordinate points at. Pool leases are opened on first use.
func decode(w *graph.Workflow, cat *cloud.Catalog, position []float64) *solution.Solution {
	s := solution.New(cat)
	leases := make(map[int]int)
	for i, t := range w.Tasks {
		slot := int(math.Floor(position[i]))
		id, ok := leases[slot]
		if !ok {
			id = s.NewLease(cloud.Tier(slot / w.MaxParallel)).ID
			leases[slot] = id
		}
		s.Add(t, id, s.EST(t, id))
	}
	return s
}

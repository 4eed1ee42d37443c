// Package bench builds the two reference schedules that bound a workflow:
// the fast one approximates the shortest makespan, the cheap one the lowest
// cost.
package bench

import (
	"math"
	"sort"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// Benchmarks holds the fast and cheap reference schedules of a workflow.
type Benchmarks struct {
	Fast  *solution.Solution
	Cheap *solution.Solution
}

// New computes both reference schedules. Levels are recomputed first.
func New(w *graph.Workflow, cat *cloud.Catalog) *Benchmarks {
	cpm.Analyze(w, cat)
	return &Benchmarks{
		Fast:  Fast(w, cat),
		Cheap: Cheap(w, cat),
	}
}

// Deadline interpolates between the fast and cheap makespans: factor 0 is
// the fast makespan, factor 1 the cheap one.
func (b *Benchmarks) Deadline(factor float64) float64 {
	fast := b.Fast.Makespan()
	return fast + factor*(b.Cheap.Makespan()-fast)
}

// Cheap places every task in topological order on one slowest-tier lease.
func Cheap(w *graph.Workflow, cat *cloud.Catalog) *solution.Solution {
	s := solution.New(cat)
	lease := s.NewLease(cat.Slowest())
	for _, t := range w.Tasks {
		s.Add(t, lease.ID, s.EST(t, lease.ID))
	}
	return s
}

// Fast list-schedules tasks by descending bLevel. Each task goes to the used
// lease with the earliest start, or to a new fastest-tier lease when that
// would start it sooner. Levels must be current.
func Fast(w *graph.Workflow, cat *cloud.Catalog) *solution.Solution {
	order := ByBLevel(w)
	s := solution.New(cat)
	for _, t := range order {
		best, bestEST := cloud.NoLease, math.Inf(1)
		for _, l := range s.Leases() {
			if est := s.EST(t, l.ID); est < bestEST {
				best, bestEST = l.ID, est
			}
		}
		if est := s.EST(t, cloud.NoLease); est < bestEST {
			best, bestEST = s.NewLease(cat.Fastest()).ID, est
		}
		s.Add(t, best, bestEST)
	}
	return s
}

// ByBLevel returns the tasks sorted by descending bLevel, entry first and
// exit last. Ties keep topological order, so the result is itself a
// topological order.
func ByBLevel(w *graph.Workflow) []*graph.Task {
	order := make([]*graph.Task, len(w.Tasks))
	copy(order, w.Tasks)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		switch {
		case w.IsEntry(a) || w.IsExit(b):
			return !w.IsEntry(b) && !w.IsExit(a)
		case w.IsEntry(b) || w.IsExit(a):
			return false
		}
		return a.BLevel > b.BLevel
	})
	return order
}

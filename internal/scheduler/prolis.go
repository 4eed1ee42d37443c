package scheduler

import (
	"math"
	"math/rand"
	"sort"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// prolis orders tasks by probabilistic upward rank, splits the deadline into
// per-task sub-deadlines and places each task on the cheapest lease that
// meets its sub-deadline.
type prolis struct {
	cat   *cloud.Catalog
	theta float64
	rng   *rand.Rand
}

// NewProLiS returns the list scheduler with deadline distribution. With an
// infinite theta it is deterministic and rng may be nil.
func NewProLiS(cat *cloud.Catalog, opts ProLiSOptions, rng *rand.Rand) Scheduler {
	return &prolis{cat: cat, theta: opts.Theta, rng: rng}
}

func (s *prolis) Name() string { return ProLiSName }

func (s *prolis) Schedule(w *graph.Workflow) (res *Result, err error) {
	defer solution.Recover(&err)

	ranks := cpm.PURank(w, s.cat, s.theta, s.rng)
	sol, violations := buildViaTaskList(w, s.cat, byRank(w, ranks), ranks, w.Deadline)
	return &Result{Solution: sol, Violations: violations}, nil
}

// byRank sorts tasks by descending rank, entry first and exit last. Ties
// keep topological order.
func byRank(w *graph.Workflow, ranks []float64) []*graph.Task {
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
		return ranks[a.ID] > ranks[b.ID]
	})
	return order
}

// candidate is a place for one task: an existing lease, or a fresh lease of
// tier when leaseID is cloud.NoLease.
type candidate struct {
	leaseID int
	tier    cloud.Tier
	start   float64
	finish  float64
}

// buildViaTaskList schedules tasks in the given topological order, entry
// first. Each task gets the sub-deadline
//
//	(cp - rank + size/fastest) / cp * deadline
//
// where cp is the entry's rank. It returns the solution and the number of
// sub-deadlines missed.
func buildViaTaskList(w *graph.Workflow, cat *cloud.Catalog, order []*graph.Task, ranks []float64, deadline float64) (*solution.Solution, int) {
	s := solution.New(cat)
	entry := order[0]
	cp := ranks[entry.ID]
	fastest := cat.Speed(cat.Fastest())
	violations := 0

	for i := 1; i < len(order); i++ {
		t := order[i]
		first := i == 1

		subDeadline := deadline
		if cp > 0 && !math.IsInf(deadline, 1) {
			subDeadline = (cp - ranks[t.ID] + t.Size/fastest) / cp * deadline
		}

		c, ok := minCostLease(s, t, subDeadline, first)
		if !ok {
			c = minFinishLease(s, t, first)
			if c.leaseID != cloud.NoLease {
				for c.finish > subDeadline+solution.Epsilon && c.tier < cat.Fastest() {
					c.tier = s.Upgrade(c.leaseID).Tier
					c.start = s.EST(t, c.leaseID)
					c.finish = c.start + cat.ExecTime(t.Size, c.tier)
				}
			}
			if c.finish > subDeadline+solution.Epsilon {
				violations++
			}
		}

		if c.leaseID == cloud.NoLease {
			c.leaseID = s.NewLease(c.tier).ID
		}
		if first {
			s.Add(entry, c.leaseID, c.start)
		}
		s.Add(t, c.leaseID, c.start)
	}
	return s, violations
}

// freshStart is when t could start on a new lease. The first task after
// entry starts at launch time since entry is not placed yet.
func freshStart(s *solution.Solution, t *graph.Task, first bool) float64 {
	if first {
		return s.Catalog().LaunchTime
	}
	return s.EST(t, cloud.NoLease)
}

// minCostLease returns the lease, existing or fresh, that finishes t by
// subDeadline at the lowest marginal cost.
func minCostLease(s *solution.Solution, t *graph.Task, subDeadline float64, first bool) (candidate, bool) {
	cat := s.Catalog()
	var maxOut float64
	for _, e := range t.Out {
		maxOut = math.Max(maxOut, cat.TransferTime(e.Bytes))
	}

	var best candidate
	minExtra := math.Inf(1)
	for _, l := range s.Leases() {
		start := s.EST(t, l.ID)
		finish := start + cat.ExecTime(t.Size, l.Tier)
		if finish > subDeadline+solution.Epsilon {
			continue
		}
		period := finish + maxOut - s.LeaseStart(l.ID)
		extra := cat.Cost(l.Tier, period) - s.LeaseCost(l.ID)
		if extra < minExtra {
			minExtra = extra
			best = candidate{leaseID: l.ID, tier: l.Tier, start: start, finish: finish}
		}
	}

	start := freshStart(s, t, first)
	for i := 0; i < cat.Tiers(); i++ {
		tier := cloud.Tier(i)
		finish := start + cat.ExecTime(t.Size, tier)
		if finish > subDeadline+solution.Epsilon {
			continue
		}
		if extra := cat.Cost(tier, finish-start); extra < minExtra {
			minExtra = extra
			best = candidate{leaseID: cloud.NoLease, tier: tier, start: start, finish: finish}
		}
	}
	return best, !math.IsInf(minExtra, 1)
}

// minFinishLease returns the existing lease that finishes t first, or a
// fresh fastest lease when none is open.
func minFinishLease(s *solution.Solution, t *graph.Task, first bool) candidate {
	cat := s.Catalog()
	best := candidate{leaseID: cloud.NoLease, finish: math.Inf(1)}
	for _, l := range s.Leases() {
		start := s.EST(t, l.ID)
		finish := start + cat.ExecTime(t.Size, l.Tier)
		if finish < best.finish {
			best = candidate{leaseID: l.ID, tier: l.Tier, start: start, finish: finish}
		}
	}
	if best.leaseID == cloud.NoLease {
		start := freshStart(s, t, first)
		best = candidate{
			leaseID: cloud.NoLease,
			tier:    cat.Fastest(),
			start:   start,
			finish:  start + cat.ExecTime(t.Size, cat.Fastest()),
		}
	}
	return best
}

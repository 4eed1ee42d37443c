package scheduler

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// icpcp assigns partial critical paths, one chain at a time, to the lease
// that hosts the whole chain within its latest finish times at the lowest
// marginal cost. Every existing lease and one fresh lease per tier are
// candidates.
type icpcp struct {
	cat *cloud.Catalog
}

// NewICPCP returns the partial-critical-path scheduler. It is deterministic.
func NewICPCP(cat *cloud.Catalog) Scheduler {
	return &icpcp{cat: cat}
}

func (s *icpcp) Name() string { return ICPCPName }

func (s *icpcp) Schedule(w *graph.Workflow) (res *Result, err error) {
	defer solution.Recover(&err)

	r := newPCPRun(w, s.cat)
	r.init()
	if inf := r.assignParents(w.Exit()); inf != nil {
		log.WithFields(log.Fields{
			"workflow": w.Name,
			"deadline": w.Deadline,
		}).Debug(inf.Reason)
		return &Result{Infeasible: inf}, nil
	}
	r.placeEntryAndExit()
	return &Result{Solution: r.sol}, nil
}

// pcpRun is the scratch state of one run, indexed by task id.
type pcpRun struct {
	w     *graph.Workflow
	cat   *cloud.Catalog
	sol   *solution.Solution
	speed float64

	est, eft, lft []float64
	ast, aft      []float64
	assigned      []bool
	critParent    []*graph.Task
}

func newPCPRun(w *graph.Workflow, cat *cloud.Catalog) *pcpRun {
	n := w.Len()
	return &pcpRun{
		w:          w,
		cat:        cat,
		sol:        solution.New(cat),
		speed:      cat.Speed(cat.Fastest()),
		est:        make([]float64, n),
		eft:        make([]float64, n),
		lft:        make([]float64, n),
		ast:        make([]float64, n),
		aft:        make([]float64, n),
		assigned:   make([]bool, n),
		critParent: make([]*graph.Task, n),
	}
}

func (r *pcpRun) transfer(e *graph.Edge) float64 {
	return r.cat.TransferTime(e.Bytes)
}

// init recomputes EST, EFT and critical parents forward, then LFT backward
// from the deadline. Assigned tasks keep their actual times.
func (r *pcpRun) init() {
	entry, exit := r.w.Entry(), r.w.Exit()
	r.ast[entry.ID], r.aft[entry.ID] = r.cat.LaunchTime, r.cat.LaunchTime
	r.assigned[entry.ID] = true

	for _, t := range r.w.Tasks[1:] {
		est := r.cat.LaunchTime
		critArrival := math.Inf(-1)
		var critical *graph.Task
		for _, e := range t.In {
			p := e.Source
			arrival := r.transfer(e)
			if r.assigned[p.ID] {
				arrival += r.aft[p.ID]
			} else {
				arrival += r.eft[p.ID]
			}
			est = math.Max(est, arrival)
			if !r.assigned[p.ID] && arrival > critArrival {
				critArrival = arrival
				critical = p
			}
		}
		if !r.assigned[t.ID] {
			r.est[t.ID] = est
			r.eft[t.ID] = est + t.Size/r.speed
		}
		r.critParent[t.ID] = critical
	}

	r.ast[exit.ID], r.aft[exit.ID] = r.w.Deadline, r.w.Deadline
	r.assigned[exit.ID] = true
	for j := len(r.w.Tasks) - 2; j >= 0; j-- {
		t := r.w.Tasks[j]
		if r.assigned[t.ID] {
			continue
		}
		lft := math.Inf(1)
		for _, e := range t.Out {
			c := e.Destination
			var finish float64
			if r.assigned[c.ID] {
				finish = r.ast[c.ID] - r.transfer(e)
			} else {
				finish = r.lft[c.ID] - c.Size/r.speed - r.transfer(e)
			}
			lft = math.Min(lft, finish)
		}
		r.lft[t.ID] = lft
	}
}

// assignParents commits the chain of unassigned critical ancestors of t,
// then recurses into every task of that chain, until t has no unassigned
// parent left.
func (r *pcpRun) assignParents(t *graph.Task) *Infeasibility {
	for r.critParent[t.ID] != nil {
		var path []*graph.Task
		for ti := t; r.critParent[ti.ID] != nil; ti = r.critParent[ti.ID] {
			path = append([]*graph.Task{r.critParent[ti.ID]}, path...)
		}
		if inf := r.assignPath(path); inf != nil {
			return inf
		}
		r.init()
		for _, tj := range path {
			if inf := r.assignParents(tj); inf != nil {
				return inf
			}
		}
	}
	return nil
}

// pathFit is one way of hosting a chain: an existing lease or a fresh tier,
// and the start time of each chain task.
type pathFit struct {
	leaseID int
	tier    cloud.Tier
	starts  []float64
	extra   float64
}

func (r *pcpRun) assignPath(path []*graph.Task) *Infeasibility {
	var best *pathFit

	for _, l := range r.sol.Leases() {
		starts, ok := r.fitExisting(path, l)
		if !ok {
			continue
		}
		last := path[len(path)-1]
		finish := starts[len(starts)-1] + r.cat.ExecTime(last.Size, l.Tier)
		span := math.Max(finish, r.sol.LeaseEnd(l.ID)) - math.Min(starts[0], r.sol.LeaseStart(l.ID))
		extra := r.cat.Cost(l.Tier, span) - r.sol.LeaseCost(l.ID)
		if best == nil || extra < best.extra {
			best = &pathFit{leaseID: l.ID, tier: l.Tier, starts: starts, extra: extra}
		}
	}

	for i := 0; i < r.cat.Tiers(); i++ {
		tier := cloud.Tier(i)
		starts, ok := r.fitNew(path, tier)
		if !ok {
			continue
		}
		last := path[len(path)-1]
		finish := starts[len(starts)-1] + r.cat.ExecTime(last.Size, tier)
		extra := r.cat.Cost(tier, finish-starts[0])
		if best == nil || extra < best.extra {
			best = &pathFit{leaseID: cloud.NoLease, tier: tier, starts: starts, extra: extra}
		}
	}

	if best == nil {
		return &Infeasibility{Reason: fmt.Sprintf(
			"no lease can run path %v before its latest finish times", path)}
	}
	if best.leaseID == cloud.NoLease {
		best.leaseID = r.sol.NewLease(best.tier).ID
	}
	for i, t := range path {
		a := r.sol.Add(t, best.leaseID, best.starts[i])
		r.assigned[t.ID] = true
		r.ast[t.ID], r.aft[t.ID] = a.Start, a.Finish
	}
	return nil
}

// fitExisting places the chain into free slots of lease l, each task no
// earlier than its EST and its predecessor in the chain.
func (r *pcpRun) fitExisting(path []*graph.Task, l cloud.Lease) ([]float64, bool) {
	starts := make([]float64, len(path))
	for i, t := range path {
		est := r.est[t.ID]
		if i > 0 {
			prev := path[i-1]
			est = math.Max(est, starts[i-1]+r.cat.ExecTime(prev.Size, l.Tier))
		}
		dur := r.cat.ExecTime(t.Size, l.Tier)
		if est+dur > r.lft[t.ID]+solution.Epsilon {
			return nil, false
		}
		start, ok := r.searchStartTime(l.ID, dur, est, r.lft[t.ID])
		if !ok {
			return nil, false
		}
		starts[i] = start
	}
	return starts, true
}

// fitNew runs the chain back to back on a fresh lease of the given tier.
func (r *pcpRun) fitNew(path []*graph.Task, tier cloud.Tier) ([]float64, bool) {
	starts := make([]float64, len(path))
	for i, t := range path {
		est := r.est[t.ID]
		if i > 0 {
			prev := path[i-1]
			est = math.Max(est, starts[i-1]+r.cat.ExecTime(prev.Size, tier))
		}
		if est+r.cat.ExecTime(t.Size, tier) > r.lft[t.ID]+solution.Epsilon {
			return nil, false
		}
		starts[i] = est
	}
	return starts, true
}

// searchStartTime returns the first gap on a lease that opens early enough to
// finish by lft and is long enough for dur, starting no earlier than est.
func (r *pcpRun) searchStartTime(leaseID int, dur, est, lft float64) (float64, bool) {
	list := r.sol.Allocations(leaseID)
	for i := 0; i <= len(list); i++ {
		slotStart, slotEnd := r.cat.LaunchTime, math.Inf(1)
		if i > 0 {
			slotStart = list[i-1].Finish
		}
		if i < len(list) {
			slotEnd = list[i].Start
		}
		if lft-dur < slotStart {
			continue
		}
		start := math.Max(slotStart, est)
		if slotEnd-start >= dur {
			return start, true
		}
	}
	return 0, false
}

// placeEntryAndExit puts entry on the lease that starts first and exit on
// the lease that ends last.
func (r *pcpRun) placeEntryAndExit() {
	leases := r.sol.Leases()
	if len(leases) == 0 {
		leases = append(leases, r.sol.NewLease(r.cat.Slowest()))
	}

	earliest, latest := leases[0].ID, leases[0].ID
	for _, l := range leases[1:] {
		if r.sol.LeaseStart(l.ID) < r.sol.LeaseStart(earliest) {
			earliest = l.ID
		}
		if r.sol.LeaseEnd(l.ID) > r.sol.LeaseEnd(latest) {
			latest = l.ID
		}
	}

	entry, exit := r.w.Entry(), r.w.Exit()
	r.sol.Add(entry, earliest, r.cat.LaunchTime)
	r.sol.Add(exit, latest, r.sol.EST(exit, latest))
}

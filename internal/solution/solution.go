// Package solution holds the working state of a scheduling run: the leases
// in use, the allocations on each, and the cost and timing rules every
// scheduler shares.
package solution

import (
	"math"
	"sort"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/ids"
)

// Epsilon is the tolerance for timing comparisons.
const Epsilon = 1e-7

// Allocation binds one task to one lease for [Start, Finish).
type Allocation struct {
	Task    *graph.Task
	LeaseID int
	Start   float64
	Finish  float64
}

// Solution maps leases to their time-ordered allocations. Allocations on one
// lease never overlap and every task is placed at most once.
type Solution struct {
	cat    *cloud.Catalog
	ids    ids.Allocator
	leases map[int]*cloud.Lease
	order  []int // lease ids in creation order
	allocs map[int][]*Allocation
	byTask map[int]*Allocation
}

// New returns an empty solution priced with cat.
func New(cat *cloud.Catalog) *Solution {
	return &Solution{
		cat:    cat,
		leases: make(map[int]*cloud.Lease),
		allocs: make(map[int][]*Allocation),
		byTask: make(map[int]*Allocation),
	}
}

// Catalog returns the catalog the solution is priced with.
func (s *Solution) Catalog() *cloud.Catalog { return s.cat }

// NewLease opens a lease of the given tier with no allocations.
func (s *Solution) NewLease(tier cloud.Tier) cloud.Lease {
	if tier < 0 || int(tier) >= s.cat.Tiers() {
		invariantf("tier %d outside catalog", tier)
	}
	l := &cloud.Lease{ID: s.ids.Next(), Tier: tier}
	s.leases[l.ID] = l
	s.order = append(s.order, l.ID)
	return *l
}

// Leases returns every lease in creation order.
func (s *Solution) Leases() []cloud.Lease {
	out := make([]cloud.Lease, len(s.order))
	for i, id := range s.order {
		out[i] = *s.leases[id]
	}
	return out
}

// Lease returns the lease with the given id.
func (s *Solution) Lease(id int) (cloud.Lease, bool) {
	l, ok := s.leases[id]
	if !ok {
		return cloud.Lease{}, false
	}
	return *l, true
}

// Allocations returns the allocations on a lease ordered by start time.
func (s *Solution) Allocations(leaseID int) []Allocation {
	list := s.allocs[leaseID]
	out := make([]Allocation, len(list))
	for i, a := range list {
		out[i] = *a
	}
	return out
}

// Allocation returns the allocation of t, if it has been placed.
func (s *Solution) Allocation(t *graph.Task) (Allocation, bool) {
	a, ok := s.byTask[t.ID]
	if !ok {
		return Allocation{}, false
	}
	return *a, true
}

// Len returns the number of placed tasks.
func (s *Solution) Len() int { return len(s.byTask) }

// Add places t on a lease starting at start. It panics with an
// *InvariantError if the lease is unknown, t is already placed, or the new
// allocation overlaps another on the same lease.
func (s *Solution) Add(t *graph.Task, leaseID int, start float64) Allocation {
	lease := s.mustLease(leaseID)
	if _, ok := s.byTask[t.ID]; ok {
		invariantf("task %s allocated twice", t.Name)
	}
	a := &Allocation{
		Task:    t,
		LeaseID: leaseID,
		Start:   start,
		Finish:  start + s.cat.ExecTime(t.Size, lease.Tier),
	}

	list := s.allocs[leaseID]
	for _, o := range list {
		if overlaps(a, o) {
			invariantf("task %s [%v, %v] overlaps %s [%v, %v] on %v",
				t.Name, a.Start, a.Finish, o.Task.Name, o.Start, o.Finish, *lease)
		}
	}
	i := sort.Search(len(list), func(i int) bool {
		if list[i].Start != a.Start {
			return list[i].Start > a.Start
		}
		return list[i].Finish > a.Finish
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = a
	s.allocs[leaseID] = list
	s.byTask[t.ID] = a
	return *a
}

func overlaps(a, b *Allocation) bool {
	return a.Start < b.Finish-Epsilon && b.Start < a.Finish-Epsilon
}

// Upgrade moves a lease to the next faster tier and recomputes the finish
// time of every allocation on it. Upgrading the fastest tier panics.
func (s *Solution) Upgrade(leaseID int) cloud.Lease {
	lease := s.mustLease(leaseID)
	if lease.Tier >= s.cat.Fastest() {
		invariantf("%v is already the fastest tier", *lease)
	}
	lease.Tier++
	for _, a := range s.allocs[leaseID] {
		a.Finish = a.Start + s.cat.ExecTime(a.Task.Size, lease.Tier)
	}
	return *lease
}

// EST returns the earliest time t could start on a lease: every predecessor
// has finished and its data has arrived, and the lease is ready. Pass
// cloud.NoLease for a fresh lease, available at the catalog's launch time.
// Every predecessor of t must already be placed.
func (s *Solution) EST(t *graph.Task, leaseID int) float64 {
	est := s.cat.LaunchTime
	if leaseID != cloud.NoLease {
		est = s.ReadyTime(leaseID)
	}
	for _, e := range t.In {
		a, ok := s.byTask[e.Source.ID]
		if !ok {
			invariantf("EST of %s: predecessor %s is not allocated", t.Name, e.Source.Name)
		}
		arrival := a.Finish
		if a.LeaseID != leaseID {
			arrival += s.cat.TransferTime(e.Bytes)
		}
		est = math.Max(est, arrival)
	}
	return est
}

// ReadyTime is when a lease finishes its last task, or the launch time if it
// has none.
func (s *Solution) ReadyTime(leaseID int) float64 {
	s.mustLease(leaseID)
	list := s.allocs[leaseID]
	if len(list) == 0 {
		return s.cat.LaunchTime
	}
	return list[len(list)-1].Finish
}

// LeaseStart is when a lease must be running: its first start, less the
// longest inbound transfer from a predecessor placed elsewhere or not yet.
func (s *Solution) LeaseStart(leaseID int) float64 {
	s.mustLease(leaseID)
	list := s.allocs[leaseID]
	if len(list) == 0 {
		return s.cat.LaunchTime
	}
	first := list[0]
	var pad float64
	for _, e := range first.Task.In {
		if a, ok := s.byTask[e.Source.ID]; !ok || a.LeaseID != leaseID {
			pad = math.Max(pad, s.cat.TransferTime(e.Bytes))
		}
	}
	return first.Start - pad
}

// LeaseEnd is when a lease may be released: its last finish, plus the
// longest outbound transfer to a successor placed elsewhere or not yet.
func (s *Solution) LeaseEnd(leaseID int) float64 {
	s.mustLease(leaseID)
	list := s.allocs[leaseID]
	if len(list) == 0 {
		return s.cat.LaunchTime
	}
	last := list[len(list)-1]
	var pad float64
	for _, e := range last.Task.Out {
		if a, ok := s.byTask[e.Destination.ID]; !ok || a.LeaseID != leaseID {
			pad = math.Max(pad, s.cat.TransferTime(e.Bytes))
		}
	}
	return last.Finish + pad
}

// LeaseCost bills a lease for its padded span.
func (s *Solution) LeaseCost(leaseID int) float64 {
	lease := s.mustLease(leaseID)
	return s.cat.Cost(lease.Tier, s.LeaseEnd(leaseID)-s.LeaseStart(leaseID))
}

// Cost is the sum of every lease's bill.
func (s *Solution) Cost() float64 {
	var total float64
	for _, id := range s.order {
		total += s.LeaseCost(id)
	}
	return total
}

// Makespan is the latest ready time over all leases.
func (s *Solution) Makespan() float64 {
	var makespan float64
	for _, id := range s.order {
		makespan = math.Max(makespan, s.ReadyTime(id))
	}
	return makespan
}

// IsBetterThan reports whether s beats o under deadline, see Better. Any
// solution beats nil.
func (s *Solution) IsBetterThan(o *Solution, deadline float64) bool {
	if o == nil {
		return true
	}
	return Better(s.Makespan(), s.Cost(), o.Makespan(), o.Cost(), deadline)
}

// Better compares two schedules by makespan and cost under deadline: when
// both meet it the cheaper wins, when neither does the shorter wins, and
// meeting it beats missing it. Ties are not better.
func Better(makespan1, cost1, makespan2, cost2, deadline float64) bool {
	ok1, ok2 := makespan1 <= deadline, makespan2 <= deadline
	switch {
	case ok1 && ok2:
		return cost1 < cost2
	case !ok1 && !ok2:
		return makespan1 < makespan2
	default:
		return ok1
	}
}

func (s *Solution) mustLease(id int) *cloud.Lease {
	l, ok := s.leases[id]
	if !ok {
		invariantf("unknown lease %d", id)
	}
	return l
}

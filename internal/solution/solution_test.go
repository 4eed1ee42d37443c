package solution

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/graph/graphtest"
)

const mib = 1024 * 1024

func task(t *testing.T, w *graph.Workflow, name string) *graph.Task {
	t.Helper()
	for _, task := range w.Tasks {
		if task.Name == name {
			return task
		}
	}
	require.FailNow(t, "task not found", name)
	return nil
}

func expectInvariant(t *testing.T, fn func()) {
	t.Helper()
	err := func() (err error) {
		defer Recover(&err)
		fn()
		return nil
	}()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariant), "expected invariant error, got %v", err)
	assert.Equal(t, ErrInvariant, errors.Cause(err))
}

// diamondOnOneLease places entry, a, b, exit back to back on one lease of tier.
func diamondOnOneLease(w *graph.Workflow, tier cloud.Tier) *Solution {
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(tier)
	for _, task := range w.Tasks {
		s.Add(task, l.ID, s.EST(task, l.ID))
	}
	return s
}

func TestAddAndEST(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(8))

	s.Add(w.Entry(), l.ID, 0)
	a := task(t, w, "a")
	assert.Equal(t, 0.0, s.EST(a, l.ID))
	alloc := s.Add(a, l.ID, 0)
	assert.InDelta(t, 2.0, alloc.Finish, 1e-12)

	b := task(t, w, "b")
	assert.InDelta(t, 2.0, s.EST(b, l.ID), 1e-12)
	assert.Equal(t, 0.0, s.EST(b, cloud.NoLease))

	got, ok := s.Allocation(a)
	require.True(t, ok)
	assert.Equal(t, l.ID, got.LeaseID)
	assert.Equal(t, 2, s.Len())

	list := s.Allocations(l.ID)
	require.Len(t, list, 2)
	assert.Equal(t, w.Entry(), list[0].Task)
	assert.Equal(t, a, list[1].Task)
}

func TestAddKeepsLeaseOrderedByStart(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(8))

	s.Add(task(t, w, "b"), l.ID, 5)
	s.Add(task(t, w, "a"), l.ID, 1)
	s.Add(w.Entry(), l.ID, 1)

	names := []string{}
	for _, a := range s.Allocations(l.ID) {
		names = append(names, a.Task.Name)
	}
	assert.Equal(t, []string{"entry", "a", "b"}, names)
	assert.InDelta(t, 6.0, s.ReadyTime(l.ID), 1e-12)
}

func TestAddRejectsOverlap(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(8))
	s.Add(task(t, w, "a"), l.ID, 0)

	expectInvariant(t, func() { s.Add(task(t, w, "b"), l.ID, 1) })
	// touching intervals and zero-length tasks at the boundary are fine
	assert.NotPanics(t, func() { s.Add(task(t, w, "b"), l.ID, 2) })
	assert.NotPanics(t, func() { s.Add(w.Exit(), l.ID, 2) })
}

func TestAddRejectsDuplicateAndUnknownLease(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(0))
	s.Add(w.Entry(), l.ID, 0)

	expectInvariant(t, func() { s.Add(w.Entry(), l.ID, 100) })
	expectInvariant(t, func() { s.Add(w.Exit(), 42, 0) })
	expectInvariant(t, func() { s.NewLease(cloud.Tier(9)) })
}

func TestESTRequiresPlacedPredecessors(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	expectInvariant(t, func() { s.EST(task(t, w, "a"), cloud.NoLease) })
}

func TestESTIsMonotonic(t *testing.T) {
	w := graphtest.Chain(20*mib, 5, 10)
	t0, t1 := task(t, w, "t0"), task(t, w, "t1")

	est := func(start float64) float64 {
		s := New(cloud.DefaultCatalog())
		l0 := s.NewLease(cloud.Tier(8))
		l1 := s.NewLease(cloud.Tier(8))
		s.Add(w.Entry(), l0.ID, 0)
		s.Add(t0, l0.ID, start)
		return s.EST(t1, l1.ID)
	}

	prev := est(0)
	assert.InDelta(t, 2.0, prev, 1e-12) // finish 1 + transfer 1
	for _, start := range []float64{0.5, 1, 3, 10} {
		next := est(start)
		assert.True(t, next >= prev, "EST decreased from %v to %v", prev, next)
		prev = next
	}
}

func TestESTSkipsTransferOnSameLease(t *testing.T) {
	w := graphtest.Chain(20*mib, 5, 10)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(8))
	s.Add(w.Entry(), l.ID, 0)
	s.Add(task(t, w, "t0"), l.ID, 0)

	t1 := task(t, w, "t1")
	assert.InDelta(t, 1.0, s.EST(t1, l.ID), 1e-12)
	assert.InDelta(t, 2.0, s.EST(t1, cloud.NoLease), 1e-12)
}

func TestUpgradeRefreshesFinishTimes(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(0))
	s.Add(task(t, w, "a"), l.ID, 0)
	s.Add(task(t, w, "b"), l.ID, 10)

	upgraded := s.Upgrade(l.ID)
	assert.Equal(t, cloud.Tier(1), upgraded.Tier)

	list := s.Allocations(l.ID)
	assert.InDelta(t, 10/1.5, list[0].Finish, 1e-12)
	assert.InDelta(t, 10+5/1.5, list[1].Finish, 1e-12)

	got, _ := s.Lease(l.ID)
	assert.Equal(t, cloud.Tier(1), got.Tier)

	for s.Leases()[0].Tier < cloud.Tier(8) {
		s.Upgrade(l.ID)
	}
	expectInvariant(t, func() { s.Upgrade(l.ID) })
}

func TestLeaseSpanPadding(t *testing.T) {
	w := graphtest.Chain(20*mib, 5, 10)
	s := New(cloud.DefaultCatalog())
	l0 := s.NewLease(cloud.Tier(8))
	l1 := s.NewLease(cloud.Tier(8))

	s.Add(w.Entry(), l0.ID, 0)
	s.Add(task(t, w, "t0"), l0.ID, 0)
	// t1 not placed yet: its input still pads l0's end
	assert.InDelta(t, 2.0, s.LeaseEnd(l0.ID), 1e-12)

	t1 := task(t, w, "t1")
	s.Add(t1, l1.ID, s.EST(t1, l1.ID))
	s.Add(w.Exit(), l1.ID, s.EST(w.Exit(), l1.ID))

	assert.InDelta(t, 0.0, s.LeaseStart(l0.ID), 1e-12)
	assert.InDelta(t, 2.0, s.LeaseEnd(l0.ID), 1e-12)
	assert.InDelta(t, 1.0, s.LeaseStart(l1.ID), 1e-12)
	assert.InDelta(t, 4.0, s.LeaseEnd(l1.ID), 1e-12)
	assert.InDelta(t, 4.0, s.Makespan(), 1e-12)
	assert.InDelta(t, 2.0, s.Cost(), 1e-12)
	require.NoError(t, s.Check(w))
}

func TestEmptyLease(t *testing.T) {
	s := New(cloud.DefaultCatalog())
	l := s.NewLease(cloud.Tier(3))

	assert.Equal(t, 0.0, s.ReadyTime(l.ID))
	assert.Equal(t, 0.0, s.LeaseCost(l.ID))
	assert.Equal(t, 0.0, s.Cost())
	assert.Equal(t, 0.0, s.Makespan())
}

func TestCostIsBilledPerInterval(t *testing.T) {
	tests := map[string]struct {
		size     float64
		expected float64
	}{
		"just under": {size: 3600 - 1e-3, expected: 0.12},
		"exact":      {size: 3600, expected: 0.12},
		"just over":  {size: 3600 + 1e-3, expected: 0.24},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := graphtest.Chain(0, tt.size)
			s := diamondOnOneLease(w, cloud.Tier(0))
			assert.InDelta(t, tt.expected, s.Cost(), 1e-12)
			assert.NoError(t, s.Check(w))
		})
	}
}

func TestIsBetterThan(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	slow := diamondOnOneLease(w, cloud.Tier(0)) // makespan 15, cost 0.12
	fast := diamondOnOneLease(w, cloud.Tier(8)) // makespan 3, cost 1

	// both feasible: cheaper wins
	assert.True(t, slow.IsBetterThan(fast, 20))
	assert.False(t, fast.IsBetterThan(slow, 20))
	// neither feasible: shorter wins
	assert.True(t, fast.IsBetterThan(slow, 1))
	assert.False(t, slow.IsBetterThan(fast, 1))
	// feasible beats infeasible
	assert.True(t, fast.IsBetterThan(slow, 5))
	assert.False(t, slow.IsBetterThan(fast, 5))
	// ties are not better
	assert.False(t, slow.IsBetterThan(slow, 20))
	assert.True(t, slow.IsBetterThan(nil, 20))
}

func TestCheckReportsEveryViolation(t *testing.T) {
	w := graphtest.Chain(20*mib, 5, 10)
	s := New(cloud.DefaultCatalog())
	l0 := s.NewLease(cloud.Tier(8))
	l1 := s.NewLease(cloud.Tier(8))

	s.Add(w.Entry(), l0.ID, 0)
	s.Add(task(t, w, "t0"), l0.ID, 0)
	// starts before t0's data arrives at 2
	s.Add(task(t, w, "t1"), l1.ID, 1.5)

	err := s.Check(w)
	require.Error(t, err)
	// missing exit and a late edge
	assert.Len(t, multierr.Errors(err), 2)
	assert.False(t, s.Validate(w))
}

func TestCheckRejectsForeignTasks(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	other := graphtest.Diamond(10, 5)
	s := diamondOnOneLease(other, cloud.Tier(8))

	assert.True(t, s.Validate(other))
	assert.False(t, s.Validate(w))
}

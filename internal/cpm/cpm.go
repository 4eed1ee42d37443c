package cpm

import (
	"math"
	"math/rand"
	"sort"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
)

// tolerance for comparing path lengths built from float sums.
const tolerance = 1e-9

// Analyze recomputes BLevel, SLevel, ALAP, TLevel and the deterministic
// PURank of every task in place, using the fastest tier as reference speed.
// It is a full pass and safe to repeat.
func Analyze(w *graph.Workflow, cat *cloud.Catalog) *Result {
	speed := cat.Speed(cat.Fastest())

	// Backward pass: bLevel and sLevel
	for j := len(w.Tasks) - 1; j >= 0; j-- {
		t := w.Tasks[j]
		var bLevel, sLevel float64
		for _, e := range t.Out {
			child := e.Destination
			bLevel = math.Max(bLevel, child.BLevel+cat.TransferTime(e.Bytes))
			sLevel = math.Max(sLevel, child.SLevel)
		}
		t.BLevel = bLevel + t.Size/speed
		t.SLevel = sLevel + t.Size/speed
	}

	length := w.Entry().BLevel

	// Backward pass: latest allowable start
	for j := len(w.Tasks) - 1; j >= 0; j-- {
		t := w.Tasks[j]
		alap := length
		for _, e := range t.Out {
			alap = math.Min(alap, e.Destination.ALAP-cat.TransferTime(e.Bytes))
		}
		t.ALAP = alap - t.Size/speed
	}

	// Forward pass: tLevel
	for _, t := range w.Tasks {
		var arrival float64
		for _, e := range t.In {
			parent := e.Source
			arrival = math.Max(arrival, parent.TLevel+parent.Size/speed+cat.TransferTime(e.Bytes))
		}
		t.TLevel = arrival
	}

	ranks := PURank(w, cat, math.Inf(1), nil)
	for _, t := range w.Tasks {
		t.PURank = ranks[t.ID]
	}

	result := &Result{
		Length:       length,
		CriticalPath: CriticalPath(w),
	}
	result.Waves = computeWaves(w, result.CriticalPath)
	return result
}

// PURank computes the probabilistic upward rank of every task, indexed by task
// id. Each outgoing edge's transfer time is kept with probability
// 1 - theta^(-et/tt), where et is the child's compute time at the fastest tier
// and tt the transfer time, so edges whose transfer dominates are dropped more
// often. theta = +Inf keeps every edge and rng may then be nil. The workflow
// is not modified, so concurrent callers may share it.
func PURank(w *graph.Workflow, cat *cloud.Catalog, theta float64, rng *rand.Rand) []float64 {
	speed := cat.Speed(cat.Fastest())
	deterministic := math.IsInf(theta, 1)
	rank := make([]float64, w.Len())

	for j := len(w.Tasks) - 1; j >= 0; j-- {
		t := w.Tasks[j]
		var r float64
		for _, e := range t.Out {
			child := e.Destination
			tt := cat.TransferTime(e.Bytes)
			if tt > 0 && !deterministic {
				et := child.Size / speed
				if keep := 1 - math.Pow(theta, -et/tt); keep < rng.Float64() {
					tt = 0
				}
			}
			r = math.Max(r, rank[child.ID]+tt)
		}
		rank[t.ID] = r + t.Size/speed
	}
	return rank
}

// CriticalPath returns the tasks whose tLevel + bLevel equals the critical-path
// length, in topological order. Levels must be current.
func CriticalPath(w *graph.Workflow) []*graph.Task {
	length := w.Entry().BLevel
	var path []*graph.Task
	for _, t := range w.Tasks {
		if math.Abs(t.TLevel+t.BLevel-length) <= tolerance*math.Max(1, length) {
			path = append(path, t)
		}
	}
	return path
}

// Slack is how long t can be delayed past its tLevel without stretching the
// critical path.
func Slack(t *graph.Task) float64 {
	return t.ALAP - t.TLevel
}

// computeWaves groups tasks by their tLevel.
func computeWaves(w *graph.Workflow, critical []*graph.Task) []Wave {
	onPath := make(map[*graph.Task]bool, len(critical))
	for _, t := range critical {
		onPath[t] = true
	}

	sorted := make([]*graph.Task, len(w.Tasks))
	copy(sorted, w.Tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TLevel < sorted[j].TLevel
	})

	var waves []Wave
	for _, t := range sorted {
		n := len(waves)
		if n == 0 || t.TLevel-waves[n-1].TLevel > tolerance*math.Max(1, t.TLevel) {
			waves = append(waves, Wave{Index: n, TLevel: t.TLevel})
			n++
		}
		wave := &waves[n-1]
		wave.Tasks = append(wave.Tasks, t)
		if onPath[t] {
			wave.IsCritical = true
		}
	}

	// Sort critical tasks first within wave
	for i := range waves {
		tasks := waves[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool {
			return onPath[tasks[a]] && !onPath[tasks[b]]
		})
	}
	return waves
}

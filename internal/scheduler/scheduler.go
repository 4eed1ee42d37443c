// Package scheduler implements deadline-constrained, cost-minimising
// workflow schedulers over leased machines.
package scheduler

import (
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// Scheduler turns a workflow with a deadline into a schedule.
type Scheduler interface {
	Name() string
	// Schedule returns an error only for invariant violations. A deadline
	// that cannot be met is reported through Result.Infeasible.
	Schedule(w *graph.Workflow) (*Result, error)
}

// Infeasibility explains why no schedule was produced.
type Infeasibility struct {
	Reason string
}

func (i *Infeasibility) String() string { return i.Reason }

// Result is the outcome of one scheduling run. Exactly one of Solution and
// Infeasible is set.
type Result struct {
	Solution   *solution.Solution
	Infeasible *Infeasibility
	// Violations counts sub-deadline misses of list scheduling.
	Violations int
	// History traces the global best of iterative searches, one entry per
	// iteration.
	History []Progress
}

// Feasible reports whether a schedule was produced. It may still miss the
// deadline; compare its makespan.
func (r *Result) Feasible() bool { return r.Infeasible == nil }

// Progress is a snapshot of the global best after one iteration.
type Progress struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
	Makespan  float64 `json:"makespan"`
	Deadline  float64 `json:"deadline"` // deadline the comparison used
}

func snapshot(iteration int, s *solution.Solution, deadline float64) Progress {
	return Progress{
		Iteration: iteration,
		Cost:      s.Cost(),
		Makespan:  s.Makespan(),
		Deadline:  deadline,
	}
}

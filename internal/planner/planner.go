// Package planner turns a schedule into an exportable lease plan.
package planner

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/scheduler"
	"github.com/wuquanwang/workflow/internal/solution"
)

// Generate creates a LeasePlan from a scheduling result and the level
// analysis of the same workflow. The synthetic entry and exit tasks are left
// out unless config.IncludeSynth is set.
func Generate(w *graph.Workflow, res *scheduler.Result, levels *cpm.Result, config PlanConfig) (*LeasePlan, error) {
	if res == nil || levels == nil {
		return nil, errors.New("plan needs a scheduling result and a level analysis")
	}
	if config.Algorithm == "" {
		config.Algorithm = "unknown"
	}

	critical := make(map[*graph.Task]bool, len(levels.CriticalPath))
	plan := &LeasePlan{
		ID:        fmt.Sprintf("plan-%s", time.Now().Format("2006-01-02-150405")),
		CreatedAt: time.Now(),
		Workflow:  w.Name,
		Algorithm: config.Algorithm,
		Tasks:     make(map[string]*PlannedTask),
		Deps: TaskDeps{
			Predecessors: make(map[string][]string),
			Successors:   make(map[string][]string),
		},
		Config: config,
	}
	if w.HasDeadline() {
		d := w.Deadline
		plan.Deadline = &d
	}
	for _, t := range levels.CriticalPath {
		critical[t] = true
		if keep(w, t, config) {
			plan.CriticalPath = append(plan.CriticalPath, t.Name)
		}
	}

	// Waves holding only synthetic tasks are dropped and the rest renumbered.
	waveOf := make(map[*graph.Task]int)
	for _, wave := range levels.Waves {
		pw := Wave{Index: len(plan.Waves), Start: wave.TLevel}
		for _, t := range wave.Tasks {
			waveOf[t] = pw.Index
			if keep(w, t, config) {
				pw.Tasks = append(pw.Tasks, t.Name)
			}
		}
		if len(pw.Tasks) == 0 {
			continue
		}
		// Each wave depends on all previous waves
		if pw.Index > 0 {
			pw.DependsOn = []int{pw.Index - 1}
		}
		plan.Waves = append(plan.Waves, pw)
	}

	for _, t := range w.Tasks {
		if !keep(w, t, config) {
			continue
		}
		plan.Deps.Predecessors[t.Name] = neighbours(w, t.In, config, func(e *graph.Edge) *graph.Task { return e.Source })
		plan.Deps.Successors[t.Name] = neighbours(w, t.Out, config, func(e *graph.Edge) *graph.Task { return e.Destination })
	}

	plan.Summary = Summary{
		TotalTasks: len(plan.Deps.Predecessors),
		TotalWaves: len(plan.Waves),
		Violations: res.Violations,
	}
	if !res.Feasible() {
		plan.Infeasible = res.Infeasible.Reason
		return plan, nil
	}

	sol := res.Solution
	cat := sol.Catalog()
	for _, l := range sol.Leases() {
		pl := PlannedLease{
			ID:       l.ID,
			Name:     l.String(),
			Tier:     int(l.Tier),
			Speed:    cat.Speed(l.Tier),
			UnitCost: cat.UnitCost(l.Tier),
			Start:    sol.LeaseStart(l.ID),
			End:      sol.LeaseEnd(l.ID),
			Cost:     sol.LeaseCost(l.ID),
		}
		for _, a := range sol.Allocations(l.ID) {
			if !keep(w, a.Task, config) {
				continue
			}
			pt := plannedTask(a, critical[a.Task], waveOf[a.Task])
			pl.Tasks = append(pl.Tasks, pt)
			plan.Tasks[a.Task.Name] = &pt
		}
		plan.Leases = append(plan.Leases, pl)
	}

	plan.Summary.TotalLeases = len(plan.Leases)
	plan.Summary.Cost = sol.Cost()
	plan.Summary.Makespan = sol.Makespan()
	plan.Summary.MeetsDeadline = sol.Makespan() <= w.Deadline+solution.Epsilon
	return plan, nil
}

// WriteJSON writes the plan as indented JSON.
func (p *LeasePlan) WriteJSON(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return errors.Wrapf(err, "encode plan %s", p.ID)
	}
	return nil
}

func plannedTask(a solution.Allocation, critical bool, wave int) PlannedTask {
	return PlannedTask{
		TaskID:     a.Task.Name,
		LeaseID:    a.LeaseID,
		Start:      a.Start,
		Finish:     a.Finish,
		IsCritical: critical,
		Slack:      cpm.Slack(a.Task),
		WaveIndex:  wave,
	}
}

func keep(w *graph.Workflow, t *graph.Task, config PlanConfig) bool {
	return config.IncludeSynth || (!w.IsEntry(t) && !w.IsExit(t))
}

func neighbours(w *graph.Workflow, edges []*graph.Edge, config PlanConfig, end func(*graph.Edge) *graph.Task) []string {
	out := []string{}
	for _, e := range edges {
		if t := end(e); keep(w, t, config) {
			out = append(out, t.Name)
		}
	}
	return out
}

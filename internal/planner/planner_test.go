package planner

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/graph/graphtest"
	"github.com/wuquanwang/workflow/internal/scheduler"
)

func scheduleDiamond(t *testing.T, deadline float64) (*graph.Workflow, *scheduler.Result, *cpm.Result) {
	t.Helper()
	cat := cloud.DefaultCatalog()
	w := graphtest.Diamond(10, 5)
	levels := cpm.Analyze(w, cat)
	w.SetDeadline(deadline)

	res, err := scheduler.NewICPCP(cat).Schedule(w)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return w, res, levels
}

func TestGenerate_BasicPlan(t *testing.T) {
	w, res, levels := scheduleDiamond(t, 2)

	plan, err := Generate(w, res, levels, PlanConfig{Algorithm: "icpcp", Seed: 1})
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}

	if plan.Summary.TotalTasks != 2 {
		t.Errorf("expected 2 total tasks, got %d", plan.Summary.TotalTasks)
	}
	if plan.Summary.TotalLeases != 2 {
		t.Errorf("expected 2 leases, got %d", plan.Summary.TotalLeases)
	}
	if math.Abs(plan.Summary.Cost-1.375) > 1e-9 {
		t.Errorf("expected cost 1.375, got %v", plan.Summary.Cost)
	}
	if plan.Summary.Makespan != 2 || !plan.Summary.MeetsDeadline {
		t.Errorf("expected makespan 2 within deadline, got %v", plan.Summary.Makespan)
	}
	if plan.Deadline == nil || *plan.Deadline != 2 {
		t.Errorf("expected deadline 2, got %v", plan.Deadline)
	}

	if len(plan.CriticalPath) != 1 || plan.CriticalPath[0] != "a" {
		t.Errorf("expected critical path [a], got %v", plan.CriticalPath)
	}

	// Exit sits alone in the last wave and is dropped
	if plan.Summary.TotalWaves != 1 || len(plan.Waves[0].Tasks) != 2 {
		t.Fatalf("expected one wave of 2 tasks, got %+v", plan.Waves)
	}
	if len(plan.Waves[0].DependsOn) != 0 {
		t.Errorf("wave 0 should have no dependencies")
	}

	a, ok := plan.Tasks["a"]
	if !ok {
		t.Fatal("expected task a in Tasks map")
	}
	if !a.IsCritical || a.Slack != 0 {
		t.Errorf("expected a critical with no slack, got %+v", a)
	}
	b := plan.Tasks["b"]
	if b.IsCritical || b.Slack != 1 {
		t.Errorf("expected b off the critical path with slack 1, got %+v", b)
	}
	if a.LeaseID == b.LeaseID {
		t.Errorf("expected a and b on different leases")
	}

	for _, l := range plan.Leases {
		if l.End < l.Start {
			t.Errorf("lease %s ends before it starts", l.Name)
		}
		for i := 1; i < len(l.Tasks); i++ {
			if l.Tasks[i].Start < l.Tasks[i-1].Finish {
				t.Errorf("lease %s: tasks out of order", l.Name)
			}
		}
	}

	// Synthetic tasks are not dependencies
	if len(plan.Deps.Predecessors["a"]) != 0 || len(plan.Deps.Successors["b"]) != 0 {
		t.Errorf("expected no visible neighbours, got %v / %v", plan.Deps.Predecessors["a"], plan.Deps.Successors["b"])
	}
}

func TestGenerate_IncludeSynthetic(t *testing.T) {
	w, res, levels := scheduleDiamond(t, 2)

	plan, err := Generate(w, res, levels, PlanConfig{IncludeSynth: true})
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if plan.Algorithm != "unknown" {
		t.Errorf("expected default algorithm name, got %s", plan.Algorithm)
	}
	if len(plan.Tasks) != 4 {
		t.Errorf("expected 4 tasks, got %d", len(plan.Tasks))
	}
	if len(plan.CriticalPath) != 3 {
		t.Errorf("expected 3 tasks on critical path, got %v", plan.CriticalPath)
	}
	if len(plan.Waves) != 2 || len(plan.Waves[1].DependsOn) != 1 || plan.Waves[1].DependsOn[0] != 0 {
		t.Errorf("expected wave 1 to depend on wave 0, got %+v", plan.Waves)
	}
	if got := plan.Deps.Predecessors["exit"]; len(got) != 2 {
		t.Errorf("expected exit predecessors [a b], got %v", got)
	}
}

func TestGenerate_Infeasible(t *testing.T) {
	w, res, levels := scheduleDiamond(t, 0)
	if res.Feasible() {
		t.Fatal("expected zero deadline to be infeasible")
	}

	plan, err := Generate(w, res, levels, PlanConfig{Algorithm: "icpcp"})
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if plan.Infeasible == "" {
		t.Error("expected infeasibility reason")
	}
	if len(plan.Leases) != 0 || len(plan.Tasks) != 0 {
		t.Errorf("expected no leases, got %d", len(plan.Leases))
	}
	if plan.Summary.TotalTasks != 2 {
		t.Errorf("expected 2 total tasks, got %d", plan.Summary.TotalTasks)
	}
}

func TestGenerate_RequiresInputs(t *testing.T) {
	w, res, _ := scheduleDiamond(t, 2)
	if _, err := Generate(w, res, nil, PlanConfig{}); err == nil {
		t.Error("expected error without levels")
	}
}

func TestWriteJSON_UnboundedDeadline(t *testing.T) {
	cat := cloud.DefaultCatalog()
	w := graphtest.Chain(1024, 3, 4)
	levels := cpm.Analyze(w, cat)
	res := &scheduler.Result{Solution: bench.Cheap(w, cat)}

	plan, err := Generate(w, res, levels, PlanConfig{Algorithm: "cheap"})
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}

	var buf bytes.Buffer
	if err := plan.WriteJSON(&buf); err != nil {
		t.Fatalf("write json: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `"deadline":`) {
		t.Errorf("expected unbounded deadline to be omitted:\n%s", out)
	}
	if !strings.Contains(out, `"meets_deadline": true`) {
		t.Errorf("expected plan to meet an unbounded deadline:\n%s", out)
	}
	if !strings.Contains(out, `"task_id": "t1"`) {
		t.Errorf("expected t1 in output:\n%s", out)
	}
}

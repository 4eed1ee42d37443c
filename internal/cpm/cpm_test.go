package cpm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/graph/graphtest"
)

const mib = 1024 * 1024

func byName(t *testing.T, w *graph.Workflow, name string) *graph.Task {
	t.Helper()
	for _, task := range w.Tasks {
		if task.Name == name {
			return task
		}
	}
	t.Fatalf("task %s not found", name)
	return nil
}

func assertNear(t *testing.T, what string, expected, got float64) {
	t.Helper()
	if math.Abs(expected-got) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", what, expected, got)
	}
}

func TestAnalyze_Diamond(t *testing.T) {
	// entry -> a(10), b(5) -> exit; fastest speed 5
	w := graphtest.Diamond(10, 5)
	result := Analyze(w, cloud.DefaultCatalog())

	a, b := byName(t, w, "a"), byName(t, w, "b")
	assertNear(t, "length", 2, result.Length)
	assertNear(t, "a bLevel", 2, a.BLevel)
	assertNear(t, "b bLevel", 1, b.BLevel)
	assertNear(t, "entry bLevel", 2, w.Entry().BLevel)
	assertNear(t, "a ALAP", 0, a.ALAP)
	assertNear(t, "b ALAP", 1, b.ALAP)
	assertNear(t, "exit tLevel", 2, w.Exit().TLevel)
	assertNear(t, "b slack", 1, Slack(b))

	if len(result.CriticalPath) != 3 {
		t.Fatalf("expected critical path [entry a exit], got %v", result.CriticalPath)
	}
	if result.CriticalPath[1] != a {
		t.Errorf("expected a on critical path, got %v", result.CriticalPath)
	}

	// [entry a b] [exit]
	if len(result.Waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(result.Waves))
	}
	if len(result.Waves[0].Tasks) != 3 {
		t.Errorf("expected 3 tasks in wave 0, got %v", result.Waves[0].Tasks)
	}
	if last := result.Waves[0].Tasks[2]; last != b {
		t.Errorf("expected non-critical b last in wave 0, got %v", last)
	}
}

func TestAnalyze_ChainWithTransfers(t *testing.T) {
	// t0(5) -20MiB-> t1(10): one second of transfer
	w := graphtest.Chain(20*mib, 5, 10)
	result := Analyze(w, cloud.DefaultCatalog())

	t0, t1 := byName(t, w, "t0"), byName(t, w, "t1")
	assertNear(t, "t1 bLevel", 2, t1.BLevel)
	assertNear(t, "t0 bLevel", 4, t0.BLevel)
	assertNear(t, "t0 sLevel", 3, t0.SLevel)
	assertNear(t, "t1 tLevel", 2, t1.TLevel)
	assertNear(t, "t1 ALAP", 2, t1.ALAP)
	assertNear(t, "t0 ALAP", 0, t0.ALAP)
	assertNear(t, "length", 4, result.Length)

	if len(result.CriticalPath) != w.Len() {
		t.Errorf("expected every task of a chain on the critical path, got %v", result.CriticalPath)
	}
	if len(result.Waves) != 3 {
		t.Errorf("expected 3 waves, got %d", len(result.Waves))
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	w := graphtest.Random(rand.New(rand.NewSource(7)), 30)
	cat := cloud.DefaultCatalog()

	Analyze(w, cat)
	first := make([][4]float64, w.Len())
	for _, task := range w.Tasks {
		first[task.ID] = [4]float64{task.BLevel, task.SLevel, task.ALAP, task.TLevel}
	}
	Analyze(w, cat)
	for _, task := range w.Tasks {
		got := [4]float64{task.BLevel, task.SLevel, task.ALAP, task.TLevel}
		if got != first[task.ID] {
			t.Errorf("task %s: levels changed between passes: %v -> %v", task.Name, first[task.ID], got)
		}
	}
}

func TestAnalyze_LevelOrdering(t *testing.T) {
	w := graphtest.Random(rand.New(rand.NewSource(3)), 40)
	Analyze(w, cloud.DefaultCatalog())

	for _, task := range w.Tasks {
		if task.SLevel > task.BLevel+1e-9 {
			t.Errorf("task %s: sLevel %v exceeds bLevel %v", task.Name, task.SLevel, task.BLevel)
		}
		if Slack(task) < -1e-9 {
			t.Errorf("task %s: negative slack %v", task.Name, Slack(task))
		}
		for _, e := range task.Out {
			if e.Destination.BLevel > task.BLevel {
				t.Errorf("edge %s -> %s: child bLevel exceeds parent", task.Name, e.Destination.Name)
			}
		}
	}
}

func TestPURank_DeterministicMatchesBLevel(t *testing.T) {
	w := graphtest.ForkJoin(4, 10, 30*mib)
	cat := cloud.DefaultCatalog()
	Analyze(w, cat)

	for _, task := range w.Tasks {
		assertNear(t, task.Name+" pURank", task.BLevel, task.PURank)
	}
}

func TestPURank_BoundedAndReproducible(t *testing.T) {
	w := graphtest.Random(rand.New(rand.NewSource(11)), 50)
	cat := cloud.DefaultCatalog()
	Analyze(w, cat)

	first := PURank(w, cat, 1.5, rand.New(rand.NewSource(42)))
	second := PURank(w, cat, 1.5, rand.New(rand.NewSource(42)))
	for _, task := range w.Tasks {
		r := first[task.ID]
		if r != second[task.ID] {
			t.Errorf("task %s: expected same rank for same seed, got %v and %v", task.Name, r, second[task.ID])
		}
		if r < task.SLevel-1e-9 || r > task.BLevel+1e-9 {
			t.Errorf("task %s: rank %v outside [sLevel %v, bLevel %v]", task.Name, r, task.SLevel, task.BLevel)
		}
	}
}

func TestPURank_DoesNotTouchTasks(t *testing.T) {
	w := graphtest.Diamond(10, 5)
	cat := cloud.DefaultCatalog()
	Analyze(w, cat)
	before := w.Entry().PURank

	PURank(w, cat, 1.5, rand.New(rand.NewSource(1)))
	if w.Entry().PURank != before {
		t.Errorf("expected stored rank %v to stay, got %v", before, w.Entry().PURank)
	}
}

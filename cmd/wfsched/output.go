package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/uber-go/tally"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/solution"
)

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

type reference struct {
	Cost     float64 `json:"cost"`
	Makespan float64 `json:"makespan"`
	Leases   int     `json:"leases"`
}

func newReference(s *solution.Solution) reference {
	return reference{Cost: s.Cost(), Makespan: s.Makespan(), Leases: len(s.Leases())}
}

func benchJSON(name string, b *bench.Benchmarks, factors []float64) interface{} {
	type deadline struct {
		Factor   float64 `json:"factor"`
		Deadline float64 `json:"deadline"`
	}
	out := struct {
		Workflow  string     `json:"workflow"`
		Fast      reference  `json:"fast"`
		Cheap     reference  `json:"cheap"`
		Deadlines []deadline `json:"deadlines"`
	}{
		Workflow: name,
		Fast:     newReference(b.Fast),
		Cheap:    newReference(b.Cheap),
	}
	for _, f := range factors {
		out.Deadlines = append(out.Deadlines, deadline{Factor: f, Deadline: b.Deadline(f)})
	}
	return out
}

func levelsJSON(w *graph.Workflow, levels *cpm.Result) interface{} {
	type task struct {
		Name   string  `json:"name"`
		Size   float64 `json:"size"`
		BLevel float64 `json:"b_level"`
		SLevel float64 `json:"s_level"`
		TLevel float64 `json:"t_level"`
		ALAP   float64 `json:"alap"`
		Slack  float64 `json:"slack"`
		Wave   int     `json:"wave"`
	}
	wave := make(map[*graph.Task]int)
	for _, wv := range levels.Waves {
		for _, t := range wv.Tasks {
			wave[t] = wv.Index
		}
	}
	out := struct {
		Workflow     string   `json:"workflow"`
		Length       float64  `json:"critical_path_length"`
		MaxParallel  int      `json:"max_parallel"`
		CriticalPath []string `json:"critical_path"`
		Tasks        []task   `json:"tasks"`
	}{
		Workflow:    w.Name,
		Length:      levels.Length,
		MaxParallel: w.MaxParallel,
	}
	for _, t := range levels.CriticalPath {
		out.CriticalPath = append(out.CriticalPath, t.Name)
	}
	for _, t := range w.Tasks {
		out.Tasks = append(out.Tasks, task{
			Name:   t.Name,
			Size:   t.Size,
			BLevel: t.BLevel,
			SLevel: t.SLevel,
			TLevel: t.TLevel,
			ALAP:   t.ALAP,
			Slack:  cpm.Slack(t),
			Wave:   wave[t],
		})
	}
	return out
}

func printDOT(out io.Writer, w *graph.Workflow, levels *cpm.Result) {
	critical := make(map[*graph.Task]bool)
	for _, t := range levels.CriticalPath {
		critical[t] = true
	}

	fmt.Fprintf(out, "digraph %q {\n", w.Name)
	fmt.Fprintln(out, "  rankdir=LR;")
	fmt.Fprintln(out, "  node [shape=box, style=rounded];")
	fmt.Fprintln(out)

	for _, t := range w.Tasks {
		attrs := fmt.Sprintf(`label="%s\nsize %.2f"`, t.Name, t.Size)
		if w.IsEntry(t) || w.IsExit(t) {
			attrs = fmt.Sprintf(`label=%q, shape=circle`, t.Name)
		}
		if critical[t] {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(out, "  %q [%s];\n", t.Name, attrs)
	}

	fmt.Fprintln(out)

	for _, t := range w.Tasks {
		for _, e := range t.Out {
			var attrs []string
			if e.Bytes > 0 {
				attrs = append(attrs, fmt.Sprintf(`label="%d B"`, e.Bytes))
			}
			if critical[e.Source] && critical[e.Destination] {
				attrs = append(attrs, "color=red", "penwidth=2")
			}
			style := ""
			if len(attrs) > 0 {
				style = " [" + strings.Join(attrs, ", ") + "]"
			}
			fmt.Fprintf(out, "  %q -> %q%s;\n", e.Source.Name, e.Destination.Name, style)
		}
	}

	fmt.Fprintln(out, "}")
}

// printMetrics writes every counter, gauge and timer recorded in s, sorted
// by name.
func printMetrics(out io.Writer, s tally.TestScope) {
	if s == nil {
		return
	}
	snap := s.Snapshot()
	var lines []string
	for _, c := range snap.Counters() {
		lines = append(lines, fmt.Sprintf("%s %v = %d", c.Name(), c.Tags(), c.Value()))
	}
	for _, g := range snap.Gauges() {
		lines = append(lines, fmt.Sprintf("%s %v = %.3f", g.Name(), g.Tags(), g.Value()))
	}
	for _, t := range snap.Timers() {
		lines = append(lines, fmt.Sprintf("%s %v = %v", t.Name(), t.Tags(), t.Values()))
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

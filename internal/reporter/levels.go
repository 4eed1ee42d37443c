package reporter

import (
	"fmt"
	"io"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/ui"
)

// PrintLevels writes the level analysis wave by wave.
func PrintLevels(w io.Writer, wf *graph.Workflow, levels *cpm.Result) {
	fmt.Fprintf(w, "%s %s  %s\n\n",
		ui.BoldCyan(wf.Name),
		ui.Dim(fmt.Sprintf("%d tasks, width %d", wf.Len()-2, wf.MaxParallel)),
		ui.Bold(fmt.Sprintf("critical path %.3f", levels.Length)))

	fmt.Fprintf(w, "    %-30s %10s %10s %10s %10s %10s\n", "", "bLevel", "sLevel", "tLevel", "alap", "slack")
	for _, wave := range levels.Waves {
		header := ui.BoldWhite(fmt.Sprintf("WAVE %d", wave.Index+1))
		if wave.IsCritical {
			header += " " + ui.BoldYellow("⚡")
		}
		fmt.Fprintf(w, "  🌊 %s %s\n", header, ui.Dim(fmt.Sprintf("(t=%.3f)", wave.TLevel)))
		for _, t := range wave.Tasks {
			fmt.Fprintf(w, "    %-30s %10.3f %10.3f %10.3f %10.3f %10.3f\n",
				t.Name, t.BLevel, t.SLevel, t.TLevel, t.ALAP, cpm.Slack(t))
		}
	}
}

// PrintBenchmarks writes the fast and cheap reference schedules.
func PrintBenchmarks(w io.Writer, wf *graph.Workflow, b *bench.Benchmarks) {
	fmt.Fprintf(w, "%s\n", ui.BoldCyan(wf.Name))
	for _, ref := range []struct {
		name string
		cost float64
		span float64
		n    int
	}{
		{"fast", b.Fast.Cost(), b.Fast.Makespan(), len(b.Fast.Leases())},
		{"cheap", b.Cheap.Cost(), b.Cheap.Makespan(), len(b.Cheap.Leases())},
	} {
		fmt.Fprintf(w, "  %-6s cost %10.3f  makespan %12.3f  leases %d\n",
			ui.Bold(ref.name), ref.cost, ref.span, ref.n)
	}
}

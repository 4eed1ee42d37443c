package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/wuquanwang/workflow/internal/evaluate"
	"github.com/wuquanwang/workflow/internal/ui"
)

// PrintEvaluation writes the success ratio and normalised cost tables of a
// sweep, one row per deadline factor, followed by reference values and mean
// runtimes.
func PrintEvaluation(w io.Writer, r *evaluate.Report) {
	fmt.Fprintf(w, "%s %s\n", ui.BoldCyan("Evaluation"), ui.Dim(r.ID))
	fmt.Fprintf(w, "%s\n", ui.Cyan("══════════════════════════"))

	printTable(w, r, "success ratio", func(s evaluate.MethodStats) string {
		return ui.Ratio(s.SuccessRatio)
	})
	printTable(w, r, "normalized cost", func(s evaluate.MethodStats) string {
		if s.Solved == 0 {
			return ui.Dim("    -")
		}
		return fmt.Sprintf("%.3f", s.NormalizedCost)
	})

	ref := r.Reference
	fmt.Fprintf(w, "%s\n", ui.BoldWhite("reference values"))
	fmt.Fprintf(w, "  fast   cost %.3f  makespan %.3f\n", ref.FastCost, ref.FastMakespan)
	fmt.Fprintf(w, "  cheap  cost %.3f  makespan %.3f\n\n", ref.CheapCost, ref.CheapMakespan)

	fmt.Fprintf(w, "%s\n", ui.BoldWhite("mean runtime"))
	for _, t := range r.Timings {
		fmt.Fprintf(w, "  %-8s %s %s\n", t.Method, t.Mean, ui.Dim(fmt.Sprintf("(%d runs)", t.Samples)))
	}
}

func printTable(w io.Writer, r *evaluate.Report, title string, cell func(evaluate.MethodStats) string) {
	fmt.Fprintf(w, "%s\n", ui.BoldWhite(title))
	fmt.Fprintf(w, "  %-8s", "factor")
	for _, m := range r.Methods {
		fmt.Fprintf(w, " %8s", m)
	}
	fmt.Fprintln(w)
	for _, row := range r.Rows {
		fmt.Fprintf(w, "  %-8.3f", row.Factor)
		for _, s := range row.Methods {
			fmt.Fprintf(w, " %8s", cell(s))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// EvaluationJSON returns the report as indented JSON.
func EvaluationJSON(r *evaluate.Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Package reporter renders plans, level analyses and evaluation reports for
// the terminal and as JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wuquanwang/workflow/internal/planner"
	"github.com/wuquanwang/workflow/internal/scheduler"
	"github.com/wuquanwang/workflow/internal/solution"
	"github.com/wuquanwang/workflow/internal/ui"
)

// Reporter provides display for one lease plan.
type Reporter struct {
	Plan    *planner.LeasePlan
	History []scheduler.Progress
}

// New creates a new Reporter.
func New(plan *planner.LeasePlan, history []scheduler.Progress) *Reporter {
	return &Reporter{Plan: plan, History: history}
}

func (r *Reporter) outcome() string {
	p := r.Plan
	if p.Deadline == nil {
		return ui.Outcome(p.Infeasible == "", 0, 0, 0)
	}
	return ui.Outcome(p.Infeasible == "", p.Summary.Makespan, *p.Deadline, solution.Epsilon)
}

// PrintPlan writes a terminal-friendly lease table.
func (r *Reporter) PrintPlan(w io.Writer) {
	p := r.Plan
	deadline := "none"
	if p.Deadline != nil {
		deadline = fmt.Sprintf("%.3f", *p.Deadline)
	}

	fmt.Fprintf(w, "%s %s %s %s %s\n",
		ui.OutcomeIcon(r.outcome()),
		ui.BoldCyan(p.Workflow),
		ui.Dim("scheduled by"),
		ui.Bold(p.Algorithm),
		ui.Dim(fmt.Sprintf("(deadline %s)", deadline)))

	if p.Infeasible != "" {
		fmt.Fprintf(w, "  %s %s\n", ui.BoldRed("infeasible:"), p.Infeasible)
		return
	}
	fmt.Fprintf(w, "  cost %s  makespan %s  leases %d  tasks %d",
		ui.Bold(fmt.Sprintf("%.3f", p.Summary.Cost)),
		ui.Bold(fmt.Sprintf("%.3f", p.Summary.Makespan)),
		p.Summary.TotalLeases, p.Summary.TotalTasks)
	if p.Summary.Violations > 0 {
		fmt.Fprintf(w, " %s", ui.Yellow(fmt.Sprintf("(%d sub-deadline violations)", p.Summary.Violations)))
	}
	fmt.Fprintf(w, "\n\n")

	for _, l := range p.Leases {
		fmt.Fprintf(w, "  %s %s speed %.1f  %s  %s\n",
			ui.LeasePrefix(l.ID, l.Name),
			ui.BoldWhite(fmt.Sprintf("tier %d", l.Tier)),
			l.Speed,
			ui.Dim(fmt.Sprintf("[%.3f, %.3f]", l.Start, l.End)),
			ui.Green(fmt.Sprintf("$%.3f", l.Cost)))
		for _, t := range l.Tasks {
			printTask(w, t)
		}
		fmt.Fprintln(w)
	}

	if len(p.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:  %s\n",
			ui.BoldYellow("⚡ "+strings.Join(p.CriticalPath, " → ")))
	}
}

func printTask(w io.Writer, t planner.PlannedTask) {
	critical := " "
	if t.IsCritical {
		critical = ui.BoldYellow("⚡")
	}
	name := t.TaskID
	if len(name) > 30 {
		name = name[:27] + "..."
	}
	fmt.Fprintf(w, "    %s %-30s %10.3f → %-10.3f %s\n",
		critical, ui.BoldMagenta(name), t.Start, t.Finish,
		ui.Dim(fmt.Sprintf("slack %.3f", t.Slack)))
}

// PrintHistory writes the global-best trace of an iterative search, one
// line per improvement.
func (r *Reporter) PrintHistory(w io.Writer) {
	if len(r.History) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", ui.BoldWhite("Search progress"))
	prev := r.History[0]
	fmt.Fprintf(w, "  it %4d  cost %.3f  makespan %.3f\n", prev.Iteration, prev.Cost, prev.Makespan)
	for _, h := range r.History[1:] {
		if h.Cost == prev.Cost && h.Makespan == prev.Makespan {
			continue
		}
		fmt.Fprintf(w, "  it %4d  cost %.3f  makespan %.3f\n", h.Iteration, h.Cost, h.Makespan)
		prev = h
	}
}

// JSON returns the plan together with the search trace.
func (r *Reporter) JSON() ([]byte, error) {
	type progress struct {
		Iteration int      `json:"iteration"`
		Cost      float64  `json:"cost"`
		Makespan  float64  `json:"makespan"`
		Deadline  *float64 `json:"deadline,omitempty"`
	}
	type output struct {
		Plan    *planner.LeasePlan `json:"plan"`
		Outcome string             `json:"outcome"`
		History []progress         `json:"history,omitempty"`
	}

	o := output{Plan: r.Plan, Outcome: r.outcome()}
	for _, h := range r.History {
		p := progress{Iteration: h.Iteration, Cost: h.Cost, Makespan: h.Makespan}
		// JSON has no infinity
		if !math.IsInf(h.Deadline, 1) {
			d := h.Deadline
			p.Deadline = &d
		}
		o.History = append(o.History, p)
	}
	return json.MarshalIndent(o, "", "  ")
}

// Summary returns a one-line summary of the plan.
func (r *Reporter) Summary() string {
	p := r.Plan
	if p.Infeasible != "" {
		return fmt.Sprintf("%s %s: %s", ui.OutcomeIcon(ui.OutcomeInfeasible), p.Algorithm, p.Infeasible)
	}
	return fmt.Sprintf("%s %s: cost %.3f, makespan %.3f on %d leases",
		ui.OutcomeIcon(r.outcome()), p.Algorithm, p.Summary.Cost, p.Summary.Makespan, p.Summary.TotalLeases)
}

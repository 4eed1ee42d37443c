// Package ui holds the terminal styles shared by the reporters.
package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// SetColor forces colored output on or off, overriding terminal detection.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// leaseColors is a palette of distinct bold colors for differentiating leases.
var leaseColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// LeasePrefix returns a colored [name] prefix string. Each lease id gets a
// distinct color from the palette.
func LeasePrefix(id int, name string) string {
	c := leaseColors[id%len(leaseColors)]
	return Dim("[") + c(name) + Dim("]")
}

// Outcome values understood by OutcomeIcon and Outcome.
const (
	OutcomeMet        = "met"
	OutcomeMissed     = "missed"
	OutcomeInfeasible = "infeasible"
)

// OutcomeIcon returns a colored icon for a scheduling outcome.
func OutcomeIcon(outcome string) string {
	switch outcome {
	case OutcomeMet:
		return Green("✓")
	case OutcomeMissed:
		return Yellow("⊘")
	case OutcomeInfeasible:
		return Red("✗")
	default:
		return Dim("◌")
	}
}

// Outcome classifies a makespan against its deadline.
func Outcome(feasible bool, makespan, deadline, tolerance float64) string {
	switch {
	case !feasible:
		return OutcomeInfeasible
	case makespan <= deadline+tolerance:
		return OutcomeMet
	default:
		return OutcomeMissed
	}
}

// Ratio colors a value in [0, 1]: green when full, red when zero.
func Ratio(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	switch {
	case v >= 1:
		return Green(s)
	case v <= 0:
		return Red(s)
	default:
		return Yellow(s)
	}
}

package cpm

import "github.com/wuquanwang/workflow/internal/graph"

// Result holds the level analysis of a workflow at the fastest tier.
type Result struct {
	Length       float64       // critical-path length, the entry's bLevel
	CriticalPath []*graph.Task // in topological order
	Waves        []Wave        // groups of tasks sharing a tLevel
}

// Wave is a group of tasks that could start together given unlimited
// fastest-tier machines.
type Wave struct {
	Index      int
	TLevel     float64
	Tasks      []*graph.Task
	IsCritical bool // true if wave contains critical path tasks
}

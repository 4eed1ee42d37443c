package graph

import "math"

// Names of the synthetic tasks the builder adds around every workflow.
const (
	EntryName = "entry"
	ExitName  = "exit"
)

// Task is a single compute job in a workflow.
type Task struct {
	ID   int
	Name string
	Size float64 // compute units at speed 1

	// In and Out are ordered by the topological position of the task at the
	// other end of each edge.
	In  []*Edge
	Out []*Edge

	// Derived metrics, recomputed in full by the cpm package.
	BLevel float64
	SLevel float64
	TLevel float64
	ALAP   float64
	PURank float64
}

func (t *Task) String() string {
	return t.Name
}

// Edge is a data dependency. Bytes only cost time when the two ends run on
// different leases.
type Edge struct {
	Source      *Task
	Destination *Task
	Bytes       int64
}

// Workflow is a DAG in topological order: entry first, exit last.
type Workflow struct {
	Name        string
	Tasks       []*Task
	Deadline    float64
	MaxParallel int // widest frontier seen while ordering the graph

	byID     []*Task
	position []int // task id -> index in Tasks
}

// Len returns the number of tasks including entry and exit.
func (w *Workflow) Len() int { return len(w.Tasks) }

// Entry returns the synthetic source task.
func (w *Workflow) Entry() *Task { return w.Tasks[0] }

// Exit returns the synthetic sink task.
func (w *Workflow) Exit() *Task { return w.Tasks[len(w.Tasks)-1] }

// Task returns the task with the given id, or nil.
func (w *Workflow) Task(id int) *Task {
	if id < 0 || id >= len(w.byID) {
		return nil
	}
	return w.byID[id]
}

// Index returns the topological position of t.
func (w *Workflow) Index(t *Task) int {
	return w.position[t.ID]
}

// SetDeadline sets the deadline schedulers must meet. Use math.Inf(1) for none.
func (w *Workflow) SetDeadline(d float64) {
	w.Deadline = d
}

// HasDeadline reports whether a finite deadline is set.
func (w *Workflow) HasDeadline() bool {
	return !math.IsInf(w.Deadline, 1)
}

// IsEntry reports whether t is the synthetic entry task.
func (w *Workflow) IsEntry(t *Task) bool { return t == w.Tasks[0] }

// IsExit reports whether t is the synthetic exit task.
func (w *Workflow) IsExit(t *Task) bool { return t == w.Tasks[len(w.Tasks)-1] }

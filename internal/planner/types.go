package planner

import "time"

// TaskDeps holds per-task predecessor and successor lists for dependency tracking.
type TaskDeps struct {
	Predecessors map[string][]string `json:"predecessors"`
	Successors   map[string][]string `json:"successors"`
}

// LeasePlan is the complete provisioning plan for one schedule.
type LeasePlan struct {
	ID           string                  `json:"id"`
	CreatedAt    time.Time               `json:"created_at"`
	Workflow     string                  `json:"workflow"`
	Algorithm    string                  `json:"algorithm"`
	Deadline     *float64                `json:"deadline,omitempty"` // nil when unbounded
	Infeasible   string                  `json:"infeasible,omitempty"`
	Summary      Summary                 `json:"summary"`
	CriticalPath []string                `json:"critical_path"`
	Waves        []Wave                  `json:"waves"`
	Leases       []PlannedLease          `json:"leases"`
	Tasks        map[string]*PlannedTask `json:"tasks"`
	Deps         TaskDeps                `json:"deps"`
	Config       PlanConfig              `json:"config"`
}

// Summary holds the headline figures of a plan.
type Summary struct {
	TotalTasks    int     `json:"total_tasks"`
	TotalLeases   int     `json:"total_leases"`
	TotalWaves    int     `json:"total_waves"`
	Cost          float64 `json:"cost"`
	Makespan      float64 `json:"makespan"`
	MeetsDeadline bool    `json:"meets_deadline"`
	Violations    int     `json:"violations"`
}

// Wave is a group of tasks with the same earliest start, the most
// parallelism the workflow allows at that point.
type Wave struct {
	Index     int      `json:"index"`
	Start     float64  `json:"start"`
	Tasks     []string `json:"tasks"`
	DependsOn []int    `json:"depends_on"`
}

// PlannedLease is one machine to rent: its tier, the span it is billed for
// and the tasks it runs in order.
type PlannedLease struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Tier     int           `json:"tier"`
	Speed    float64       `json:"speed"`
	UnitCost float64       `json:"unit_cost"`
	Start    float64       `json:"start"`
	End      float64       `json:"end"`
	Cost     float64       `json:"cost"`
	Tasks    []PlannedTask `json:"tasks"`
}

// PlannedTask is a single task placed on a lease.
type PlannedTask struct {
	TaskID     string  `json:"task_id"`
	LeaseID    int     `json:"lease_id"`
	Start      float64 `json:"start"`
	Finish     float64 `json:"finish"`
	IsCritical bool    `json:"is_critical"`
	Slack      float64 `json:"slack"`
	WaveIndex  int     `json:"wave_index"`
}

// PlanConfig records how the plan was produced.
type PlanConfig struct {
	Algorithm      string  `json:"algorithm"`
	Seed           int64   `json:"seed"`
	DeadlineFactor float64 `json:"deadline_factor,omitempty"`
	IncludeSynth   bool    `json:"include_synthetic"`
}

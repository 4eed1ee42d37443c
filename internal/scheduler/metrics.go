package scheduler

import (
	"github.com/uber-go/tally"

	"github.com/wuquanwang/workflow/internal/graph"
)

// Metrics contains the metrics recorded for one scheduler.
type Metrics struct {
	// Runs counts finished Schedule calls.
	Runs tally.Counter
	// Infeasible counts runs that produced no schedule.
	Infeasible tally.Counter
	// Failures counts runs aborted by an invariant violation.
	Failures tally.Counter
	// DeadlineMisses counts schedules whose makespan exceeds the deadline.
	DeadlineMisses tally.Counter
	// Violations counts sub-deadline misses of list scheduling.
	Violations tally.Counter

	Cost     tally.Gauge
	Makespan tally.Gauge
	Leases   tally.Gauge
	Runtime  tally.Timer
}

// NewMetrics returns metrics rooted below scope and tagged with the
// scheduler name.
func NewMetrics(scope tally.Scope, name string) *Metrics {
	s := scope.SubScope("scheduler").Tagged(map[string]string{"algorithm": name})
	runScope := s.SubScope("run")
	return &Metrics{
		Runs:           runScope.Counter("total"),
		Infeasible:     runScope.Counter("infeasible"),
		Failures:       runScope.Counter("fail"),
		DeadlineMisses: runScope.Counter("deadline_miss"),
		Violations:     s.Counter("sub_deadline_violations"),
		Cost:           s.Gauge("cost"),
		Makespan:       s.Gauge("makespan"),
		Leases:         s.Gauge("leases"),
		Runtime:        runScope.Timer("duration"),
	}
}

type instrumented struct {
	Scheduler
	metrics *Metrics
}

// Instrument wraps s so every run is recorded below scope.
func Instrument(s Scheduler, scope tally.Scope) Scheduler {
	return &instrumented{Scheduler: s, metrics: NewMetrics(scope, s.Name())}
}

func (i *instrumented) Schedule(w *graph.Workflow) (*Result, error) {
	sw := i.metrics.Runtime.Start()
	res, err := i.Scheduler.Schedule(w)
	sw.Stop()

	i.metrics.Runs.Inc(1)
	switch {
	case err != nil:
		i.metrics.Failures.Inc(1)
	case !res.Feasible():
		i.metrics.Infeasible.Inc(1)
	default:
		i.metrics.Violations.Inc(int64(res.Violations))
		i.metrics.Cost.Update(res.Solution.Cost())
		i.metrics.Makespan.Update(res.Solution.Makespan())
		i.metrics.Leases.Update(float64(len(res.Solution.Leases())))
		if res.Solution.Makespan() > w.Deadline {
			i.metrics.DeadlineMisses.Inc(1)
		}
	}
	return res, err
}

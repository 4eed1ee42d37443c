package solution

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wuquanwang/workflow/internal/graph"
)

// Check verifies s against w and returns every violation found: tasks
// missing or foreign to w, overlapping allocations, and edges whose child
// starts before the parent's data can arrive.
func (s *Solution) Check(w *graph.Workflow) error {
	var err error

	for _, t := range w.Tasks {
		if _, ok := s.byTask[t.ID]; !ok {
			err = multierr.Append(err, errors.Errorf("task %s is not allocated", t.Name))
		}
	}
	for _, id := range s.order {
		list := s.allocs[id]
		for _, a := range list {
			if w.Task(a.Task.ID) != a.Task {
				err = multierr.Append(err, errors.Errorf("task %s does not belong to workflow %s", a.Task.Name, w.Name))
			}
		}
		for i := 1; i < len(list); i++ {
			if overlaps(list[i-1], list[i]) {
				err = multierr.Append(err, errors.Errorf("lease %d: %s overlaps %s",
					id, list[i-1].Task.Name, list[i].Task.Name))
			}
		}
	}

	for _, t := range w.Tasks {
		parent, ok := s.byTask[t.ID]
		if !ok {
			continue
		}
		for _, e := range t.Out {
			child, ok := s.byTask[e.Destination.ID]
			if !ok {
				continue
			}
			arrival := parent.Finish
			if parent.LeaseID != child.LeaseID {
				arrival += s.cat.TransferTime(e.Bytes)
			}
			if arrival > child.Start+Epsilon {
				err = multierr.Append(err, errors.Errorf("edge %s -> %s: data arrives at %v, child starts at %v",
					t.Name, e.Destination.Name, arrival, child.Start))
			}
		}
	}
	return err
}

// Validate reports whether Check finds nothing wrong.
func (s *Solution) Validate(w *graph.Workflow) bool {
	return s.Check(w) == nil
}

package graph

import (
	"container/heap"
	"math"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wuquanwang/workflow/internal/ids"
)

// Builder collects tasks, control edges and data flows, then produces a
// Workflow with synthetic entry and exit tasks.
type Builder struct {
	name  string
	ids   ids.Allocator
	tasks map[string]*Task
	order []*Task
	flows []dataFlow
}

// dataFlow is a file moving between two tasks. An empty source means the
// workflow input (entry); an empty destination means the workflow output (exit).
type dataFlow struct {
	from, to string
	bytes    int64
}

// NewBuilder returns an empty Builder for a workflow with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		tasks: make(map[string]*Task),
	}
}

// AddTask registers a task with its compute size.
func (b *Builder) AddTask(name string, size float64) error {
	if name == "" {
		return errors.New("task name must not be empty")
	}
	if name == EntryName || name == ExitName {
		return errors.Errorf("task name %q is reserved", name)
	}
	if _, ok := b.tasks[name]; ok {
		return errors.Errorf("duplicate task %q", name)
	}
	if size < 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return errors.Errorf("task %q: invalid size %v", name, size)
	}
	t := &Task{ID: b.ids.Next(), Name: name, Size: size}
	b.tasks[name] = t
	b.order = append(b.order, t)
	return nil
}

// AddEdge adds a control dependency from -> to with no data attached.
// Adding the same edge twice is a no-op.
func (b *Builder) AddEdge(from, to string) error {
	src, ok := b.tasks[from]
	if !ok {
		return errors.Errorf("edge %s -> %s: unknown task %q", from, to, from)
	}
	dst, ok := b.tasks[to]
	if !ok {
		return errors.Errorf("edge %s -> %s: unknown task %q", from, to, to)
	}
	if src == dst {
		return errors.Errorf("edge %s -> %s: self dependency", from, to)
	}
	if findEdge(src, dst) == nil {
		link(src, dst, 0)
	}
	return nil
}

// BindData records a data flow of the given size. An empty from binds the flow
// to the entry task (workflow input, transferred for free); an empty to binds
// it to the exit task. Flows are attached to control edges when the workflow
// is built.
func (b *Builder) BindData(from, to string, bytes int64) error {
	if bytes < 0 {
		return errors.Errorf("data flow %s -> %s: negative size %d", from, to, bytes)
	}
	if from != "" {
		if _, ok := b.tasks[from]; !ok {
			return errors.Errorf("data flow %s -> %s: unknown task %q", from, to, from)
		}
	}
	if to != "" {
		if _, ok := b.tasks[to]; !ok {
			return errors.Errorf("data flow %s -> %s: unknown task %q", from, to, to)
		}
	}
	if from != "" && from == to {
		return errors.Errorf("data flow %s -> %s: self dependency", from, to)
	}
	b.flows = append(b.flows, dataFlow{from: from, to: to, bytes: bytes})
	return nil
}

// Build wires entry and exit, binds data flows to edges, checks for cycles and
// returns the workflow in topological order with its edges sorted.
func (b *Builder) Build() (*Workflow, error) {
	entry := &Task{ID: b.ids.Next(), Name: EntryName}
	exit := &Task{ID: b.ids.Next(), Name: ExitName}

	for _, t := range b.order {
		if len(t.In) == 0 {
			link(entry, t, 0)
		}
		if len(t.Out) == 0 {
			link(t, exit, 0)
		}
	}
	if len(b.order) == 0 {
		link(entry, exit, 0)
	}

	for _, f := range b.flows {
		src, dst, bytes := entry, exit, f.bytes
		if f.from != "" {
			src = b.tasks[f.from]
		} else {
			bytes = 0
		}
		if f.to != "" {
			dst = b.tasks[f.to]
		}
		if e := findEdge(src, dst); e != nil {
			e.Bytes = bytes
			continue
		}
		log.WithFields(log.Fields{
			"workflow": b.name,
			"source":   src.Name,
			"dest":     dst.Name,
		}).Warn("Data flow without control edge, adding edge")
		link(src, dst, bytes)
	}

	all := make([]*Task, 0, len(b.order)+2)
	all = append(all, entry)
	all = append(all, b.order...)
	all = append(all, exit)

	if cycle := DetectCycle(all); cycle != nil {
		return nil, errors.Errorf("dependency cycle detected: %v", cycle)
	}

	order, maxParallel := topoSort(entry, len(all))
	if len(order) != len(all) {
		return nil, errors.Errorf("topological sort reached %d of %d tasks", len(order), len(all))
	}

	w := &Workflow{
		Name:        b.name,
		Tasks:       order,
		Deadline:    math.Inf(1),
		MaxParallel: maxParallel,
		byID:        make([]*Task, len(all)),
		position:    make([]int, len(all)),
	}
	for i, t := range order {
		w.byID[t.ID] = t
		w.position[t.ID] = i
	}
	for _, t := range order {
		sort.SliceStable(t.In, func(i, j int) bool {
			return w.position[t.In[i].Source.ID] < w.position[t.In[j].Source.ID]
		})
		sort.SliceStable(t.Out, func(i, j int) bool {
			return w.position[t.Out[i].Destination.ID] < w.position[t.Out[j].Destination.ID]
		})
	}
	return w, nil
}

func link(src, dst *Task, bytes int64) *Edge {
	e := &Edge{Source: src, Destination: dst, Bytes: bytes}
	src.Out = append(src.Out, e)
	dst.In = append(dst.In, e)
	return e
}

func findEdge(src, dst *Task) *Edge {
	for _, e := range src.Out {
		if e.Destination == dst {
			return e
		}
	}
	return nil
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func DetectCycle(tasks []*Task) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[*Task]int, len(tasks))
	parent := make(map[*Task]*Task)

	var dfs func(node *Task) []string
	dfs = func(node *Task) []string {
		color[node] = gray
		for _, e := range node.Out {
			next := e.Destination
			if color[next] == gray {
				cycle := []string{next.Name, node.Name}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur.Name)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, t := range tasks {
		if color[t] == white {
			if cycle := dfs(t); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// frontier is a max-heap of ready tasks keyed on out-degree minus in-degree,
// so tasks that unlock the most work are released first.
type frontier []*Task

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	di := len(f[i].Out) - len(f[i].In)
	dj := len(f[j].Out) - len(f[j].In)
	if di != dj {
		return di > dj
	}
	return f[i].ID < f[j].ID
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x interface{}) { *f = append(*f, x.(*Task)) }

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// topoSort performs Kahn's algorithm from the entry task and reports the
// largest frontier seen, a lower bound on the workflow's parallelism.
func topoSort(entry *Task, n int) ([]*Task, int) {
	released := make(map[*Task]int, n)
	ready := &frontier{entry}
	order := make([]*Task, 0, n)
	maxParallel := 0

	for ready.Len() > 0 {
		if ready.Len() > maxParallel {
			maxParallel = ready.Len()
		}
		t := heap.Pop(ready).(*Task)
		order = append(order, t)
		for _, e := range t.Out {
			child := e.Destination
			released[child]++
			if released[child] == len(child.In) {
				heap.Push(ready, child)
			}
		}
	}
	return order, maxParallel
}

// Package graphtest builds small workflows for tests.
package graphtest

import (
	"fmt"
	"math/rand"

	"github.com/wuquanwang/workflow/internal/graph"
)

// Diamond returns entry -> {a, b} -> exit with the given sizes and no data.
func Diamond(aSize, bSize float64) *graph.Workflow {
	b := graph.NewBuilder("diamond")
	must(b.AddTask("a", aSize))
	must(b.AddTask("b", bSize))
	return build(b)
}

// Chain returns entry -> t0 -> t1 -> ... -> exit. Each link carries bytes.
func Chain(bytes int64, sizes ...float64) *graph.Workflow {
	b := graph.NewBuilder("chain")
	for i, s := range sizes {
		must(b.AddTask(name(i), s))
		if i > 0 {
			must(b.AddEdge(name(i-1), name(i)))
			must(b.BindData(name(i-1), name(i), bytes))
		}
	}
	return build(b)
}

// ForkJoin returns a root fanning out to width tasks that join into a sink.
// Every edge carries bytes.
func ForkJoin(width int, size float64, bytes int64) *graph.Workflow {
	b := graph.NewBuilder("forkjoin")
	must(b.AddTask("root", size))
	must(b.AddTask("sink", size))
	for i := 0; i < width; i++ {
		n := name(i)
		must(b.AddTask(n, size))
		must(b.AddEdge("root", n))
		must(b.AddEdge(n, "sink"))
		must(b.BindData("root", n, bytes))
		must(b.BindData(n, "sink", bytes))
	}
	return build(b)
}

// Random returns a layered random DAG of n tasks. Edges only point from a
// lower to a higher index, so the result is always acyclic.
func Random(rng *rand.Rand, n int) *graph.Workflow {
	b := graph.NewBuilder(fmt.Sprintf("random-%d", n))
	for i := 0; i < n; i++ {
		must(b.AddTask(name(i), 1+rng.Float64()*9))
	}
	for i := 1; i < n; i++ {
		parents := 1 + rng.Intn(2)
		for k := 0; k < parents; k++ {
			p := rng.Intn(i)
			must(b.AddEdge(name(p), name(i)))
			must(b.BindData(name(p), name(i), int64(rng.Intn(50<<20))))
		}
	}
	return build(b)
}

func name(i int) string { return fmt.Sprintf("t%d", i) }

func build(b *graph.Builder) *graph.Workflow {
	w, err := b.Build()
	must(err)
	return w
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

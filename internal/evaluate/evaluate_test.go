package evaluate

import (
	"context"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/graph/graphtest"
	"github.com/wuquanwang/workflow/internal/scheduler"
)

func diamondSource() Source {
	return Source{
		Name: "diamond",
		Open: func() (*graph.Workflow, error) { return graphtest.Diamond(10, 5), nil },
	}
}

func randomSource(seed int64, n int) Source {
	return Source{
		Name: "random",
		Open: func() (*graph.Workflow, error) {
			return graphtest.Random(rand.New(rand.NewSource(seed)), n), nil
		},
	}
}

func smallOptions() scheduler.Options {
	opts := scheduler.DefaultOptions()
	opts.Workers = 2
	opts.PSO.Population = 8
	opts.PSO.Iterations = 5
	opts.ACO.Ants = 4
	opts.ACO.Iterations = 6
	return opts
}

func TestFactors(t *testing.T) {
	f := Factors(FactorStart, FactorStep, FactorEnd)
	require.Len(t, f, 10)
	assert.InDelta(t, 0.005, f[0], 1e-12)
	assert.InDelta(t, 0.05, f[9], 1e-12)

	assert.Equal(t, []float64{0}, Factors(0, 1, 0))
}

func TestRunDiamond(t *testing.T) {
	opts := Options{
		Factors: []float64{0, 1},
		Methods: []string{scheduler.ICPCPName, scheduler.ProLiSName},
	}
	scope := tally.NewTestScope("", nil)
	r, err := New(opts, smallOptions(), 1, scope).Run(context.Background(), []Source{diamondSource()})
	require.NoError(t, err)

	require.Len(t, r.Rows, 2)
	require.Len(t, r.Runs, 4)
	assert.NotEmpty(t, r.ID)

	first := r.Rows[0]
	assert.Equal(t, 0.0, first.Factor)
	require.Len(t, first.Methods, 2)
	for _, m := range first.Methods {
		assert.Equal(t, 1.0, m.SuccessRatio, m.Method)
		assert.Equal(t, 1, m.Solved)
		assert.InDelta(t, 1.375/0.12, m.NormalizedCost, 1e-9, m.Method)
	}
	for _, m := range r.Rows[1].Methods {
		assert.Equal(t, 1.0, m.SuccessRatio, m.Method)
		assert.LessOrEqual(t, m.NormalizedCost, 1.375/0.12+1e-9)
	}

	assert.InDelta(t, 2.0, r.Reference.FastMakespan, 1e-9)
	assert.InDelta(t, 15.0, r.Reference.CheapMakespan, 1e-9)
	assert.InDelta(t, 0.12, r.Reference.CheapCost, 1e-9)

	require.Len(t, r.Timings, 2)
	for _, tm := range r.Timings {
		assert.Equal(t, 2, tm.Samples)
	}

	seen := make(map[string]bool)
	for _, run := range r.Runs {
		assert.False(t, seen[run.ID], "duplicate run id")
		seen[run.ID] = true
	}

	counters := scope.Snapshot().Counters()
	total := int64(0)
	for _, c := range counters {
		if c.Name() == "scheduler.run.total" {
			total += c.Value()
		}
	}
	assert.Equal(t, int64(4), total)
}

func TestRunIsReproducibleAcrossParallelism(t *testing.T) {
	sources := []Source{randomSource(3, 25), randomSource(4, 30)}
	run := func(parallel int) *Report {
		opts := Options{
			Factors:  []float64{0.05, 0.5},
			Methods:  []string{scheduler.ProLiSName, scheduler.PSOName, scheduler.ACOName},
			Parallel: parallel,
		}
		r, err := New(opts, smallOptions(), 7, nil).Run(context.Background(), sources)
		require.NoError(t, err)
		return r
	}

	a, b := run(1), run(4)
	require.Equal(t, len(a.Runs), len(b.Runs))
	for i := range a.Runs {
		assert.Equal(t, a.Runs[i].Method, b.Runs[i].Method)
		assert.Equal(t, a.Runs[i].Cost, b.Runs[i].Cost, "run %d", i)
		assert.Equal(t, a.Runs[i].Makespan, b.Runs[i].Makespan, "run %d", i)
	}
	assert.Equal(t, a.Rows, b.Rows)
}

func TestRunFailsOnBrokenSource(t *testing.T) {
	broken := Source{
		Name: "broken",
		Open: func() (*graph.Workflow, error) { return nil, errors.New("boom") },
	}
	opts := Options{Factors: []float64{0.1}, Methods: []string{scheduler.ICPCPName}}
	_, err := New(opts, smallOptions(), 1, nil).Run(context.Background(), []Source{diamondSource(), broken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunRejectsUnknownMethod(t *testing.T) {
	opts := Options{Factors: []float64{0.1}, Methods: []string{"heft"}}
	_, err := New(opts, smallOptions(), 1, nil).Run(context.Background(), []Source{diamondSource()})
	assert.Error(t, err)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := Options{Factors: []float64{0.1}, Methods: []string{scheduler.ICPCPName}}
	_, err := New(opts, smallOptions(), 1, nil).Run(ctx, []Source{diamondSource()})
	assert.ErrorIs(t, err, context.Canceled)
}

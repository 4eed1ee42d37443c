package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/wuquanwang/workflow/internal/bench"
	"github.com/wuquanwang/workflow/internal/cloud"
	"github.com/wuquanwang/workflow/internal/cpm"
	"github.com/wuquanwang/workflow/internal/graph/graphtest"
)

func TestPrintDOT(t *testing.T) {
	w := graphtest.Chain(2048, 5, 10)
	levels := cpm.Analyze(w, cloud.DefaultCatalog())

	var buf bytes.Buffer
	printDOT(&buf, w, levels)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `digraph "chain" {`))
	assert.Contains(t, out, `"t0" -> "t1" [label="2048 B", color=red, penwidth=2];`)
	assert.Contains(t, out, `"entry" [label="entry", shape=circle, style="rounded,bold", color=red];`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestBenchAndLevelsJSON(t *testing.T) {
	cat := cloud.DefaultCatalog()
	w := graphtest.Diamond(10, 5)
	b := bench.New(w, cat)

	out := benchJSON(w.Name, b, []float64{0, 1})
	require.NoError(t, outputJSON(out))

	levels := cpm.Analyze(w, cat)
	lj := levelsJSON(w, levels)
	require.NoError(t, outputJSON(lj))
}

func TestPrintMetrics(t *testing.T) {
	s := tally.NewTestScope("wfsched", nil)
	s.Counter("runs").Inc(2)
	s.Gauge("cost").Update(1.5)

	var buf bytes.Buffer
	printMetrics(&buf, s)
	assert.Equal(t, "wfsched.cost map[] = 1.500\nwfsched.runs map[] = 2\n", buf.String())

	buf.Reset()
	printMetrics(&buf, nil)
	assert.Empty(t, buf.String())
}

package evaluate

import (
	"time"

	"github.com/wuquanwang/workflow/internal/graph"
	"github.com/wuquanwang/workflow/internal/loader"
	"github.com/wuquanwang/workflow/internal/scheduler"
)

// Sweep bounds of the tight deadline factors.
const (
	FactorStart = 0.005
	FactorStep  = 0.005
	FactorEnd   = 0.05
)

// Tolerance absorbs rounding when checking a makespan against its deadline.
const Tolerance = 1e-7

// Options configures an evaluation sweep.
type Options struct {
	Factors []float64 `yaml:"factors" validate:"nonzero"`
	Methods []string  `yaml:"methods" validate:"nonzero"`
	// Parallel bounds the number of workflow x factor jobs in flight.
	Parallel int `yaml:"parallel" validate:"min=0"`
}

// DefaultOptions sweeps the tight factors with every scheduler.
func DefaultOptions() Options {
	return Options{
		Factors: Factors(FactorStart, FactorStep, FactorEnd),
		Methods: []string{scheduler.ICPCPName, scheduler.PSOName, scheduler.ProLiSName, scheduler.ACOName},
	}
}

// Factors returns start, start+step, ... up to end inclusive.
func Factors(start, step, end float64) []float64 {
	n := int((end-start)/step+Tolerance) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// Source yields a fresh workflow on every Open, so concurrent jobs never
// share task state.
type Source struct {
	Name string
	Open func() (*graph.Workflow, error)
}

// FileSource reads the workflow file at path on every Open.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (*graph.Workflow, error) { return loader.Load(path) },
	}
}

// Run is one scheduler applied to one workflow under one deadline.
type Run struct {
	ID       string        `json:"id"`
	Workflow string        `json:"workflow"`
	Factor   float64       `json:"factor"`
	Method   string        `json:"method"`
	Deadline float64       `json:"deadline"`
	Solved   bool          `json:"solved"`
	Success  bool          `json:"success"`
	Cost     float64       `json:"cost"`
	Makespan float64       `json:"makespan"`
	Runtime  time.Duration `json:"runtime"`
	// NormalizedCost is Cost over the cheap benchmark cost.
	NormalizedCost float64 `json:"normalized_cost"`
}

// MethodStats aggregates one method at one deadline factor.
type MethodStats struct {
	Method         string  `json:"method"`
	SuccessRatio   float64 `json:"success_ratio"`
	NormalizedCost float64 `json:"normalized_cost"`
	Solved         int     `json:"solved"`
	Runs           int     `json:"runs"`
}

// Row holds every method's statistics at one deadline factor.
type Row struct {
	Factor  float64       `json:"factor"`
	Methods []MethodStats `json:"methods"`
}

// Reference averages the benchmark schedules over every job.
type Reference struct {
	FastCost      float64 `json:"fast_cost"`
	FastMakespan  float64 `json:"fast_makespan"`
	CheapCost     float64 `json:"cheap_cost"`
	CheapMakespan float64 `json:"cheap_makespan"`
}

// Timing is the mean wall time of one method.
type Timing struct {
	Method  string        `json:"method"`
	Mean    time.Duration `json:"mean"`
	Samples int           `json:"samples"`
}

// Report is the outcome of a sweep.
type Report struct {
	ID        string    `json:"id"`
	Methods   []string  `json:"methods"`
	Rows      []Row     `json:"rows"`
	Reference Reference `json:"reference"`
	Timings   []Timing  `json:"timings"`
	Runs      []Run     `json:"runs"`
}

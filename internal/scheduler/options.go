package scheduler

import (
	"runtime"

	"github.com/wuquanwang/workflow/internal/cloud"
)

// Options configures every scheduler.
type Options struct {
	Catalog *cloud.Catalog `yaml:"-"`
	// Workers bounds the goroutines decoding particles or ants of one
	// iteration.
	Workers int           `yaml:"workers" validate:"min=0"`
	ProLiS  ProLiSOptions `yaml:"prolis"`
	PSO     PSOOptions    `yaml:"pso"`
	ACO     ACOOptions    `yaml:"aco"`
}

// ProLiSOptions configures list scheduling with deadline distribution.
type ProLiSOptions struct {
	// Theta is the transfer discount base of the probabilistic upward rank.
	// +Inf gives the deterministic rank.
	Theta float64 `yaml:"theta" validate:"min=1"`
}

// PSOOptions configures the particle swarm.
type PSOOptions struct {
	Population int     `yaml:"population" validate:"min=1"`
	Iterations int     `yaml:"iterations" validate:"min=0"`
	Inertia    float64 `yaml:"inertia" validate:"min=0"`
	Cognitive  float64 `yaml:"cognitive" validate:"min=0"`
	Social     float64 `yaml:"social" validate:"min=0"`
}

// ACOOptions configures the ant colony.
type ACOOptions struct {
	Ants       int `yaml:"ants" validate:"min=1"`
	Iterations int `yaml:"iterations" validate:"min=1"`
	// AnnealFraction is the share of iterations run under a relaxed deadline.
	AnnealFraction float64 `yaml:"anneal_fraction" validate:"min=0,max=1"`
	Alpha          float64 `yaml:"alpha" validate:"min=0"`
	Beta           float64 `yaml:"beta" validate:"min=0"`
	// Evaporation is the share of pheromone kept each iteration.
	Evaporation  float64 `yaml:"evaporation" validate:"min=0,max=1"`
	PheromoneMin float64 `yaml:"pheromone_min" validate:"min=0"`
	PheromoneMax float64 `yaml:"pheromone_max" validate:"min=0"`
	// GlobalDeposit is the probability of reinforcing the global best order
	// instead of the iteration best.
	GlobalDeposit float64 `yaml:"global_deposit" validate:"min=0,max=1"`
}

// DefaultOptions returns the published parameter sets.
func DefaultOptions() Options {
	return Options{
		Catalog: cloud.DefaultCatalog(),
		Workers: runtime.GOMAXPROCS(0),
		ProLiS:  ProLiSOptions{Theta: 1.5},
		PSO: PSOOptions{
			Population: 100,
			Iterations: 100,
			Inertia:    0.5,
			Cognitive:  2,
			Social:     2,
		},
		ACO: ACOOptions{
			Ants:           20,
			Iterations:     50,
			AnnealFraction: 0.7,
			Alpha:          1,
			Beta:           2,
			Evaporation:    0.8,
			PheromoneMin:   0.2,
			PheromoneMax:   1,
			GlobalDeposit:  0.1,
		},
	}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

package scheduler

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Scheduler names accepted by New.
const (
	ICPCPName  = "icpcp"
	ProLiSName = "prolis"
	PSOName    = "pso"
	ACOName    = "aco"
)

// Names lists every registered scheduler.
func Names() []string {
	return []string{ICPCPName, PSOName, ProLiSName, ACOName}
}

// New returns the scheduler registered under name. rng feeds the stochastic
// schedulers and must not be shared with concurrent runs.
func New(name string, opts Options, rng *rand.Rand) (Scheduler, error) {
	if opts.Catalog == nil {
		return nil, errors.New("scheduler options have no catalog")
	}
	switch name {
	case ICPCPName:
		return NewICPCP(opts.Catalog), nil
	case ProLiSName:
		return NewProLiS(opts.Catalog, opts.ProLiS, rng), nil
	case PSOName:
		return NewPSO(opts.Catalog, opts.PSO, opts.workers(), rng), nil
	case ACOName:
		return NewACO(opts.Catalog, opts.ACO, opts.ProLiS, opts.workers(), rng), nil
	default:
		return nil, errors.Errorf("unknown scheduler %q, want one of %v", name, Names())
	}
}

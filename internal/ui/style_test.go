package ui

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeInfeasible, Outcome(false, 0, 10, 0))
	assert.Equal(t, OutcomeMet, Outcome(true, 10, 10, 0))
	assert.Equal(t, OutcomeMet, Outcome(true, 10+1e-9, 10, 1e-7))
	assert.Equal(t, OutcomeMissed, Outcome(true, 11, 10, 1e-7))
}

func TestPlainOutput(t *testing.T) {
	prev := color.NoColor
	defer func() { color.NoColor = prev }()
	SetColor(false)

	assert.Equal(t, "[vm-0(t8)]", LeasePrefix(0, "vm-0(t8)"))
	assert.Equal(t, "[vm-7(t1)]", LeasePrefix(7, "vm-7(t1)"))
	assert.Equal(t, "0.500", Ratio(0.5))
	assert.Equal(t, "✓", OutcomeIcon(OutcomeMet))
	assert.Equal(t, "◌", OutcomeIcon("unknown"))
}

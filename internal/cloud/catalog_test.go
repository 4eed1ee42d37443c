package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())
	assert.Equal(t, 9, c.Tiers())
	assert.Equal(t, Tier(8), c.Fastest())
	assert.Equal(t, Tier(0), c.Slowest())
	assert.Equal(t, 5.0, c.Speed(c.Fastest()))
	assert.Equal(t, 0.12, c.UnitCost(c.Slowest()))
}

func TestCostIsStepFunction(t *testing.T) {
	c := DefaultCatalog()
	const eps = 1e-6
	tier := Tier(3)
	unit := c.UnitCost(tier)

	assert.Equal(t, unit, c.Cost(tier, c.Interval-eps))
	assert.Equal(t, unit, c.Cost(tier, c.Interval))
	assert.Equal(t, 2*unit, c.Cost(tier, c.Interval+eps))
	assert.Equal(t, 0.0, c.Cost(tier, 0))
	assert.Equal(t, unit, c.Cost(tier, eps))
}

func TestExecAndTransferTime(t *testing.T) {
	c := DefaultCatalog()
	assert.InDelta(t, 2.0, c.ExecTime(10, c.Fastest()), 1e-12)
	assert.InDelta(t, 10.0, c.ExecTime(10, c.Slowest()), 1e-12)
	assert.InDelta(t, 1.0, c.TransferTime(20*1024*1024), 1e-12)
	assert.Equal(t, 0.0, c.TransferTime(0))
}

func TestValidateRejectsBrokenLadders(t *testing.T) {
	tests := map[string]*Catalog{
		"empty":          {Interval: 1, NetworkSpeed: 1},
		"length":         {Speeds: []float64{1, 2}, UnitCosts: []float64{1}, Interval: 1, NetworkSpeed: 1},
		"not increasing": {Speeds: []float64{2, 1}, UnitCosts: []float64{1, 2}, Interval: 1, NetworkSpeed: 1},
		"interval":       {Speeds: []float64{1}, UnitCosts: []float64{1}, NetworkSpeed: 1},
		"network":        {Speeds: []float64{1}, UnitCosts: []float64{1}, Interval: 1},
		"negative cost":  {Speeds: []float64{1}, UnitCosts: []float64{-1}, Interval: 1, NetworkSpeed: 1},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, c.Validate())
		})
	}
}

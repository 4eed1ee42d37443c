package cloud

import (
	"math"

	"github.com/pkg/errors"
)

// Tier indexes into a Catalog's ladder of machine types. Tiers are ordered
// from slowest (0) to fastest (Tiers()-1).
type Tier int

// Catalog is the fixed ladder of leasable machine types together with the
// billing and network constants shared by every lease.
type Catalog struct {
	Speeds       []float64 `yaml:"speeds" json:"speeds"`
	UnitCosts    []float64 `yaml:"unit_costs" json:"unit_costs"`
	Interval     float64   `yaml:"interval" json:"interval"`           // billing interval
	LaunchTime   float64   `yaml:"launch_time" json:"launch_time"`     // availability latency of a fresh lease
	NetworkSpeed float64   `yaml:"network_speed" json:"network_speed"` // bytes per time unit
}

// DefaultCatalog returns the nine-tier ladder with hourly billing and a
// 20 MiB/s network.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Speeds:       []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		UnitCosts:    []float64{0.12, 0.195, 0.28, 0.375, 0.48, 0.595, 0.72, 0.855, 1},
		Interval:     3600,
		LaunchTime:   0,
		NetworkSpeed: 20 * 1024 * 1024,
	}
}

// Validate checks that the ladder is usable: one cost per speed, speeds
// strictly increasing, and positive interval and network speed.
func (c *Catalog) Validate() error {
	if len(c.Speeds) == 0 {
		return errors.New("catalog has no tiers")
	}
	if len(c.Speeds) != len(c.UnitCosts) {
		return errors.Errorf("catalog has %d speeds but %d unit costs", len(c.Speeds), len(c.UnitCosts))
	}
	for i, s := range c.Speeds {
		if s <= 0 {
			return errors.Errorf("tier %d: speed must be positive, got %v", i, s)
		}
		if i > 0 && s <= c.Speeds[i-1] {
			return errors.Errorf("tier %d: speeds must be strictly increasing", i)
		}
		if c.UnitCosts[i] < 0 {
			return errors.Errorf("tier %d: unit cost must not be negative", i)
		}
	}
	if c.Interval <= 0 {
		return errors.Errorf("billing interval must be positive, got %v", c.Interval)
	}
	if c.NetworkSpeed <= 0 {
		return errors.Errorf("network speed must be positive, got %v", c.NetworkSpeed)
	}
	if c.LaunchTime < 0 {
		return errors.Errorf("launch time must not be negative, got %v", c.LaunchTime)
	}
	return nil
}

// Tiers returns the number of machine types.
func (c *Catalog) Tiers() int { return len(c.Speeds) }

// Fastest returns the top tier.
func (c *Catalog) Fastest() Tier { return Tier(len(c.Speeds) - 1) }

// Slowest returns the bottom tier.
func (c *Catalog) Slowest() Tier { return 0 }

// Speed returns the compute speed of tier t.
func (c *Catalog) Speed(t Tier) float64 { return c.Speeds[t] }

// UnitCost returns the price of one billing interval on tier t.
func (c *Catalog) UnitCost(t Tier) float64 { return c.UnitCosts[t] }

// ExecTime returns how long a task of the given size runs on tier t.
func (c *Catalog) ExecTime(size float64, t Tier) float64 {
	return size / c.Speeds[t]
}

// TransferTime returns how long moving the given number of bytes between two
// different leases takes.
func (c *Catalog) TransferTime(bytes int64) float64 {
	return float64(bytes) / c.NetworkSpeed
}

// Cost bills a lease of tier t occupied for span: whole intervals, rounded up.
func (c *Catalog) Cost(t Tier, span float64) float64 {
	if span <= 0 {
		return 0
	}
	return c.UnitCosts[t] * math.Ceil(span/c.Interval)
}

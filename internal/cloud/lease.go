package cloud

import "fmt"

// NoLease is the id used when asking about a hypothetical, never-used lease.
const NoLease = -1

// Lease is one rented machine: a stable instance id plus its current tier.
// The tier may only change through solution.Solution.Upgrade, which refreshes
// every allocation placed on the lease.
type Lease struct {
	ID   int  `json:"id"`
	Tier Tier `json:"tier"`
}

func (l Lease) String() string {
	return fmt.Sprintf("vm-%d(t%d)", l.ID, l.Tier)
}

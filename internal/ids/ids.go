// Package ids allocates dense integer ids.
package ids

// Allocator hands out ids 0, 1, 2, ... Each graph builder and each solution
// owns its own Allocator.
type Allocator struct {
	next int
}

// Next returns the next unused id.
func (a *Allocator) Next() int {
	id := a.next
	a.next++
	return id
}

package sim

import "fmt"

// ledgerEntry is one granted allocation: requester, resource and amount.
type ledgerEntry struct {
	requester string
	resource  string
	amount    float64
}

// ResourcePool is a named capacity bucket with a set of named resources.
// Services allocate from and deallocate back to a single pool; the pool
// keeps a ledger of granted allocations so that level always equals the
// sum of outstanding grants for each resource.
type ResourcePool struct {
	Identifier string

	capacity map[string]float64
	level    map[string]float64
	ledger   []ledgerEntry
}

// NewResourcePool creates a pool with the given identifier and initial
// per-resource capacities.
func NewResourcePool(identifier string, capacities map[string]float64) *ResourcePool {
	p := &ResourcePool{
		Identifier: identifier,
		capacity:   make(map[string]float64, len(capacities)),
		level:      make(map[string]float64, len(capacities)),
	}
	for name, cap := range capacities {
		p.capacity[name] = cap
		p.level[name] = 0
	}
	return p
}

func (p *ResourcePool) String() string { return p.Identifier }

// Capacity returns the capacity of a resource and whether it is defined.
func (p *ResourcePool) Capacity(name string) (float64, bool) {
	c, ok := p.capacity[name]
	return c, ok
}

// SetCapacity updates the capacity of an existing, non-negative resource.
// Reports whether the update was applied.
func (p *ResourcePool) SetCapacity(name string, capacity float64) bool {
	if _, ok := p.capacity[name]; !ok || capacity < 0 {
		return false
	}
	p.capacity[name] = capacity
	return true
}

// Level returns the current level of a resource and whether it is defined.
func (p *ResourcePool) Level(name string) (float64, bool) {
	l, ok := p.level[name]
	return l, ok
}

// Resources returns the set of resource names known to the pool.
func (p *ResourcePool) Resources() []string {
	names := make([]string, 0, len(p.capacity))
	for name := range p.capacity {
		names = append(names, name)
	}
	return names
}

// Allocate grants amount of the named resource to requester. On failure
// the pool is left unchanged.
func (p *ResourcePool) Allocate(requester, name string, amount float64) error {
	if _, ok := p.capacity[name]; !ok {
		return wrapErr(ErrResourceCapacityExceeded,
			fmt.Sprintf("pool %s: unknown resource %s", p.Identifier, name), nil)
	}
	if p.level[name]+amount > p.capacity[name] {
		return newErr(ErrResourceCapacityExceeded,
			fmt.Sprintf("pool %s: resource %s: %.4f + %.4f exceeds capacity %.4f",
				p.Identifier, name, p.level[name], amount, p.capacity[name]))
	}
	p.level[name] += amount
	p.ledger = append(p.ledger, ledgerEntry{requester: requester, resource: name, amount: amount})
	return nil
}

// Deallocate removes at most one ledger entry exactly matching
// (requester, name, amount), then decrements level by amount. Fails
// without changing level if doing so would take it below zero.
func (p *ResourcePool) Deallocate(requester, name string, amount float64) error {
	if _, ok := p.capacity[name]; !ok {
		return newErr(ErrResourceCapacityUnderrun,
			fmt.Sprintf("pool %s: unknown resource %s", p.Identifier, name))
	}
	if p.level[name]-amount < 0 {
		return newErr(ErrResourceCapacityUnderrun,
			fmt.Sprintf("pool %s: resource %s: %.4f - %.4f underruns zero",
				p.Identifier, name, p.level[name], amount))
	}
	p.level[name] -= amount

	for i, entry := range p.ledger {
		if entry.requester == requester && entry.resource == name && entry.amount == amount {
			p.ledger = append(p.ledger[:i], p.ledger[i+1:]...)
			break
		}
	}
	return nil
}

// Reset zeroes every resource level and clears the ledger.
func (p *ResourcePool) Reset() {
	for name := range p.level {
		p.level[name] = 0
	}
	p.ledger = nil
}

// NormalizedLevel returns level/capacity for a resource, or 0 when the
// resource is unknown or has zero capacity.
func (p *ResourcePool) NormalizedLevel(name string) float64 {
	c, ok := p.capacity[name]
	if !ok || c == 0 {
		return 0
	}
	l := p.level[name]
	return l / c
}
